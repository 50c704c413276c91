package llm

import (
	"context"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// clientCache hands out a genai.Client built from the keyring's current key.
// When the keyring generation moves past the cached one, the old client is
// closed and a fresh one is dialed with the new key, so rotation takes
// effect on the next acquisition.
type clientCache struct {
	ring *Keyring

	mu     sync.Mutex
	client *genai.Client
	gen    uint64
}

func newClientCache(ring *Keyring) *clientCache {
	return &clientCache{ring: ring}
}

func (c *clientCache) get(ctx context.Context) (*genai.Client, error) {
	key, gen := c.ring.Current()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.gen == gen {
		return c.client, nil
	}
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	c.client = cl
	c.gen = gen
	return cl, nil
}

func (c *clientCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}
