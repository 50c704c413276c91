package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/core/vectorstore"
	"github.com/xenyhq/ragserve/internal/models"
)

// Sentinel is the phrase the generation prompt instructs the model to use
// when the knowledge base has no answer. Responses containing it are
// treated as misses during variation fallback.
const Sentinel = "This information is currently not available"

const reformulateInstruction = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone question " +
	"which can be understood without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

func companySystemPrompt(companyID, contextText string) string {
	return fmt.Sprintf(`You are an advanced AI assistant for company %[1]s. Always mention the company %[1]s in your responses.
Your role is to answer user questions using the knowledge base context.

Guidelines:
1. Use only the knowledge base to generate answers. Do not mention or describe the documents or context explicitly.
2. Provide responses that are concise yet slightly expanded for clarity.
3. Adapt answer style dynamically:
   - Use bullet points for lists, steps, or features.
   - Use short paragraphs for explanations or reasoning.
4. If the requested information is not available in the knowledge base, respond with:
   "%[2]s. For more details, please contact [insert company contact info if available]."
5. Maintain a friendly but professional tone.
6. Always tailor answers to company %[1]s, explicitly mentioning it when relevant.
7. Avoid filler phrases such as "the uploaded text says" or "the context provides."

Context:
%[3]s`, companyID, Sentinel, contextText)
}

func fileSystemPrompt(companyID, contextText string) string {
	return fmt.Sprintf(`You are an AI assistant for company %[1]s. Use the following pieces of retrieved context to answer the question. If you don't know the answer, respond with:
"%[2]s. For more details, please contact [insert company contact info if available]."
Keep the answer concise but comprehensive. Always mention the company %[1]s when relevant.

%[3]s`, companyID, Sentinel, contextText)
}

type retrieveFunc func(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error)

// pipeline binds one collection to the two-step answer flow: history-aware
// query reformulation, then top-k retrieval and grounded composition.
type pipeline struct {
	retrieve retrieveFunc
	provider core.LLMProvider
	topK     int
	prompt   func(contextText string) string
}

func newCompanyPipeline(index *vectorstore.Manager, provider core.LLMProvider, companyID string, topK int) *pipeline {
	return &pipeline{
		retrieve: func(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
			return index.QueryCompany(ctx, companyID, query, k)
		},
		provider: provider,
		topK:     topK,
		prompt: func(contextText string) string {
			return companySystemPrompt(companyID, contextText)
		},
	}
}

func newFilePipeline(index *vectorstore.Manager, provider core.LLMProvider, companyID, fileID string, topK int) *pipeline {
	return &pipeline{
		retrieve: func(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
			return index.QueryFile(ctx, companyID, fileID, query, k)
		},
		provider: provider,
		topK:     topK,
		prompt: func(contextText string) string {
			return fileSystemPrompt(companyID, contextText)
		},
	}
}

// run executes one attempt for one query variation. Sources are the
// deduplicated file ids of the retrieved chunks, in retrieval order.
func (p *pipeline) run(ctx context.Context, query string, history []models.ChatMessage) (string, []string, error) {
	standalone := query
	if len(history) > 0 {
		reformulated, err := p.provider.Generate(ctx, reformulateInstruction, history, query)
		if err != nil {
			return "", nil, err
		}
		if s := strings.TrimSpace(reformulated); s != "" {
			standalone = s
		}
	}

	results, err := p.retrieve(ctx, standalone, p.topK)
	if err != nil {
		return "", nil, err
	}

	var (
		contextParts []string
		sources      []string
		seen         = map[string]struct{}{}
	)
	for _, r := range results {
		contextParts = append(contextParts, r.Text)
		src := r.Metadata["file_id"]
		if src == "" {
			src = r.Metadata["original_filename"]
		}
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}

	answer, err := p.provider.Generate(ctx, p.prompt(strings.Join(contextParts, "\n\n")), history, query)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(answer), sources, nil
}
