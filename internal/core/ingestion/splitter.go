package ingestion

import (
	"strings"
	"unicode/utf8"
)

// Splitter breaks document text into chunks of roughly chunkSize characters
// with chunkOverlap characters carried between adjacent chunks. It prefers
// to cut on paragraph breaks, then line breaks, then spaces, and only
// hard-cuts runs of text with no separator at all.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", " "},
	}
}

// Split is deterministic: the same text always yields the same chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	chunks := s.split(text, s.separators)

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardCut(text)
	}

	sep := separators[0]
	rest := separators[1:]
	if !strings.Contains(text, sep) {
		return s.split(text, rest)
	}

	parts := strings.Split(text, sep)

	var (
		out  []string
		good []string
	)
	flush := func() {
		if len(good) > 0 {
			out = append(out, s.merge(good, sep)...)
			good = nil
		}
	}
	for _, p := range parts {
		if utf8.RuneCountInString(p) < s.chunkSize {
			good = append(good, p)
			continue
		}
		// Oversize part: emit what we have, then descend with finer
		// separators.
		flush()
		out = append(out, s.split(p, rest)...)
	}
	flush()
	return out
}

// merge packs small parts into chunks up to chunkSize, retaining a tail of
// roughly chunkOverlap characters as the seed of the next chunk.
func (s *Splitter) merge(parts []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var (
		out     []string
		current []string
		total   int
	)
	joinedLen := func(extra int) int {
		n := total + extra
		if len(current) > 0 {
			n += sepLen
		}
		return n
	}
	for _, p := range parts {
		pLen := utf8.RuneCountInString(p)

		if len(current) > 0 && joinedLen(pLen) > s.chunkSize {
			out = append(out, strings.Join(current, sep))

			// Drop parts from the front until the retained tail fits
			// within the overlap window.
			for len(current) > 0 && (total > s.chunkOverlap || joinedLen(pLen) > s.chunkSize) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, p)
		total += pLen
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, sep))
	}
	return out
}

// hardCut slices text with no usable separators into fixed windows that
// step by chunkSize minus chunkOverlap.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = s.chunkSize
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
