package external

import (
	"strings"

	"github.com/google/uuid"
)

// Chunking defaults, in words.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 80
)

// GuidelineChunk is one indexed slice of a guideline document.
type GuidelineChunk struct {
	ID         string `json:"chunk_id"`
	Domain     string `json:"domain"`
	SourceFile string `json:"source_file"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// ChunkText splits text into windows of size words where consecutive
// windows share overlap words. Whitespace is normalized to single spaces.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	words := strings.Fields(text)
	var chunks []string
	for start := 0; start < len(words); {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		start = start + size - overlap
	}
	return chunks
}

// BuildChunks chunks a document and assigns each chunk a fresh ID.
func BuildChunks(evidenceDomain, sourceFile, text string, size, overlap int) []GuidelineChunk {
	texts := ChunkText(text, size, overlap)
	chunks := make([]GuidelineChunk, 0, len(texts))
	for idx, t := range texts {
		chunks = append(chunks, GuidelineChunk{
			ID:         uuid.NewString(),
			Domain:     evidenceDomain,
			SourceFile: sourceFile,
			ChunkIndex: idx,
			Text:       t,
		})
	}
	return chunks
}

// queryTerms lowercases the query and keeps alphanumeric tokens of three or
// more characters, deduplicated in order.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// termScore counts how many distinct query terms occur in text.
func termScore(text string, terms []string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			score++
		}
	}
	return score
}
