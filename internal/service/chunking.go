package service

import (
	"strings"
	"time"
	"unicode"

	"github.com/helioscope-ai/helioscope/internal/domain"
)

// ChunkConfig controls token windowing for paper chunks.
type ChunkConfig struct {
	MinTokens         int
	MaxTokens         int
	Overlap           int
	SourceField       string
	PreserveSentences bool
}

// DefaultChunkConfig provides the production chunking defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MinTokens:         200,
		MaxTokens:         600,
		Overlap:           75,
		SourceField:       "abstract",
		PreserveSentences: true,
	}
}

// Chunker cuts paper text into overlapping token windows. Tokens are
// whitespace-delimited; offsets are rune positions into the source field.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker creates a Chunker with the given configuration, falling back
// to defaults for unset values.
func NewChunker(cfg ChunkConfig) *Chunker {
	def := DefaultChunkConfig()
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = def.MinTokens
	}
	if cfg.MaxTokens < cfg.MinTokens {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MinTokens {
		cfg.Overlap = def.Overlap
	}
	if cfg.SourceField == "" {
		cfg.SourceField = def.SourceField
	}
	return &Chunker{cfg: cfg}
}

// token is one whitespace-delimited word with its rune offsets.
type token struct {
	start int
	end   int
}

// ChunkPaper cuts the configured source field of a paper into chunks. An
// empty source field yields zero chunks, not an error.
func (c *Chunker) ChunkPaper(p *domain.Paper) []domain.Chunk {
	text := c.sourceText(p)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	tokens := tokenize(runes)
	if len(tokens) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var chunks []domain.Chunk

	if len(tokens) <= c.cfg.MinTokens {
		chunks = append(chunks, c.makeChunk(p, runes, tokens, 0, len(tokens), 0, now))
	} else {
		start := 0
		for start < len(tokens) {
			end := start + c.cfg.MaxTokens
			if end > len(tokens) {
				end = len(tokens)
			}
			if c.cfg.PreserveSentences && end < len(tokens) {
				end = c.sentencePullback(runes, tokens, start, end)
			}

			chunks = append(chunks, c.makeChunk(p, runes, tokens, start, end, len(chunks), now))

			if end >= len(tokens) {
				break
			}
			next := end - c.cfg.Overlap
			if next >= len(tokens)-c.cfg.MinTokens {
				// The remaining tail is too short for a chunk of its own.
				// Fold it into the chunk just emitted so every token is
				// covered, even though that chunk then exceeds MaxTokens.
				last := len(chunks) - 1
				chunks[last] = c.makeChunk(p, runes, tokens, start, len(tokens), last, now)
				break
			}
			start = next
		}
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// Config returns the effective chunking configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.cfg
}

func (c *Chunker) sourceText(p *domain.Paper) string {
	switch c.cfg.SourceField {
	case "full_text":
		return p.FullText
	case "title_abstract":
		if p.Title == "" {
			return p.Abstract
		}
		return p.Title + "\n\n" + p.Abstract
	default:
		return p.Abstract
	}
}

// sentencePullback moves the window end back to the most recent
// sentence-final token, as long as the window keeps at least MinTokens.
func (c *Chunker) sentencePullback(runes []rune, tokens []token, start, end int) int {
	for i := end; i > start+c.cfg.MinTokens; i-- {
		last := runes[tokens[i-1].end-1]
		if last == '.' || last == '!' || last == '?' {
			return i
		}
	}
	return end
}

func (c *Chunker) makeChunk(p *domain.Paper, runes []rune, tokens []token, start, end, index int, now time.Time) domain.Chunk {
	startChar := tokens[start].start
	endChar := tokens[end-1].end
	return domain.Chunk{
		ChunkID:     domain.ChunkID(p.ID, index),
		PaperID:     p.ID,
		ChunkIndex:  index,
		Text:        string(runes[startChar:endChar]),
		TokenCount:  end - start,
		StartChar:   startChar,
		EndChar:     endChar,
		CharCount:   endChar - startChar,
		SourceField: c.cfg.SourceField,
		Title:       p.Title,
		Authors:     p.Authors,
		Version:     p.Version,
		CreatedAt:   now,
	}
}

func tokenize(runes []rune) []token {
	var tokens []token
	inToken := false
	start := 0
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if inToken {
				tokens = append(tokens, token{start: start, end: i})
				inToken = false
			}
			continue
		}
		if !inToken {
			start = i
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, token{start: start, end: len(runes)})
	}
	return tokens
}
