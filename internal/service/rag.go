package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/openai"
	"github.com/helioscope-ai/helioscope/internal/telemetry"
)

// Response contract section headers. The prompt demands these so answers
// render consistently in clients.
const (
	sectionKeyFindings = "## Key Findings"
	sectionEvidence    = "## Evidence & Analysis"
	sectionConclusions = "## Conclusions"
	sectionFollowUps   = "## Follow-up Questions"
)

// RAGConfig tunes answer generation.
type RAGConfig struct {
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	TopK        int
	SearchMode  domain.SearchMode
}

// DefaultRAGConfig provides the production generation defaults.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		MaxTokens:   800,
		Temperature: 0.5,
		Timeout:     15 * time.Second,
		TopK:        5,
		SearchMode:  domain.SearchModeCombined,
	}
}

// Gate decides whether a query may proceed to retrieval.
type Gate interface {
	Check(ctx context.Context, query string) GuardrailDecision
}

// Retriever runs one retrieval request.
type Retriever interface {
	Search(ctx context.Context, input SearchInput) ([]domain.SearchResult, error)
}

// ChatInput is one conversational question. An empty ConversationID starts
// a new conversation.
type ChatInput struct {
	ConversationID string
	Query          string
	Mode           domain.SearchMode
	TopK           int
}

// ChatOutput is the orchestrated answer.
type ChatOutput struct {
	ConversationID string
	Answer         string
	Sources        []domain.SourceRef
	GateReason     string
	Grounded       bool
	Degraded       bool
	TokensUsed     int
}

// RAGService orchestrates gate, retrieval, prompt assembly, generation,
// grounding check, and persistence for one chat turn.
type RAGService struct {
	gate          Gate
	retriever     Retriever
	conversations *ConversationService
	llm           CompletionClient
	cfg           RAGConfig
}

// NewRAGService creates a new RAGService instance
func NewRAGService(
	gate Gate,
	retriever Retriever,
	conversations *ConversationService,
	llm CompletionClient,
	cfg RAGConfig,
) *RAGService {
	def := DefaultRAGConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.SearchMode == "" {
		cfg.SearchMode = def.SearchMode
	}
	return &RAGService{
		gate:          gate,
		retriever:     retriever,
		conversations: conversations,
		llm:           llm,
		cfg:           cfg,
	}
}

// Chat answers one question over the paper corpus. The user turn is
// persisted before the model is called, so a generation failure never loses
// the question. Assistant turns are only persisted for delivered answers.
func (s *RAGService) Chat(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	conv, err := s.conversations.Ensure(ctx, input.ConversationID, query)
	if err != nil {
		return nil, err
	}
	out := &ChatOutput{ConversationID: conv.ID}

	ctx, span := telemetry.StartSpan(ctx, "RAGService.Chat", telemetry.SpanAttributes{
		ConversationID: conv.ID,
		SearchMode:     string(input.Mode),
	})
	defer span.End()

	decision := s.gate.Check(ctx, query)
	out.GateReason = decision.Reason
	if !decision.Allowed {
		answer := OutOfScopeResponse()
		if err := s.persistTurn(ctx, conv.ID, query, answer, nil, 0); err != nil {
			return nil, err
		}
		out.Answer = answer
		return out, nil
	}

	history, err := s.conversations.History(ctx, conv.ID, promptHistoryTurns)
	if err != nil {
		return nil, err
	}

	if err := s.conversations.AppendUser(ctx, conv.ID, query); err != nil {
		return nil, err
	}

	topK := input.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	mode := input.Mode
	if mode == "" {
		mode = s.cfg.SearchMode
	}
	results, err := s.retriever.Search(ctx, SearchInput{Query: query, Mode: mode, Limit: topK})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		answer := NoResultsResponse()
		if err := s.conversations.AppendAssistant(ctx, conv.ID, answer, nil, 0); err != nil {
			return nil, err
		}
		out.Answer = answer
		return out, nil
	}

	prompt := buildPrompt(query, history, results)
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	completion, err := s.llm.Complete(genCtx, openai.CompletionRequest{
		System:      ragSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		// Degraded answer: the user turn is already saved, the assistant
		// turn is not, so a retry regenerates cleanly.
		log.Printf("rag: generation failed for conversation %s: %v", conv.ID, err)
		out.Answer = fallbackResponse()
		out.Degraded = true
		return out, nil
	}

	out.Answer = completion.Content
	out.TokensUsed = completion.TotalTokens
	out.Sources = sourceRefs(results)
	out.Grounded = groundingCheck(completion.Content, results)
	if !out.Grounded {
		log.Printf("rag: answer for conversation %s failed grounding check", conv.ID)
	}

	if err := s.conversations.AppendAssistant(ctx, conv.ID, out.Answer, out.Sources, out.TokensUsed); err != nil {
		return nil, err
	}
	return out, nil
}

// persistTurn saves a user/assistant pair atomically enough for the gated
// path, where no generation happens in between.
func (s *RAGService) persistTurn(ctx context.Context, conversationID, query, answer string, sources []domain.SourceRef, tokens int) error {
	if err := s.conversations.AppendUser(ctx, conversationID, query); err != nil {
		return err
	}
	return s.conversations.AppendAssistant(ctx, conversationID, answer, sources, tokens)
}

const ragSystemPrompt = "You are a research assistant answering questions strictly from the " +
	"provided astronomy paper excerpts. Cite sources with bracketed numbers like [1]. " +
	"If the excerpts do not support an answer, say so plainly. Structure every answer " +
	"with these markdown sections in order: " +
	sectionKeyFindings + ", " + sectionEvidence + ", " + sectionConclusions + ", " + sectionFollowUps + "."

func buildPrompt(query string, history []domain.Message, results []domain.SearchResult) string {
	var b strings.Builder

	if h := FormatForPrompt(history); h != "" {
		b.WriteString(h)
		b.WriteString("\n")
	}

	b.WriteString("PAPER EXCERPTS:\n")
	for i, r := range results {
		text := firstNonEmpty(r.Abstract, r.Snippet)
		fmt.Fprintf(&b, "[%d] %s", i+1, r.Title)
		if r.Authors != "" {
			fmt.Fprintf(&b, " (%s)", r.Authors)
		}
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	b.WriteString("CURRENT QUESTION: ")
	b.WriteString(query)
	return b.String()
}

func sourceRefs(results []domain.SearchResult) []domain.SourceRef {
	refs := make([]domain.SourceRef, len(results))
	for i, r := range results {
		refs[i] = domain.SourceRef{
			PaperID: r.PaperID,
			Title:   r.Title,
			Authors: r.Authors,
			Score:   r.Score,
			Source:  r.Source,
		}
	}
	return refs
}

func fallbackResponse() string {
	return "I ran into a problem generating an answer just now. Your question was saved; " +
		"please try asking again in a moment."
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// genericPhrases flag answers produced from the model's priors instead of
// the excerpts.
var genericPhrases = []string{
	"as an ai",
	"i don't have access",
	"i do not have access",
	"based on my training",
	"i cannot browse",
}

// groundingCheck reports whether an answer appears anchored in the
// retrieved excerpts. It never blocks delivery, only flags.
func groundingCheck(answer string, results []domain.SearchResult) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}

	for _, m := range citationMarker.FindAllStringSubmatch(answer, -1) {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		if n >= 1 && n <= len(results) {
			return true
		}
	}

	// No citation markers: accept when a source title substantially
	// appears in the answer.
	for _, r := range results {
		title := strings.ToLower(strings.TrimSpace(r.Title))
		if len(title) >= 10 && strings.Contains(lower, title) {
			return true
		}
	}
	return false
}
