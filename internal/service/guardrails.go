package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/helioscope-ai/helioscope/internal/openai"
)

const (
	classifierMaxTokens   = 10
	classifierTemperature = 0.1
	defaultClassifyWait   = 10 * time.Second

	labelInScope    = "ASTRONOMY"
	labelOutOfScope = "NOT_ASTRONOMY"
)

// Gate reason prefixes, surfaced in responses and logs.
const (
	ReasonDenylist   = "denylist"
	ReasonKeyword    = "keyword"
	ReasonClassifier = "classifier"
	ReasonFailOpen   = "fail_open"
)

// CompletionClient is the LLM surface the guardrail and orchestrator share.
type CompletionClient interface {
	Complete(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResult, error)
}

// GuardrailDecision is the outcome of gating one query.
type GuardrailDecision struct {
	Allowed bool
	Reason  string
}

// offTopicPatterns catch queries that are clearly about something else.
// Checked before the allowlist so "recipe for star-shaped cookies" is
// rejected even though it mentions stars.
var offTopicPatterns = []struct {
	topic string
	re    *regexp.Regexp
}{
	{"cooking", regexp.MustCompile(`(?i)\b(recipe|cooking|baking|ingredient|cuisine|restaurant)\b`)},
	{"sports", regexp.MustCompile(`(?i)\b(football|soccer|basketball|baseball|tennis|olympics|championship)\b`)},
	{"politics", regexp.MustCompile(`(?i)\b(election|president|congress|senate|politician|legislation)\b`)},
	{"medicine", regexp.MustCompile(`(?i)\b(diagnosis|symptom|medication|vaccine|therapy|disease)\b`)},
	{"business", regexp.MustCompile(`(?i)\b(stock market|invest(?:ing|ment)|startup|revenue|marketing)\b`)},
	{"programming", regexp.MustCompile(`(?i)\b(javascript|python code|debugging|compiler|web framework)\b`)},
	{"travel", regexp.MustCompile(`(?i)\b(vacation|itinerary|hotel|flight booking|tourist)\b`)},
	{"fashion", regexp.MustCompile(`(?i)\b(fashion|outfit|clothing brand|wardrobe)\b`)},
	{"music", regexp.MustCompile(`(?i)\b(album|concert|playlist|song lyrics|band tour)\b`)},
	{"movies", regexp.MustCompile(`(?i)\b(movie|film review|box office|tv series|actor)\b`)},
}

// Domain keyword allowlist, grouped the way the corpus is described:
// core topics, physics terms, observational terms.
var inScopeKeywords = []string{
	// core topics
	"galaxy", "galaxies", "star", "stellar", "planet", "exoplanet", "asteroid",
	"comet", "nebula", "supernova", "black hole", "neutron star", "pulsar",
	"quasar", "cosmology", "universe", "solar system", "milky way", "astronomy",
	"astrophysics", "astrophysical",
	// physics terms
	"redshift", "dark matter", "dark energy", "gravitational", "relativity",
	"accretion", "magnetosphere", "nucleosynthesis", "interstellar", "cosmic",
	"luminosity", "spectral",
	// observational terms
	"telescope", "spectroscopy", "photometry", "observatory", "survey data",
	"light curve", "radial velocity", "transit", "parallax", "interferometry",
}

// GuardrailService gates chat queries to the corpus domain. It fails open:
// when the classifier is unavailable or errors, the query goes through.
type GuardrailService struct {
	llm     CompletionClient
	timeout time.Duration
}

// NewGuardrailService creates a new GuardrailService. llm may be nil, which
// reduces the gate to its regex and keyword stages.
func NewGuardrailService(llm CompletionClient, timeout time.Duration) *GuardrailService {
	if timeout <= 0 {
		timeout = defaultClassifyWait
	}
	return &GuardrailService{llm: llm, timeout: timeout}
}

// Check gates a query: denylist first, then keyword allowlist, then the LLM
// classifier, then fail-open.
func (s *GuardrailService) Check(ctx context.Context, query string) GuardrailDecision {
	for _, p := range offTopicPatterns {
		if p.re.MatchString(query) {
			return GuardrailDecision{Allowed: false, Reason: fmt.Sprintf("%s:%s", ReasonDenylist, p.topic)}
		}
	}

	lower := strings.ToLower(query)
	for _, kw := range inScopeKeywords {
		if strings.Contains(lower, kw) {
			return GuardrailDecision{Allowed: true, Reason: fmt.Sprintf("%s:%s", ReasonKeyword, kw)}
		}
	}

	if s.llm == nil {
		return GuardrailDecision{Allowed: true, Reason: ReasonFailOpen}
	}

	label, err := s.classify(ctx, query)
	if err != nil {
		log.Printf("guardrails: classifier unavailable, allowing query: %v", err)
		return GuardrailDecision{Allowed: true, Reason: ReasonFailOpen}
	}
	if label == labelOutOfScope {
		return GuardrailDecision{Allowed: false, Reason: fmt.Sprintf("%s:%s", ReasonClassifier, labelOutOfScope)}
	}
	return GuardrailDecision{Allowed: true, Reason: fmt.Sprintf("%s:%s", ReasonClassifier, labelInScope)}
}

func (s *GuardrailService) classify(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.llm.Complete(ctx, openai.CompletionRequest{
		System: "You classify whether a question is about astronomy or astrophysics research. " +
			"Answer with exactly one word: ASTRONOMY or NOT_ASTRONOMY.",
		Prompt:      query,
		MaxTokens:   classifierMaxTokens,
		Temperature: classifierTemperature,
	})
	if err != nil {
		return "", err
	}

	label := strings.ToUpper(strings.TrimSpace(result.Content))
	if strings.Contains(label, labelOutOfScope) {
		return labelOutOfScope, nil
	}
	if strings.Contains(label, labelInScope) {
		return labelInScope, nil
	}
	return "", fmt.Errorf("unexpected classifier output %q", result.Content)
}

// OutOfScopeResponse is the canned reply for gated queries.
func OutOfScopeResponse() string {
	return "I can only help with questions about astronomy and astrophysics research. " +
		"Try asking about topics like galaxies, exoplanets, cosmology, or stellar physics."
}

// NoResultsResponse is the canned reply when retrieval finds nothing.
func NoResultsResponse() string {
	return "I couldn't find any papers in the corpus relevant to that question. " +
		"Try rephrasing it or asking about a different astronomy topic."
}
