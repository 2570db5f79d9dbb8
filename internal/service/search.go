package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/index"
	"github.com/helioscope-ai/helioscope/internal/pinecone"
	"github.com/helioscope-ai/helioscope/internal/telemetry"
)

const (
	defaultSearchLimit     = 10
	defaultSnippetMaxChars = 220
)

// QueryEmbedder embeds a query once; all vector backends share the result.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchPaperRepository is the lexical backend plus the authoritative paper
// record used to enrich vector hits.
type SearchPaperRepository interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
	GetByID(ctx context.Context, id string) (*domain.Paper, error)
}

// LocalIndexSearcher is the in-process vector index.
type LocalIndexSearcher interface {
	Search(query []float32, k int) ([]index.Hit, error)
}

// RemoteIndexSearcher is the remote vector store.
type RemoteIndexSearcher interface {
	QueryChunks(ctx context.Context, vector []float32, topK int) ([]pinecone.Match, error)
}

// ChunkVectorSearcher ranks stored chunks by vector similarity in the
// database. It backs vector search when no in-process index is loaded.
type ChunkVectorSearcher interface {
	SearchByVector(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error)
}

// AuthorRepairer fixes author strings mangled by PDF text extraction.
type AuthorRepairer interface {
	Repair(p *domain.Paper) string
}

// SearchInput is one retrieval request.
type SearchInput struct {
	Query string
	Mode  domain.SearchMode
	Limit int
}

// SearchService routes queries across the lexical and vector backends.
// Any backend may be nil; requesting a mode whose backend is missing is an
// error, and combined mode skips missing backends.
type SearchService struct {
	papers    SearchPaperRepository
	local     LocalIndexSearcher
	remote    RemoteIndexSearcher
	embedder  QueryEmbedder
	repairer  AuthorRepairer
	fallback  ChunkVectorSearcher
	searchLog SearchLogRepository
}

// NewSearchService creates a new SearchService instance
func NewSearchService(
	papers SearchPaperRepository,
	local LocalIndexSearcher,
	remote RemoteIndexSearcher,
	embedder QueryEmbedder,
	repairer AuthorRepairer,
) *SearchService {
	return &SearchService{
		papers:   papers,
		local:    local,
		remote:   remote,
		embedder: embedder,
		repairer: repairer,
	}
}

// WithVectorFallback routes local vector searches to the chunk table when
// no in-process index is loaded.
func (s *SearchService) WithVectorFallback(chunks ChunkVectorSearcher) *SearchService {
	s.fallback = chunks
	return s
}

// WithSearchLog enables best-effort query logging.
func (s *SearchService) WithSearchLog(repo SearchLogRepository) *SearchService {
	s.searchLog = repo
	return s
}

// Search executes one retrieval request. Results come back deduplicated by
// paper, sorted by score descending, truncated to the limit. Scores are
// backend-native and not comparable across sources.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]domain.SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		SearchMode: string(input.Mode),
	})
	defer span.End()

	started := time.Now()
	results, err := s.search(ctx, input)
	if err != nil {
		span.SetError(err)
	}
	if err == nil && s.searchLog != nil {
		entry := SearchLogEntry{
			Query:      strings.TrimSpace(input.Query),
			Mode:       input.Mode,
			Limit:      input.Limit,
			DurationMs: int(time.Since(started).Milliseconds()),
			Results:    logResults(results),
		}
		if _, logErr := s.searchLog.CreateSearchLog(ctx, entry); logErr != nil {
			log.Printf("search: failed to log query: %v", logErr)
		}
	}
	return results, err
}

func (s *SearchService) search(ctx context.Context, input SearchInput) ([]domain.SearchResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	mode := input.Mode
	if mode == "" {
		mode = domain.SearchModeCombined
	}
	if !domain.IsValidSearchMode(mode) {
		return nil, domain.ErrInvalidSearchMode
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var embedding []float32
	if mode != domain.SearchModeLexical {
		if s.embedder == nil {
			return nil, domain.ErrLLMUnavailable
		}
		var err error
		embedding, err = s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
	}

	switch mode {
	case domain.SearchModeLexical:
		return s.searchLexical(ctx, query, limit)
	case domain.SearchModeVectorLocal:
		results, err := s.searchLocal(ctx, embedding, limit)
		if err != nil {
			return nil, err
		}
		return finalize(results, limit), nil
	case domain.SearchModeVectorRemote:
		results, err := s.searchRemote(ctx, embedding, limit)
		if err != nil {
			return nil, err
		}
		return finalize(results, limit), nil
	default:
		return s.searchCombined(ctx, query, embedding, limit)
	}
}

func (s *SearchService) searchLexical(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if s.papers == nil {
		return nil, domain.ErrVectorStoreOffline
	}
	results, err := s.papers.SearchLexical(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Source = domain.SourceLexical
		results[i].Snippet = makeSnippet(firstNonEmpty(results[i].Snippet, results[i].Abstract))
	}
	return results, nil
}

func (s *SearchService) searchLocal(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if s.local == nil {
		return s.searchChunkTable(ctx, embedding, limit)
	}
	hits, err := s.local.Search(embedding, limit)
	if err != nil {
		if err == index.ErrNotInitialized {
			return s.searchChunkTable(ctx, embedding, limit)
		}
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, s.enrich(ctx, domain.SearchResult{
			PaperID: h.Meta.PaperID,
			ChunkID: h.Meta.ChunkID,
			Title:   h.Meta.Title,
			Authors: h.Meta.Authors,
			Snippet: makeSnippet(h.Meta.Text),
			Score:   float64(h.Score),
			Source:  domain.SourceVectorLocal,
		}))
	}
	return results, nil
}

// searchChunkTable is the database-backed vector search used when the
// in-process index is missing or not yet built.
func (s *SearchService) searchChunkTable(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if s.fallback == nil {
		return nil, domain.ErrIndexNotInitialized
	}
	results, err := s.fallback.SearchByVector(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Source = domain.SourceVectorLocal
		results[i].Snippet = makeSnippet(results[i].Snippet)
		results[i] = s.enrich(ctx, results[i])
	}
	return results, nil
}

func (s *SearchService) searchRemote(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if s.remote == nil {
		return nil, domain.ErrVectorStoreOffline
	}
	matches, err := s.remote.QueryChunks(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		r := domain.SearchResult{
			PaperID: metaString(m.Metadata, "paper_id"),
			ChunkID: m.ID,
			Title:   metaString(m.Metadata, "title"),
			Authors: metaString(m.Metadata, "authors"),
			Snippet: makeSnippet(metaString(m.Metadata, "text")),
			Score:   m.Score,
			Source:  domain.SourceVectorRemote,
		}
		if r.PaperID == "" {
			r.PaperID = paperIDFromChunkID(m.ID)
		}
		results = append(results, s.enrich(ctx, r))
	}
	return results, nil
}

// searchCombined fans out to every configured backend concurrently. A
// failing backend is logged and skipped; only all backends failing is an
// error.
func (s *SearchService) searchCombined(ctx context.Context, query string, embedding []float32, limit int) ([]domain.SearchResult, error) {
	type backendResult struct {
		source  string
		results []domain.SearchResult
		err     error
	}

	backends := []struct {
		source string
		run    func() ([]domain.SearchResult, error)
	}{}
	if s.papers != nil {
		backends = append(backends, struct {
			source string
			run    func() ([]domain.SearchResult, error)
		}{domain.SourceLexical, func() ([]domain.SearchResult, error) {
			return s.searchLexical(ctx, query, limit)
		}})
	}
	if s.local != nil || s.fallback != nil {
		backends = append(backends, struct {
			source string
			run    func() ([]domain.SearchResult, error)
		}{domain.SourceVectorLocal, func() ([]domain.SearchResult, error) {
			return s.searchLocal(ctx, embedding, limit)
		}})
	}
	if s.remote != nil {
		backends = append(backends, struct {
			source string
			run    func() ([]domain.SearchResult, error)
		}{domain.SourceVectorRemote, func() ([]domain.SearchResult, error) {
			return s.searchRemote(ctx, embedding, limit)
		}})
	}
	if len(backends) == 0 {
		return nil, domain.ErrVectorStoreOffline
	}

	out := make(chan backendResult, len(backends))
	var wg sync.WaitGroup
	for _, b := range backends {
		wg.Add(1)
		go func(source string, run func() ([]domain.SearchResult, error)) {
			defer wg.Done()
			results, err := run()
			out <- backendResult{source: source, results: results, err: err}
		}(b.source, b.run)
	}
	wg.Wait()
	close(out)

	var merged []domain.SearchResult
	failures := 0
	for br := range out {
		if br.err != nil {
			failures++
			log.Printf("search: %s backend failed: %v", br.source, br.err)
			continue
		}
		merged = append(merged, br.results...)
	}
	if failures == len(backends) {
		return nil, domain.ErrVectorStoreOffline
	}

	return finalize(merged, limit), nil
}

// enrich replaces vector-hit metadata with the authoritative paper record
// when the paper is present locally, and repairs mangled author strings.
func (s *SearchService) enrich(ctx context.Context, r domain.SearchResult) domain.SearchResult {
	if s.papers == nil || r.PaperID == "" {
		return r
	}
	paper, err := s.papers.GetByID(ctx, r.PaperID)
	if err != nil {
		return r
	}
	r.Title = paper.Title
	r.Authors = paper.Authors
	r.Abstract = paper.Abstract
	r.Categories = paper.Categories
	if s.repairer != nil {
		r.Authors = s.repairer.Repair(paper)
	}
	if r.Snippet == "" {
		r.Snippet = makeSnippet(paper.Abstract)
	}
	return r
}

// finalize deduplicates by paper, keeping the richer record and the higher
// score, then sorts by score descending and truncates.
func finalize(results []domain.SearchResult, limit int) []domain.SearchResult {
	best := make(map[string]domain.SearchResult, len(results))
	order := make([]string, 0, len(results))
	for _, r := range results {
		key := r.PaperID
		if key == "" {
			key = r.ChunkID
		}
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = r
			continue
		}
		merged := pickRicher(existing, r)
		if r.Score > merged.Score {
			merged.Score = r.Score
		}
		if existing.Score > merged.Score {
			merged.Score = existing.Score
		}
		best[key] = merged
	}

	out := make([]domain.SearchResult, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// pickRicher prefers the record with an abstract, falling back to field
// counts. Lexical hits carry the full paper row and usually win.
func pickRicher(a, b domain.SearchResult) domain.SearchResult {
	if a.Abstract == "" && b.Abstract != "" {
		b.Score = a.Score
		return mergeFields(b, a)
	}
	return mergeFields(a, b)
}

func mergeFields(primary, secondary domain.SearchResult) domain.SearchResult {
	if primary.Title == "" {
		primary.Title = secondary.Title
	}
	if primary.Authors == "" {
		primary.Authors = secondary.Authors
	}
	if primary.Snippet == "" {
		primary.Snippet = secondary.Snippet
	}
	if primary.ChunkID == "" {
		primary.ChunkID = secondary.ChunkID
	}
	if len(primary.Categories) == 0 {
		primary.Categories = secondary.Categories
	}
	return primary
}

func metaString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// paperIDFromChunkID recovers the paper id from the "{paper}_chunk_{n}"
// convention.
func paperIDFromChunkID(chunkID string) string {
	if i := strings.LastIndex(chunkID, "_chunk_"); i > 0 {
		return chunkID[:i]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func makeSnippet(content string) string {
	if content == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(content), " ")
	r := []rune(clean)
	if len(r) <= defaultSnippetMaxChars {
		return clean
	}
	return string(r[:defaultSnippetMaxChars-3]) + "..."
}
