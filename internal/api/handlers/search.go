package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/helioscope-ai/helioscope/internal/api"
	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]domain.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	Limit int    `json:"limit"`
}

type SearchResultResponse struct {
	PaperID    string   `json:"paper_id"`
	ChunkID    string   `json:"chunk_id,omitempty"`
	Title      string   `json:"title"`
	Authors    string   `json:"authors,omitempty"`
	Abstract   string   `json:"abstract,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Score      float64  `json:"score"`
	Source     string   `json:"source"`
}

type SearchResponse struct {
	Query   string                  `json:"query"`
	Mode    string                  `json:"mode"`
	Results []*SearchResultResponse `json:"results"`
}

func searchResultToResponse(r domain.SearchResult) *SearchResultResponse {
	return &SearchResultResponse{
		PaperID:    r.PaperID,
		ChunkID:    r.ChunkID,
		Title:      r.Title,
		Authors:    r.Authors,
		Abstract:   r.Abstract,
		Snippet:    r.Snippet,
		Categories: r.Categories,
		Score:      r.Score,
		Source:     r.Source,
	}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	mode := domain.SearchModeCombined
	if req.Mode != "" {
		mode = domain.SearchMode(req.Mode)
		if !domain.IsValidSearchMode(mode) {
			api.Error(w, http.StatusBadRequest, "invalid search mode")
			return
		}
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query: req.Query,
		Mode:  mode,
		Limit: req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = searchResultToResponse(res)
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Query:   req.Query,
		Mode:    string(mode),
		Results: responses,
	})
}
