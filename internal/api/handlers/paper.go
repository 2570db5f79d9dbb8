package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/helioscope-ai/helioscope/internal/api"
	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/service"
)

type PaperService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*domain.Paper, error)
	GetByID(ctx context.Context, id string) (*domain.Paper, error)
	Update(ctx context.Context, input service.IngestInput) (*domain.Paper, error)
	Delete(ctx context.Context, id string) error
	ListPapers(ctx context.Context, input service.ListPapersInput) (*service.ListPapersOutput, error)
	CorpusStats(ctx context.Context) (*domain.CorpusStats, error)
}

type PaperHandler struct {
	svc PaperService
}

func NewPaperHandler(svc PaperService) *PaperHandler {
	return &PaperHandler{svc: svc}
}

type IngestPaperRequest struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Authors         string   `json:"authors"`
	Abstract        string   `json:"abstract"`
	Categories      []string `json:"categories"`
	PublishedDate   string   `json:"published_date"`
	PDFURL          string   `json:"pdf_url"`
	FullText        string   `json:"full_text"`
	Version         string   `json:"version"`
	ExtractFullText bool     `json:"extract_full_text"`
}

type PaperResponse struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       string   `json:"authors"`
	Abstract      string   `json:"abstract"`
	Categories    []string `json:"categories"`
	PublishedDate string   `json:"published_date,omitempty"`
	PDFURL        string   `json:"pdf_url,omitempty"`
	Version       string   `json:"version,omitempty"`
	HasFullText   bool     `json:"has_full_text"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func paperToResponse(p *domain.Paper) *PaperResponse {
	resp := &PaperResponse{
		ID:          p.ID,
		Title:       p.Title,
		Authors:     p.Authors,
		Abstract:    p.Abstract,
		Categories:  p.Categories,
		PDFURL:      p.PDFURL,
		Version:     p.Version,
		HasFullText: p.FullText != "",
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
	if p.PublishedDate != nil {
		resp.PublishedDate = p.PublishedDate.Format("2006-01-02")
	}
	return resp
}

func (r *IngestPaperRequest) toInput() (service.IngestInput, error) {
	input := service.IngestInput{
		ID:              r.ID,
		Title:           r.Title,
		Authors:         r.Authors,
		Abstract:        r.Abstract,
		Categories:      r.Categories,
		PDFURL:          r.PDFURL,
		FullText:        r.FullText,
		Version:         r.Version,
		ExtractFullText: r.ExtractFullText,
	}
	if r.PublishedDate != "" {
		parsed, err := time.Parse("2006-01-02", r.PublishedDate)
		if err != nil {
			return input, err
		}
		input.PublishedDate = &parsed
	}
	return input, nil
}

func (h *PaperHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}

	input, err := req.toInput()
	if err != nil {
		api.Error(w, http.StatusBadRequest, "published_date must be YYYY-MM-DD")
		return
	}

	paper, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, paperToResponse(paper))
}

func (h *PaperHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	paper, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, paperToResponse(paper))
}

func (h *PaperHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req IngestPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}

	req.ID = id
	input, err := req.toInput()
	if err != nil {
		api.Error(w, http.StatusBadRequest, "published_date must be YYYY-MM-DD")
		return
	}

	paper, err := h.svc.Update(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, paperToResponse(paper))
}

func (h *PaperHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type PaperListResponse struct {
	Items   []*PaperResponse `json:"items"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

func (h *PaperHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.ListPapers(r.Context(), service.ListPapersInput{
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*PaperResponse, len(output.Items))
	for i, p := range output.Items {
		responses[i] = paperToResponse(p)
	}

	api.Success(w, http.StatusOK, PaperListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *PaperHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.CorpusStats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, stats)
}
