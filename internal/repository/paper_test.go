//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/pagination"
	"github.com/helioscope-ai/helioscope/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCursorForTest(t *testing.T, s string) *pagination.Cursor {
	t.Helper()
	c, err := pagination.DecodeCursor(s)
	require.NoError(t, err)
	return c
}

func newTestPaper(id, title, abstract string) *domain.Paper {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Paper{
		ID:         id,
		Title:      title,
		Authors:    "A. Vega, B. Osei",
		Abstract:   abstract,
		Categories: []string{"astro-ph.GA"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPaperRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPaperRepository(pool)

	p := newTestPaper("2301.00001", "Dark Matter Halos", "We measure rotation curves of dwarf galaxies.")
	p.PDFURL = "https://example.org/2301.00001.pdf"
	p.Version = "v3"
	require.NoError(t, repo.Create(ctx, p))

	retrieved, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, retrieved.Title)
	assert.Equal(t, p.Authors, retrieved.Authors)
	assert.Equal(t, []string{"astro-ph.GA"}, retrieved.Categories)
	assert.Equal(t, p.PDFURL, retrieved.PDFURL)
	assert.Equal(t, "v3", retrieved.Version)
	assert.Empty(t, retrieved.FullText)
}

func TestPaperRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPaperRepository(pool)

	p := newTestPaper("2301.00002", "First", "abstract")
	require.NoError(t, repo.Create(ctx, p))

	dup := newTestPaper("2301.00002", "Second", "abstract")
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrPaperAlreadyExists)
}

func TestPaperRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPaperRepository(pool)

	_, err := repo.GetByID(ctx, "9999.99999")
	assert.ErrorIs(t, err, domain.ErrPaperNotFound)
}

func TestPaperRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPaperRepository(pool)

	p := newTestPaper("2301.00003", "Before", "abstract")
	require.NoError(t, repo.Create(ctx, p))

	p.Title = "After"
	p.FullText = "full body text"
	require.NoError(t, repo.Update(ctx, p))

	retrieved, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", retrieved.Title)
	assert.Equal(t, "full body text", retrieved.FullText)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrPaperNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, p.ID), domain.ErrPaperNotFound)
}

func TestPaperRepository_SearchLexical(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPaperRepository(pool)

	require.NoError(t, repo.Create(ctx, newTestPaper("2301.00010", "Exoplanet Transit Timing", "We analyze transit timing variations in hot Jupiters.")))
	require.NoError(t, repo.Create(ctx, newTestPaper("2301.00011", "Galaxy Cluster Lensing", "Weak lensing mass maps of galaxy clusters.")))

	results, err := repo.SearchLexical(ctx, "transit timing exoplanet", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "2301.00010", results[0].PaperID)
	assert.Greater(t, results[0].Score, 0.0)

	none, err := repo.SearchLexical(ctx, "quantum chromodynamics lattice", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPaperRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPaperRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		p := newTestPaper(fmt.Sprintf("2301.1000%d", i), fmt.Sprintf("Paper %d", i), "abstract")
		p.CreatedAt = base.Add(time.Duration(i) * time.Second)
		p.UpdatedAt = p.CreatedAt
		require.NoError(t, repo.Create(ctx, p))
	}

	page1, err := repo.ListWithCursor(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, "Paper 4", page1.Items[0].Title)

	cursor := decodeCursorForTest(t, page1.NextCursor)
	page2, err := repo.ListWithCursor(ctx, cursor, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.Equal(t, "Paper 2", page2.Items[0].Title)
}

func TestPaperRepository_CorpusStats(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPaperRepository(pool)
	require.NoError(t, repo.Create(ctx, newTestPaper("2301.00020", "Stats Paper", "abstract")))

	stats, err := repo.CorpusStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PaperCount)
	assert.Equal(t, 0, stats.ChunkCount)
}
