//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paperResponse struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       string   `json:"authors"`
	Abstract      string   `json:"abstract"`
	Categories    []string `json:"categories"`
	PublishedDate string   `json:"published_date"`
	HasFullText   bool     `json:"has_full_text"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func ingestPaper(t *testing.T, env *E2ETestEnv, id, title, abstract string) paperResponse {
	t.Helper()

	resp, err := env.Post("/papers", map[string]interface{}{
		"id":             id,
		"title":          title,
		"authors":        "J. Vera, M. Okafor",
		"abstract":       abstract,
		"categories":     []string{"astro-ph.GA"},
		"published_date": "2023-01-15",
	})
	require.NoError(t, err)

	var paper paperResponse
	require.NoError(t, json.Unmarshal(resp.Data, &paper))
	return paper
}

func TestE2E_PaperLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("ingest paper", func(t *testing.T) {
		paper := ingestPaper(t, env, "2301.00001", "Dark Matter Halo Profiles",
			"We study the density profiles of dark matter halos in cosmological simulations.")
		assert.Equal(t, "2301.00001", paper.ID)
		assert.Equal(t, "Dark Matter Halo Profiles", paper.Title)
		assert.Equal(t, "2023-01-15", paper.PublishedDate)
		assert.NotEmpty(t, paper.CreatedAt)
	})

	t.Run("duplicate ingest rejected", func(t *testing.T) {
		_, err := env.Post("/papers", map[string]interface{}{
			"id":    "2301.00001",
			"title": "Dark Matter Halo Profiles",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 409")
	})

	t.Run("get paper", func(t *testing.T) {
		resp, err := env.Get("/papers/2301.00001")
		require.NoError(t, err)

		var paper paperResponse
		require.NoError(t, json.Unmarshal(resp.Data, &paper))
		assert.Equal(t, "Dark Matter Halo Profiles", paper.Title)
		assert.Equal(t, "J. Vera, M. Okafor", paper.Authors)
	})

	t.Run("get missing paper", func(t *testing.T) {
		_, err := env.Get("/papers/9999.99999")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
	})

	t.Run("update paper", func(t *testing.T) {
		resp, err := env.Put("/papers/2301.00001", map[string]interface{}{
			"title":    "Dark Matter Halo Profiles, Revisited",
			"abstract": "We revisit the density profiles of dark matter halos.",
		})
		require.NoError(t, err)

		var paper paperResponse
		require.NoError(t, json.Unmarshal(resp.Data, &paper))
		assert.Equal(t, "Dark Matter Halo Profiles, Revisited", paper.Title)
	})

	t.Run("delete paper", func(t *testing.T) {
		_, err := env.Delete("/papers/2301.00001")
		require.NoError(t, err)

		_, err = env.Get("/papers/2301.00001")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
	})
}

func TestE2E_ListPagination(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	for i := 1; i <= 5; i++ {
		ingestPaper(t, env, fmt.Sprintf("2302.%05d", i), fmt.Sprintf("Survey Paper %d", i),
			"A survey of galactic structure.")
	}

	var listResp struct {
		Items   []paperResponse `json:"items"`
		Cursor  string          `json:"cursor"`
		HasMore bool            `json:"has_more"`
	}

	resp, err := env.Get("/papers?limit=3")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp.Data, &listResp))
	assert.Len(t, listResp.Items, 3)
	assert.True(t, listResp.HasMore)
	require.NotEmpty(t, listResp.Cursor)

	resp, err = env.Get("/papers?limit=3&cursor=" + listResp.Cursor)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp.Data, &listResp))
	assert.Len(t, listResp.Items, 2)
	assert.False(t, listResp.HasMore)
}

func TestE2E_LexicalSearch(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingestPaper(t, env, "2303.00001", "Quasar Accretion Disks",
		"We model the accretion disks surrounding luminous quasars.")
	ingestPaper(t, env, "2303.00002", "Stellar Nucleosynthesis Yields",
		"Updated yields for massive star nucleosynthesis.")

	var searchResp struct {
		Query   string `json:"query"`
		Mode    string `json:"mode"`
		Results []struct {
			PaperID string  `json:"paper_id"`
			Title   string  `json:"title"`
			Score   float64 `json:"score"`
			Source  string  `json:"source"`
		} `json:"results"`
	}

	t.Run("matches on abstract terms", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]interface{}{
			"query": "quasar accretion",
			"mode":  "lexical",
		})
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(resp.Data, &searchResp))

		require.NotEmpty(t, searchResp.Results)
		assert.Equal(t, "2303.00001", searchResp.Results[0].PaperID)
		assert.Equal(t, "lexical", searchResp.Results[0].Source)
		assert.Greater(t, searchResp.Results[0].Score, 0.0)
	})

	t.Run("no matches", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]interface{}{
			"query": "exoplanet transit photometry",
			"mode":  "lexical",
		})
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(resp.Data, &searchResp))
		assert.Empty(t, searchResp.Results)
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		_, err := env.Post("/search", map[string]interface{}{
			"query": "quasar",
			"mode":  "psychic",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 400")
	})
}

func TestE2E_CorpusStats(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingestPaper(t, env, "2304.00001", "Galactic Winds", "Outflows from starburst galaxies.")
	ingestPaper(t, env, "2304.00002", "Cosmic Ray Transport", "Diffusion of cosmic rays in the halo.")

	resp, err := env.Get("/stats")
	require.NoError(t, err)

	var stats struct {
		PaperCount  int `json:"paper_count"`
		ChunkCount  int `json:"chunk_count"`
		PendingJobs int `json:"pending_jobs"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 2, stats.PaperCount)
	assert.Equal(t, 2, stats.PendingJobs)
}

func TestE2E_ChatGating(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var chatResp struct {
		ConversationID string `json:"conversation_id"`
		Answer         string `json:"answer"`
		GateReason     string `json:"gate_reason"`
		Grounded       bool   `json:"grounded"`
	}

	t.Run("off-topic query is deflected", func(t *testing.T) {
		resp, err := env.Post("/chat", map[string]interface{}{
			"query": "give me a good recipe for chocolate cake",
		})
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(resp.Data, &chatResp))

		assert.NotEmpty(t, chatResp.ConversationID)
		assert.NotEmpty(t, chatResp.GateReason)
		assert.NotEmpty(t, chatResp.Answer)
		assert.False(t, chatResp.Grounded)
	})

	t.Run("gated turn is persisted", func(t *testing.T) {
		resp, err := env.Get("/chat/history/" + chatResp.ConversationID)
		require.NoError(t, err)

		var history struct {
			Messages []struct {
				Type    string `json:"type"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &history))
		require.Len(t, history.Messages, 2)
		assert.Equal(t, "user", history.Messages[0].Type)
		assert.Equal(t, "assistant", history.Messages[1].Type)
	})

	t.Run("conversation stats", func(t *testing.T) {
		resp, err := env.Get("/chat/stats/" + chatResp.ConversationID)
		require.NoError(t, err)

		var stats struct {
			MessageCount      int `json:"message_count"`
			UserMessages      int `json:"user_messages"`
			AssistantMessages int `json:"assistant_messages"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &stats))
		assert.Equal(t, 2, stats.MessageCount)
		assert.Equal(t, 1, stats.UserMessages)
		assert.Equal(t, 1, stats.AssistantMessages)
	})

	t.Run("empty corpus gives no-results answer", func(t *testing.T) {
		resp, err := env.Post("/chat", map[string]interface{}{
			"query": "what do we know about pulsar timing arrays?",
			"mode":  "lexical",
		})
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(resp.Data, &chatResp))
		assert.NotEmpty(t, chatResp.Answer)
		assert.False(t, chatResp.Grounded)
	})
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	workDir := t.TempDir()

	t.Run("ingest from stdin", func(t *testing.T) {
		input := `{"id":"2305.00001","title":"Supernova Light Curves","abstract":"Photometric evolution of type Ia supernovae.","published_date":"2023-05-02"}`
		out, err := env.RunCLIWithInput(workDir, input, "ingest")
		require.NoError(t, err, out)
		assert.Contains(t, out, "2305.00001")
	})

	t.Run("batch ingest", func(t *testing.T) {
		input := strings.Join([]string{
			`{"id":"2305.00002","title":"Type II Progenitors","abstract":"Pre-explosion imaging of type II supernova progenitors."}`,
			`{"id":"2305.00003","title":"Shock Breakout","abstract":"Early-time emission from supernova shock breakout."}`,
		}, "\n")
		out, err := env.RunCLIWithInput(workDir, input, "ingest", "--batch")
		require.NoError(t, err, out)
		assert.Contains(t, out, "2 succeeded")
	})

	t.Run("get", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "get", "2305.00001")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Supernova Light Curves")
	})

	t.Run("list", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "list")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Found 3 papers")
	})

	t.Run("search", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "search", "shock breakout", "--mode", "lexical")
		require.NoError(t, err, out)
		assert.Contains(t, out, "2305.00003")
	})

	t.Run("stats", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "stats")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Papers: 3")
	})

	t.Run("delete", func(t *testing.T) {
		out, err := env.RunCLI(workDir, "delete", "2305.00001")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Deleted paper")

		out, err = env.RunCLI(workDir, "stats")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Papers: 2")
	})
}
