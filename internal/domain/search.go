package domain

// SearchMode selects which retrieval backends serve a query.
type SearchMode string

const (
	SearchModeLexical      SearchMode = "lexical"
	SearchModeVectorLocal  SearchMode = "vector_local"
	SearchModeVectorRemote SearchMode = "vector_remote"
	SearchModeCombined     SearchMode = "combined"
)

// Result source labels.
const (
	SourceLexical      = "lexical"
	SourceVectorLocal  = "vector_local"
	SourceVectorRemote = "vector_remote"
)

// SearchResult is one retrieval hit, normalized across backends. Score is
// backend-native and not calibrated across sources.
type SearchResult struct {
	PaperID    string
	ChunkID    string
	Title      string
	Authors    string
	Abstract   string
	Snippet    string
	Categories []string
	Score      float64
	Source     string
}

// IsValidSearchMode checks if a SearchMode is valid
func IsValidSearchMode(m SearchMode) bool {
	switch m {
	case SearchModeLexical, SearchModeVectorLocal, SearchModeVectorRemote, SearchModeCombined:
		return true
	}
	return false
}
