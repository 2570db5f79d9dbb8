package service

import (
	"regexp"
	"strings"

	"github.com/helioscope-ai/helioscope/internal/domain"
)

const (
	unknownAuthors   = "Unknown Authors"
	maxAuthorsLength = 100
	headerScanChars  = 500
)

// leadingDigitsAuthors matches an author line that PDF extraction prefixed
// with page or affiliation numbers, e.g. "1 2 3 Jane Doe, Richard Roe".
var leadingDigitsAuthors = regexp.MustCompile(`^(?:\d+\s+)+([A-Z][A-Za-z.,\-\s]+)`)

// AuthorRepair detects author strings mangled during PDF text extraction
// and recovers a cleaner value from the paper's full text header.
type AuthorRepair struct{}

// NewAuthorRepair creates a new AuthorRepair instance
func NewAuthorRepair() *AuthorRepair {
	return &AuthorRepair{}
}

// Repair returns a repaired author string, or the stored value when it
// looks healthy or no better candidate exists.
func (a *AuthorRepair) Repair(p *domain.Paper) string {
	if p == nil {
		return ""
	}
	if !a.corrupt(p) {
		return p.Authors
	}
	if fixed := a.fromHeader(p.FullText); fixed != "" {
		return fixed
	}
	return p.Authors
}

// corrupt flags the failure shapes extraction produces: placeholder values,
// numeric junk prefixes, or headers that swallowed the affiliation block.
func (a *AuthorRepair) corrupt(p *domain.Paper) bool {
	authors := strings.TrimSpace(p.Authors)
	if authors == "" || authors == unknownAuthors {
		return true
	}
	if len([]rune(authors)) > maxAuthorsLength {
		return true
	}
	if leadingDigitsAuthors.MatchString(authors) {
		return true
	}
	if p.FullText != "" {
		head := p.FullText
		if r := []rune(head); len(r) > 200 {
			head = string(r[:200])
		}
		// The raw header bleeding into the authors field is a known
		// extraction glitch.
		if len(authors) > 40 && strings.Contains(head, authors) {
			return true
		}
	}
	return false
}

// fromHeader pulls an author line out of the text between the title and the
// abstract marker.
func (a *AuthorRepair) fromHeader(fullText string) string {
	if fullText == "" {
		return ""
	}
	head := fullText
	if r := []rune(head); len(r) > headerScanChars {
		head = string(r[:headerScanChars])
	}

	if i := strings.Index(strings.ToUpper(head), "ABSTRACT"); i > 0 {
		head = head[:i]
	}

	for _, line := range strings.Split(head, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := leadingDigitsAuthors.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
		if looksLikeAuthorLine(line) {
			return line
		}
	}
	return ""
}

// looksLikeAuthorLine accepts comma-separated capitalized names and rejects
// title-ish or affiliation-ish lines.
func looksLikeAuthorLine(line string) bool {
	if !strings.Contains(line, ",") && !strings.Contains(line, " and ") {
		return false
	}
	if len([]rune(line)) > maxAuthorsLength {
		return false
	}
	if strings.ContainsAny(line, "0123456789@") {
		return false
	}
	r := []rune(line)
	return r[0] >= 'A' && r[0] <= 'Z'
}
