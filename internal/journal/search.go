package journal

import (
	"strings"

	"github.com/starford/vellum/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

const defaultSearchLimit = 20

// searchBody is the searchable text of a scene: the text of its live elements
// in scene order.
func searchBody(elements []*models.Element) string {
	var b strings.Builder
	for _, el := range elements {
		if el.IsDeleted || el.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(el.Text)
	}
	return b.String()
}
