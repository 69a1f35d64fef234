package search

import (
	"sort"
	"strings"

	"easel/api/internal/canvas"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over canvases.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// CanvasRecord is the data we index for a canvas: its title plus the text
// content of its current nodes.
type CanvasRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewCanvasRecord builds an index record from a canvas's replayed view. Node
// titles and text payloads are flattened into one content field; the order
// follows the view's parent-first node order so snippets read top-down.
func NewCanvasRecord(id, title string, data canvas.Data) CanvasRecord {
	return CanvasRecord{
		ID:      id,
		Title:   title,
		Content: ExtractText(data),
	}
}

// ExtractText collects the searchable text of a replayed canvas: the string
// payload fields of every node, deduplicated and joined with newlines.
func ExtractText(data canvas.Data) string {
	var parts []string
	seen := map[string]bool{}
	for _, node := range data.Nodes {
		for _, key := range textKeys(node.Data) {
			value, _ := node.Data[key].(string)
			value = strings.TrimSpace(value)
			if value == "" || seen[value] {
				continue
			}
			seen[value] = true
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, "\n")
}

// textKeys returns the payload keys holding plain text, in a stable order.
func textKeys(payload map[string]any) []string {
	var keys []string
	for key, value := range payload {
		if _, ok := value.(string); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
