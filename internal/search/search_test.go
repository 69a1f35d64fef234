package search

import (
	"strings"
	"testing"

	"easel/api/internal/canvas"
)

func TestExtractTextCollectsNodeStrings(t *testing.T) {
	data := canvas.Data{Nodes: []canvas.Node{
		{ID: "n1", Data: map[string]any{"title": "Research plan", "count": 3}},
		{ID: "n2", Data: map[string]any{"title": "Sources", "body": "primary material"}},
	}}

	text := ExtractText(data)
	for _, want := range []string{"Research plan", "Sources", "primary material"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in extracted text, got %q", want, text)
		}
	}
	if strings.Contains(text, "3") {
		t.Errorf("non-string payload values must be skipped, got %q", text)
	}
}

func TestExtractTextDeduplicates(t *testing.T) {
	data := canvas.Data{Nodes: []canvas.Node{
		{ID: "n1", Data: map[string]any{"title": "same"}},
		{ID: "n2", Data: map[string]any{"title": "same"}},
	}}

	if got := ExtractText(data); got != "same" {
		t.Errorf("expected deduplicated text %q, got %q", "same", got)
	}
}

func TestExtractTextEmptyCanvas(t *testing.T) {
	if got := ExtractText(canvas.Data{}); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestNewCanvasRecord(t *testing.T) {
	data := canvas.Data{Nodes: []canvas.Node{
		{ID: "n1", Data: map[string]any{"title": "hello"}},
	}}

	record := NewCanvasRecord("cvs-1", "My canvas", data)
	if record.ID != "cvs-1" || record.Title != "My canvas" {
		t.Errorf("unexpected record identity: %+v", record)
	}
	if record.Content != "hello" {
		t.Errorf("expected content %q, got %q", "hello", record.Content)
	}
}
