package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/newsblend/internal/types"
)

func exportItems() []types.ScrapedItem {
	return []types.ScrapedItem{
		{Title: "Baustelle, Innenstadt", Link: "https://x/1", Description: "Sperrung", Date: time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), Source: "Stadt Dortmund"},
		{Title: "Stadtfest", Link: "https://x/2", Source: "Stadt Dortmund", ImageURL: "https://x/img.jpg"},
	}
}

func TestExportJSONL(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewExporter("JSONL", &buf, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Export(exportItems()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var got types.ScrapedItem
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(exportItems()[1], got); diff != "" {
		t.Errorf("item mismatch (-want +got):\n%s", diff)
	}
}

func TestExportJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	e, _ := NewExporter(FormatJSON, &buf, testLogger)
	if err := e.Export(nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("got %q, want []", got)
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	e, _ := NewExporter(FormatCSV, &buf, testLogger)
	if err := e.Export(exportItems()); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		csvHeader,
		{"Baustelle, Innenstadt", "https://x/1", "Sperrung", "2025-03-15T10:30:00Z", "Stadt Dortmund", ""},
		{"Stadtfest", "https://x/2", "", "", "Stadt Dortmund", "https://x/img.jpg"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	if _, err := NewExporter("xml", &bytes.Buffer{}, testLogger); err == nil {
		t.Error("expected error for xml")
	}
}
