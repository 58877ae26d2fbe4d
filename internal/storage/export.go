package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/newsblend/internal/types"
)

// Export formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// csvHeader is the column order of CSV exports.
var csvHeader = []string{"title", "link", "description", "date", "source", "imageUrl"}

// Exporter writes scraped items to a stream without persisting them.
type Exporter struct {
	format string
	w      io.Writer
	logger *slog.Logger
}

// NewExporter creates an exporter for json, jsonl or csv.
func NewExporter(format string, w io.Writer, logger *slog.Logger) (*Exporter, error) {
	format = strings.ToLower(format)
	switch format {
	case FormatJSON, FormatJSONL, FormatCSV:
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
	return &Exporter{
		format: format,
		w:      w,
		logger: logger.With("component", format+"_exporter"),
	}, nil
}

// Name returns the export format.
func (e *Exporter) Name() string { return e.format }

// Export writes items in the configured format.
func (e *Exporter) Export(items []types.ScrapedItem) error {
	var err error
	switch e.format {
	case FormatJSON:
		err = e.writeJSON(items)
	case FormatJSONL:
		err = e.writeJSONL(items)
	case FormatCSV:
		err = e.writeCSV(items)
	}
	if err != nil {
		return err
	}
	e.logger.Debug("items exported", "items", len(items))
	return nil
}

func (e *Exporter) writeJSON(items []types.ScrapedItem) error {
	if items == nil {
		items = []types.ScrapedItem{}
	}
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func (e *Exporter) writeJSONL(items []types.ScrapedItem) error {
	enc := json.NewEncoder(e.w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
	}
	return nil
}

func (e *Exporter) writeCSV(items []types.ScrapedItem) error {
	w := csv.NewWriter(e.w)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, item := range items {
		var date string
		if !item.Date.IsZero() {
			date = item.Date.UTC().Format(time.RFC3339)
		}
		row := []string{item.Title, item.Link, item.Description, date, item.Source, item.ImageURL}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
