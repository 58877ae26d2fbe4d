package aggregator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"
)

// SeedItem is a bundled demo news record.
type SeedItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Link        string    `json:"link"`
	Slug        string    `json:"slug"`
	Date        time.Time `json:"date"`
}

//go:embed seed.json
var seedJSON []byte

// DefaultSeed returns the bundled seed records.
func DefaultSeed() ([]SeedItem, error) {
	var items []SeedItem
	if err := json.Unmarshal(seedJSON, &items); err != nil {
		return nil, fmt.Errorf("decode seed news: %w", err)
	}
	return items, nil
}
