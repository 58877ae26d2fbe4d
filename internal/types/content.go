package types

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentType tags the provenance of a ContentItem.
type ContentType string

const (
	TypeWP   ContentType = "wp"
	TypeNews ContentType = "news"
)

// Rendered wraps an HTML-safe string the way the WordPress REST API does.
type Rendered struct {
	Rendered string `json:"rendered"`
}

// ContentItem is the canonical, source-agnostic record returned to clients.
// It is a read-time projection and is never persisted.
type ContentItem struct {
	ID      string      `json:"id"`
	Title   Rendered    `json:"title"`
	Content Rendered    `json:"content"`
	Excerpt Rendered    `json:"excerpt"`
	Date    time.Time   `json:"date"`
	Slug    string      `json:"slug"`
	Type    ContentType `json:"type"`
	Source  string      `json:"source"`
	Link    string      `json:"link,omitempty"`
}

// WPPost is a post as returned by the WordPress REST API with the
// id,title,content,excerpt,date,slug,featured_media,link field projection.
type WPPost struct {
	ID            int64    `json:"id"`
	Date          string   `json:"date"`
	Slug          string   `json:"slug"`
	Link          string   `json:"link"`
	FeaturedMedia int64    `json:"featured_media"`
	Title         Rendered `json:"title"`
	Content       Rendered `json:"content"`
	Excerpt       Rendered `json:"excerpt"`
}

// NewsDocument is the persisted news entity. Link is the deduplication key.
type NewsDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"         json:"_id"`
	Title       string             `bson:"title"                 json:"title"`
	Link        string             `bson:"link"                  json:"link"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Content     string             `bson:"content,omitempty"     json:"content,omitempty"`
	Date        time.Time          `bson:"date"                  json:"date"`
	Source      string             `bson:"source"                json:"source"`
	ImageURL    string             `bson:"imageUrl,omitempty"    json:"imageUrl,omitempty"`
	ScrapedAt   time.Time          `bson:"scrapedAt"             json:"scrapedAt"`
	CreatedAt   time.Time          `bson:"createdAt"             json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"             json:"updatedAt"`
}

// Normalize trims the string fields that the store treats as trimmed.
func (d *NewsDocument) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Link = strings.TrimSpace(d.Link)
	d.Description = strings.TrimSpace(d.Description)
	d.Source = strings.TrimSpace(d.Source)
	d.ImageURL = strings.TrimSpace(d.ImageURL)
}

// Validate reports every required field that is missing.
func (d *NewsDocument) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.Link) == "" {
		missing = append(missing, "link")
	}
	if strings.TrimSpace(d.Source) == "" {
		missing = append(missing, "source")
	}
	if d.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// ScrapedItem is one record extracted from a news listing page.
type ScrapedItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"`
	ImageURL    string    `json:"imageUrl,omitempty"`
}

// ToDocument converts a scraped item into a store document stamped with
// the given ingestion time.
func (s ScrapedItem) ToDocument(scrapedAt time.Time) NewsDocument {
	return NewsDocument{
		Title:       s.Title,
		Link:        s.Link,
		Description: s.Description,
		Date:        s.Date,
		Source:      s.Source,
		ImageURL:    s.ImageURL,
		ScrapedAt:   scrapedAt,
	}
}
