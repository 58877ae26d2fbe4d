package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/IshaanNene/newsblend/internal/aggregator"
	"github.com/IshaanNene/newsblend/internal/types"
)

// maxBodyBytes bounds insert request bodies.
const maxBodyBytes = 1 << 20

// testScrapePreview is the number of items returned by a dry-run scrape.
const testScrapePreview = 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"message":   "Server is running with extended features",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Content.Posts(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch posts", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, items)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Content.GetCombinedContent(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to combine content", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, items)
}

func (s *Server) handleDebugWordPress(w http.ResponseWriter, r *http.Request) {
	inspection, err := s.deps.WordPress.Inspect(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch WordPress posts", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, inspection)
}

// handleNews serves the seed list, or a store page when page or limit is
// given.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("limit") {
		s.jsonResponse(w, http.StatusOK, s.deps.Content.SeedNews())
		return
	}

	page := queryInt(q.Get("page"), 1)
	limit := queryInt(q.Get("limit"), s.deps.Pages.DefaultLimit())

	result, err := s.deps.Pages.GetPage(r.Context(), page, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch paginated news", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// queryInt parses a query value, returning def for missing or malformed
// input.
func queryInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleTestScrape(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Scraper.ScrapeAll(r.Context())
	preview := items
	if len(preview) > testScrapePreview {
		preview = preview[:testScrapePreview]
	}
	if preview == nil {
		preview = []types.ScrapedItem{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message": "Test scrape completed",
		"count":   len(items),
		"items":   preview,
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.scrapeKey != "" {
		key := r.Header.Get("x-scrape-key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.scrapeKey)) != 1 {
			s.errorResponse(w, http.StatusForbidden, "Forbidden - invalid scrape key", nil)
			return
		}
	}

	s.logger.Info("manual scrape triggered")
	result, err := s.deps.Scheduler.ScrapeNow(r.Context())
	if err != nil {
		if errors.Is(err, types.ErrScrapeInProgress) {
			s.errorResponse(w, http.StatusConflict, "Scrape already in progress", err)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Scraping failed", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message":    "Scraping completed",
		"scraped":    result.Scraped,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"failed":     result.Failed,
	})
}

func (s *Server) handleStoreNews(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Content.StoreNews(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch MongoDB news", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, items)
}

// InsertRequest is one manually submitted news item.
type InsertRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Link        string `json:"link"`
	Date        string `json:"date"`
	ImageURL    string `json:"imageUrl"`
}

// insertBody accepts either a single item or {"items": [...]}.
type insertBody struct {
	InsertRequest
	Items []InsertRequest `json:"items"`
}

// Document validates the request and converts it to a store document. A
// missing date becomes now; a missing link becomes a synthetic URN.
func (req InsertRequest) Document(now time.Time) (types.NewsDocument, error) {
	var missing []string
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(req.Source) == "" {
		missing = append(missing, "source")
	}
	if len(missing) > 0 {
		return types.NewsDocument{}, &types.ValidationError{Fields: missing}
	}

	date := now
	if d := strings.TrimSpace(req.Date); d != "" {
		parsed, err := dateparse.ParseIn(d, time.UTC)
		if err != nil {
			return types.NewsDocument{}, &types.ValidationError{Fields: []string{"date"}}
		}
		date = parsed
	}

	link := strings.TrimSpace(req.Link)
	if link == "" {
		link = aggregator.SyntheticLinkPrefix + uuid.NewString()
	}

	return types.NewsDocument{
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		Source:      req.Source,
		Link:        link,
		Date:        date,
		ImageURL:    req.ImageURL,
		ScrapedAt:   now,
	}, nil
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var body insertBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	if body.Items != nil {
		s.insertBatch(w, r, body.Items)
		return
	}

	doc, err := body.InsertRequest.Document(s.now())
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Missing required fields", err)
		return
	}

	stored, err := s.deps.Store.Insert(r.Context(), doc)
	switch {
	case err == nil:
		s.jsonResponse(w, http.StatusCreated, stored)
	case types.IsValidation(err):
		s.errorResponse(w, http.StatusBadRequest, "Missing required fields", err)
	case errors.Is(err, types.ErrDuplicateKey):
		s.errorResponse(w, http.StatusConflict, "News item with this link already exists", err)
	default:
		s.errorResponse(w, http.StatusInternalServerError, "Failed to insert news item", err)
	}
}

// insertBatch validates every item before inserting any, then inserts them
// in order, skipping links that already exist. A batch is not atomic: when
// the store fails midway the response is a 500 that still lists the items
// written before the failure.
func (s *Server) insertBatch(w http.ResponseWriter, r *http.Request, reqs []InsertRequest) {
	now := s.now()
	docs := make([]types.NewsDocument, 0, len(reqs))
	for i, req := range reqs {
		doc, err := req.Document(now)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Missing required fields in item "+strconv.Itoa(i), err)
			return
		}
		docs = append(docs, doc)
	}

	inserted := make([]*types.NewsDocument, 0, len(docs))
	for _, doc := range docs {
		stored, err := s.deps.Store.Insert(r.Context(), doc)
		if err != nil {
			if errors.Is(err, types.ErrDuplicateKey) {
				s.logger.Debug("skipping existing link", "link", doc.Link)
				continue
			}
			s.logger.Error("batch insert stopped", "link", doc.Link, "inserted", len(inserted), "error", err)
			s.jsonResponse(w, http.StatusInternalServerError, map[string]any{
				"success":  false,
				"error":    "Failed to insert news items",
				"details":  err.Error(),
				"count":    len(inserted),
				"inserted": inserted,
			})
			return
		}
		inserted = append(inserted, stored)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"count":    len(inserted),
		"inserted": inserted,
	})
}
