package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Jhoseto/factcheck-api/internal/protection"
)

// ErrPageProtected is returned when the target page is behind bot
// protection and no readable content could be fetched.
var ErrPageProtected = errors.New("page is protected from automated access")

// PageMetadata is what the analysis pipeline needs to know about a target
// page. The model is not trusted to report the title; we resolve it
// ourselves from the page markup.
type PageMetadata struct {
	Title       string
	SiteName    string
	Description string
	ContentText string // visible text, fed to the prompt for link analyses
}

// MetadataService fetches page metadata and readable text for link targets.
type MetadataService struct {
	timeout   time.Duration
	userAgent string
	detector  *protection.Detector
	logger    *slog.Logger
}

// NewMetadataService creates a new metadata service.
func NewMetadataService(timeout time.Duration, userAgent string, logger *slog.Logger) *MetadataService {
	return &MetadataService{
		timeout:   timeout,
		userAgent: userAgent,
		detector:  protection.NewDetector(),
		logger:    logger,
	}
}

// Fetch retrieves metadata for the target URL. OpenGraph tags win over
// document tags; site name falls back to the hostname.
func (s *MetadataService) Fetch(ctx context.Context, targetURL string) (*PageMetadata, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid target URL %q", targetURL)
	}

	meta := &PageMetadata{}
	var textParts []string
	var statusCode int
	var rawBody string

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		rawBody = string(r.Body)
	})
	c.OnHTML(`meta[property="og:title"]`, func(e *colly.HTMLElement) {
		if meta.Title == "" {
			meta.Title = strings.TrimSpace(e.Attr("content"))
		}
	})
	c.OnHTML(`meta[property="og:site_name"]`, func(e *colly.HTMLElement) {
		if meta.SiteName == "" {
			meta.SiteName = strings.TrimSpace(e.Attr("content"))
		}
	})
	c.OnHTML(`meta[name="description"]`, func(e *colly.HTMLElement) {
		if meta.Description == "" {
			meta.Description = strings.TrimSpace(e.Attr("content"))
		}
	})
	c.OnHTML("title", func(e *colly.HTMLElement) {
		if meta.Title == "" {
			meta.Title = strings.TrimSpace(e.Text)
		}
	})
	c.OnHTML("p, h1, h2, h3, li", func(e *colly.HTMLElement) {
		text := strings.TrimSpace(e.Text)
		if len(text) > 0 {
			textParts = append(textParts, text)
		}
	})

	if err := c.Visit(targetURL); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", targetURL, err)
	}
	c.Wait()

	if meta.SiteName == "" {
		meta.SiteName = parsed.Hostname()
	}
	meta.ContentText = joinLimited(textParts, 60_000)

	if check := s.detector.Check(statusCode, rawBody, meta.ContentText); check.Detected {
		s.logger.Info("target page is protected",
			"url", targetURL,
			"signal", check.Signal,
		)
		return nil, fmt.Errorf("%w: %s", ErrPageProtected, check.Description)
	}

	s.logger.Debug("page metadata fetched",
		"url", targetURL,
		"title", meta.Title,
		"site_name", meta.SiteName,
		"content_length", len(meta.ContentText),
	)
	return meta, nil
}

// joinLimited joins parts with newlines, capping total size so a huge page
// cannot blow the prompt budget.
func joinLimited(parts []string, limit int) string {
	var b strings.Builder
	for _, p := range parts {
		if b.Len()+len(p)+1 > limit {
			break
		}
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
