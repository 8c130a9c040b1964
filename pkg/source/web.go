package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/docchat/docchat/internal/models"
)

type WebConfig struct {
	URLs       []string
	Timeout    time.Duration
	RateLimit  float64 // requests per second
	UserAgent  string
	OnProgress func(url string)
}

// WebSource fetches an ordered list of URLs and turns each fetchable
// HTML page into one document with the URL as its source. Fetch
// failures are logged and skipped, never escalated.
type WebSource struct {
	config  WebConfig
	client  *http.Client
	limiter *rate.Limiter
}

// Direct links to binary payloads are excluded up front instead of
// being mis-parsed as HTML.
var binaryExtensions = []string{".pdf", ".zip", ".png", ".jpg", ".jpeg", ".gif", ".doc", ".docx", ".xls", ".xlsx"}

func NewWebSource(config WebConfig) *WebSource {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0"
	}

	return &WebSource{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func (s *WebSource) Load(ctx context.Context) ([]models.Document, error) {
	var documents []models.Document

	for _, pageURL := range s.config.URLs {
		if ctx.Err() != nil {
			return documents, ctx.Err()
		}

		doc, err := s.fetch(ctx, pageURL)
		if err != nil {
			log.Printf("skipping %s: %v", pageURL, err)
			continue
		}
		if doc == nil {
			// Not fetchable content, excluded on purpose.
			continue
		}

		documents = append(documents, *doc)
		if s.config.OnProgress != nil {
			s.config.OnProgress(pageURL)
		}
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("%w in URL list", ErrNoDocuments)
	}
	return documents, nil
}

func (s *WebSource) fetch(ctx context.Context, pageURL string) (*models.Document, error) {
	if !isFetchable(pageURL) {
		log.Printf("excluding binary link %s", pageURL)
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received status code %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		log.Printf("excluding %s content at %s", contentType, pageURL)
		return nil, nil
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	content := extractContent(page)
	if content == "" {
		return nil, nil
	}

	return &models.Document{
		Source:  pageURL,
		Title:   strings.TrimSpace(page.Find("title").Text()),
		Content: content,
		Metadata: map[string]interface{}{
			"type":        "web",
			"contentType": contentType,
			"fetchedAt":   time.Now(),
		},
	}, nil
}

// extractContent strips non-content markup and normalizes whitespace:
// lines are trimmed, runs of spaces collapsed, empty lines dropped.
func extractContent(page *goquery.Document) string {
	page.Find("script, style, nav, header, footer, aside").Remove()

	raw := page.Find("body").Text()

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func isFetchable(pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, binary := range binaryExtensions {
		if ext == binary {
			return false
		}
	}
	return true
}
