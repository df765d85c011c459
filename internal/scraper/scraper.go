// Package scraper fetches the university policy catalog and writes each
// policy as a plain-text corpus document for the indexer. The catalog has
// no machine-readable listing, so the known policy number ranges are
// enumerated and gaps simply skipped.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ahrav/policybot/internal/configuration"
)

const (
	titleSelector   = "h1.et_pb_module_header"
	contentSelector = "div.et_pb_section.et_pb_section_1"
	bodySelector    = "h2, h3, p, li"
)

// Scraper fetches and extracts policy pages.
type Scraper struct {
	cfg        configuration.ScraperConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a scraper. A nil httpClient gets a default with the
// configured timeout.
func New(cfg configuration.ScraperConfig, httpClient *http.Client, logger *slog.Logger) *Scraper {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With("component", "scraper"),
	}
}

// PolicyIDs enumerates the known catalog: the numeric ranges per policy
// area plus the Canada-specific variants.
func PolicyIDs() []string {
	var ids []string
	addRange := func(start, end int) {
		for i := start; i <= end; i++ {
			ids = append(ids, strconv.Itoa(i))
		}
	}
	addRange(101, 126)
	addRange(200, 208)
	addRange(300, 312)
	addRange(400, 429)
	addRange(500, 513)
	addRange(600, 618)
	addRange(800, 808)
	addRange(700, 706)
	ids = append(ids, "708")
	ids = append(ids,
		"107-CAN", "206-CAN", "207-CAN", "402-CAN", "403-CAN", "405-CAN",
		"406-CAN", "408-CAN", "418-CAN", "421-CAN", "424-CAN", "603-CAN", "707-CAN")
	return ids
}

// Run scrapes the given policy IDs (nil means the full known catalog) into
// the output directory and returns how many documents were saved. Missing
// or malformed pages are logged and skipped; only filesystem problems
// abort the run.
func (s *Scraper) Run(ctx context.Context, ids []string) (int, error) {
	if ids == nil {
		ids = PolicyIDs()
	}
	if err := os.MkdirAll(s.cfg.OutDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	saved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		doc, err := s.scrapeOne(ctx, id)
		if err != nil {
			s.logger.Warn("skipping policy", "id", id, "error", err)
			continue
		}

		path := filepath.Join(s.cfg.OutDir, "policy_"+id+".txt")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			return saved, fmt.Errorf("writing %s: %w", path, err)
		}
		saved++
		s.logger.Info("policy saved", "id", id)
	}

	s.logger.Info("scrape complete", "saved", saved, "attempted", len(ids))
	return saved, nil
}

func (s *Scraper) scrapeOne(ctx context.Context, id string) (string, error) {
	url := fmt.Sprintf("%s/policy%s/", strings.TrimRight(s.cfg.BaseURL, "/"), id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	title := strings.TrimSpace(page.Find(titleSelector).First().Text())
	content := page.Find(contentSelector).First()
	if title == "" || content.Length() == 0 {
		return "", fmt.Errorf("page has no policy content")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy %s: %s\n\n", id, title)
	content.Find(bodySelector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	})
	return b.String(), nil
}
