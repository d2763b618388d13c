// Package indexnow submits URLs to the IndexNow API so search engines pick
// up new content quickly. Submissions are best-effort: callers on the
// request path enqueue them through the worker pool and never block on the
// outcome.
package indexnow

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/logger"
)

// Service posts URL lists to the IndexNow endpoint.
type Service struct {
	endpoint string
	key      string
	host     string
	siteURL  string
	client   *http.Client
	log      logger.Logger
}

// Result reports the outcome of one submission.
type Result struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
	OK     bool   `json:"ok"`
}

type payload struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

// NewService builds an IndexNow service. timeout bounds the submission call;
// the sitemap fetch gets half again as much (the reference ceilings are 20s
// and 30s).
func NewService(endpoint, key, host, siteURL string, timeout time.Duration, log logger.Logger) *Service {
	return &Service{
		endpoint: endpoint,
		key:      key,
		host:     host,
		siteURL:  strings.TrimRight(siteURL, "/"),
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Key returns the configured IndexNow key, empty when unconfigured.
func (s *Service) Key() string { return s.key }

// Submit posts urls to the IndexNow endpoint. Duplicates are dropped before
// submission.
func (s *Service) Submit(ctx context.Context, urls []string) (*Result, error) {
	if s.key == "" || s.host == "" {
		return nil, apperrors.ErrIndexNowSubmit{Reason: "indexnow key or host not configured"}
	}

	deduped := dedupe(urls)
	if len(deduped) == 0 {
		return nil, apperrors.ErrIndexNowSubmit{Reason: "no URLs to submit"}
	}

	body, err := json.Marshal(payload{
		Host:        s.host,
		Key:         s.key,
		KeyLocation: fmt.Sprintf("%s/%s.txt", s.siteURL, s.key),
		URLList:     deduped,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding indexnow payload: %w", err)
	}

	s.log.Info("submitting to indexnow", logger.Int("count", len(deduped)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building indexnow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrIndexNowSubmit{Reason: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	result := &Result{
		Status: resp.StatusCode,
		Body:   string(respBody),
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if !result.OK {
		return result, apperrors.ErrIndexNowSubmit{Status: resp.StatusCode, Reason: string(respBody)}
	}
	return result, nil
}

// SubmitSitemap fetches a sitemap, extracts its URLs and submits them.
func (s *Service) SubmitSitemap(ctx context.Context, sitemapURL string) (*Result, error) {
	urls, err := s.FetchSitemapURLs(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, apperrors.ErrIndexNowSubmit{Reason: "no URLs found in sitemap"}
	}
	return s.Submit(ctx, urls)
}

// FetchSitemapURLs downloads sitemapURL and returns the unique <loc> values.
func (s *Service) FetchSitemapURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	s.log.Info("fetching sitemap", logger.String("url", sitemapURL))

	ctx, cancel := context.WithTimeout(ctx, s.client.Timeout+s.client.Timeout/2)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building sitemap request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching sitemap: unexpected status %d", resp.StatusCode)
	}

	urls, err := parseSitemap(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing sitemap: %w", err)
	}
	return urls, nil
}

// parseSitemap streams the XML and collects every <loc> element, covering
// both urlset and sitemapindex documents.
func parseSitemap(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var urls []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "loc" {
			continue
		}
		var loc string
		if err := dec.DecodeElement(&loc, &start); err != nil {
			return nil, err
		}
		if loc = strings.TrimSpace(loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return dedupe(urls), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
