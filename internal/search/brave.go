package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const braveEndpoint = "https://api.search.brave.com/res/v1"

// BraveClient talks to the Brave Search API. Brave is the primary web
// tier: privacy-focused and 2000 free requests a month.
type BraveClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewBraveClient creates a Brave client. An empty endpoint uses the
// public API.
func NewBraveClient(apiKey, endpoint string) *BraveClient {
	if endpoint == "" {
		endpoint = braveEndpoint
	}
	return &BraveClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (b *BraveClient) Configured() bool {
	return b.apiKey != ""
}

// Search runs a web search and returns up to count results.
func (b *BraveClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	var parsed braveWebResponse
	if err := b.get(ctx, "/web/search", query, count, "", &parsed); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		results = append(results, Result{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Source:      "brave",
		})
		if len(results) == count {
			break
		}
	}
	return results, nil
}

// SearchNews queries the Brave news cluster scoped to the past day.
func (b *BraveClient) SearchNews(ctx context.Context, query string, count int) ([]Result, error) {
	var parsed braveNewsResponse
	if err := b.get(ctx, "/news/search", query, count, "pd", &parsed); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Source:      "brave_news",
			Published:   r.Age,
			Publisher:   r.MetaURL.Hostname,
		})
		if len(results) == count {
			break
		}
	}
	return results, nil
}

func (b *BraveClient) get(ctx context.Context, path, query string, count int, freshness string, out interface{}) error {
	if b.apiKey == "" {
		return fmt.Errorf("brave: no API key")
	}
	if count > 10 {
		count = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	if freshness != "" {
		params.Set("freshness", freshness)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", b.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("brave error (status %d)", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Brave API types
type braveWebResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

type braveNewsResponse struct {
	Results []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Age         string `json:"age"`
		MetaURL     struct {
			Hostname string `json:"hostname"`
		} `json:"meta_url"`
	} `json:"results"`
}
