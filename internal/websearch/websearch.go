// Package websearch queries the DuckDuckGo instant answer API.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultEndpoint is the instant answer API.
const DefaultEndpoint = "https://api.duckduckgo.com/"

// Result is one search hit.
type Result struct {
	Title string
	Text  string
	URL   string
}

// Client searches the web.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a client. An empty endpoint uses DefaultEndpoint; a nil
// httpClient uses http.DefaultClient.
func New(endpoint string, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Search returns up to max results for query: the abstract first when one
// exists, then related topics. Nested topic groups are flattened.
func (c *Client) Search(ctx context.Context, query string, max int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	q.Set("t", "agens")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("search returned invalid JSON")
	}
	return parse(body, max), nil
}

func parse(body []byte, max int) []Result {
	var out []Result
	doc := gjson.ParseBytes(body)

	abstract := doc.Get("AbstractText").String()
	abstractURL := doc.Get("AbstractURL").String()
	if abstract != "" || abstractURL != "" {
		out = append(out, Result{Title: doc.Get("Heading").String(), Text: abstract, URL: abstractURL})
	}

	var walk func(topics gjson.Result)
	walk = func(topics gjson.Result) {
		topics.ForEach(func(_, topic gjson.Result) bool {
			if len(out) >= max {
				return false
			}
			if nested := topic.Get("Topics"); nested.IsArray() {
				walk(nested)
				return true
			}
			text := strings.TrimSpace(topic.Get("Text").String())
			link := topic.Get("FirstURL").String()
			if text != "" && link != "" {
				out = append(out, Result{Text: text, URL: link})
			}
			return true
		})
	}
	walk(doc.Get("RelatedTopics"))

	if len(out) > max {
		out = out[:max]
	}
	return out
}
