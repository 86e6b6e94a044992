package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// MinHits and MaxHits bound k regardless of what the caller asked for,
	// keeping the injected context from growing without limit.
	MinHits = 1
	MaxHits = 50
)

// Hit is one retrieved unit of previously indexed document text.
type Hit struct {
	Text string `json:"text"`
	Meta Meta   `json:"meta"`
	// Metadata is the legacy field name used by older tool service
	// builds. Source resolution considers both.
	Metadata Meta `json:"metadata"`
}

// Meta holds source information for a hit. All fields are optional.
type Meta struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
}

// Source returns a human-readable label for the hit, falling back to a
// generic chunk label. Ordinal is one-based.
func (h Hit) Source(ordinal int) string {
	for _, name := range []string{h.Meta.Filename, h.Metadata.Filename, h.Meta.Source, h.Metadata.Source} {
		if name != "" {
			return name
		}
	}
	return fmt.Sprintf("chunk #%d", ordinal)
}

// Result holds the outcome of a context fetch. Retrieval is best-effort -
// a fetch never fails, it degrades. Err records why zero hits came back,
// keeping "nothing indexed matched" distinguishable from "service
// unreachable".
type Result struct {
	Hits []Hit
	Err  error
}

// Degraded returns whether the fetch failed rather than legitimately
// finding nothing.
func (r Result) Degraded() bool {
	return r.Err != nil
}

// Client fetches context chunks from the tool service.
type Client struct {
	client   *http.Client
	endpoint string
}

type Options struct {
	// HTTPClient overrides the transport, e.g. to set a timeout.
	HTTPClient *http.Client
}

// NewClient returns a new Client for the tool service at the specified
// endpoint.
func NewClient(endpoint string, options *Options) *Client {
	httpClient := &http.Client{}
	if options != nil && options.HTTPClient != nil {
		httpClient = options.HTTPClient
	}

	return &Client{
		client:   httpClient,
		endpoint: strings.TrimSuffix(endpoint, "/"),
	}
}

// ClampK bounds k to [MinHits, MaxHits].
func ClampK(k int) int {
	if k < MinHits {
		return MinHits
	}
	if k > MaxHits {
		return MaxHits
	}
	return k
}

// FetchContext fetches the top-k context chunks for a question from the
// specified collection. The primary tool invocation endpoint is tried
// first, then the legacy form-encoded endpoint. Failures are recorded on
// the result, never returned.
func (c *Client) FetchContext(ctx context.Context, question string, k int, collection string) Result {
	k = ClampK(k)

	hits, primaryErr := c.queryTool(ctx, question, k, collection)
	if primaryErr == nil && len(hits) > 0 {
		return Result{Hits: hits}
	}
	if primaryErr != nil {
		slog.Debug("Primary retrieval call failed, trying legacy endpoint", slog.Any("error", primaryErr))
	}

	hits, fallbackErr := c.queryLegacy(ctx, question, k, collection)
	if fallbackErr == nil {
		return Result{Hits: hits}
	}

	return Result{Err: errors.Join(primaryErr, fallbackErr)}
}

// toolResponse is the envelope returned by the tool invocation endpoint.
// Depending on the tool service build, hits are found under either key.
type toolResponse struct {
	Hits    []Hit  `json:"hits"`
	Results []Hit  `json:"results"`
	Error   string `json:"error"`
}

func (c *Client) queryTool(ctx context.Context, question string, k int, collection string) ([]Hit, error) {
	body, err := json.Marshal(map[string]any{
		"name": "rag_query",
		"args": map[string]any{
			"question":   question,
			"k":          k,
			"collection": collection,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/tool", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got unexpected status: %s", res.Status)
	}

	var response toolResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, err
	}

	if response.Error != "" {
		return nil, fmt.Errorf("tool service returned error: %s", response.Error)
	}

	hits := response.Hits
	if len(hits) == 0 {
		hits = response.Results
	}

	return hits, nil
}

func (c *Client) queryLegacy(ctx context.Context, question string, k int, collection string) ([]Hit, error) {
	form := url.Values{}
	form.Set("question", question)
	form.Set("k", strconv.Itoa(k))
	form.Set("collection", collection)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/rag/ask", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got unexpected status: %s", res.Status)
	}

	var response struct {
		Hits []Hit `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, err
	}

	return response.Hits, nil
}
