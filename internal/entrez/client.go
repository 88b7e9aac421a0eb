// Package entrez provides a client for the NCBI E-utilities API.
//
// The client covers the three endpoints the extraction pipeline needs:
// esearch for discovering Entrez IDs, and esummary/efetch for pulling the
// raw XML documents that give the research sub-agent its context. Requests
// are rate limited to NCBI's published limits and retried on 429 and 5xx
// responses.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package entrez

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

const (
	// DefaultBaseURL is the base URL for the NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	DefaultRateLimit = 3.0

	// APIKeyRateLimit is the rate limit NCBI allows with an API key.
	APIKeyRateLimit = 10.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 100

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// sourceName is the name used in external API errors.
	sourceName = "Entrez"
)

// MetricsRecorder receives client instrumentation. *observability.Metrics
// satisfies it; a nil recorder disables instrumentation.
type MetricsRecorder interface {
	RecordEntrezRequest(endpoint, database string, durationSeconds float64)
	RecordEntrezRequestFailed(endpoint, database, errorType string)
	RecordEntrezRateLimited()
}

// Config holds the configuration for the Entrez client. It is defined here
// to avoid importing the config package.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key. Optional; raises the allowed request rate
	// from 3/sec to 10/sec.
	APIKey string

	// Email is reported to NCBI with every request, per their usage policy.
	Email string

	// Tool is the client name reported to NCBI with every request.
	Tool string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. When zero, the limit is
	// DefaultRateLimit, or APIKeyRateLimit when an API key is configured.
	RateLimit float64

	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int

	// Metrics receives instrumentation. Optional.
	Metrics MetricsRecorder
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
		if c.APIKey != "" {
			c.RateLimit = APIKeyRateLimit
		}
	}
	if c.Tool == "" {
		c.Tool = "sra-metadata-service"
	}
}

// Client talks to the NCBI E-utilities API. It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *HTTPClient
}

// New creates a new Entrez client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.Tool + " (NCBI E-utilities client)",
	}
	if cfg.Metrics != nil {
		httpCfg.OnRateLimited = cfg.Metrics.RecordEntrezRateLimited
	}

	return &Client{
		config:     cfg,
		httpClient: NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new Entrez client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// SearchOptions controls an ESearch call.
type SearchOptions struct {
	// MaxResults caps the number of IDs returned. Zero means
	// DefaultMaxResults; values above MaxResultsLimit are clamped.
	MaxResults int

	// MinDate and MaxDate restrict matches by publication date when set.
	MinDate *time.Time
	MaxDate *time.Time
}

// ESearch queries the given database and returns the matching Entrez IDs.
// A query that matches nothing returns an empty result, not an error.
func (c *Client) ESearch(ctx context.Context, db domain.Database, query string, opts SearchOptions) (*SearchResult, error) {
	if !db.Valid() {
		return nil, domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query", "query must not be empty")
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	params := url.Values{}
	params.Set("db", string(db))
	params.Set("term", query)
	params.Set("retmode", "xml")
	params.Set("retmax", strconv.Itoa(maxResults))
	if opts.MinDate != nil || opts.MaxDate != nil {
		params.Set("datetype", "pdat")
		if opts.MinDate != nil {
			params.Set("mindate", opts.MinDate.Format("2006/01/02"))
		}
		if opts.MaxDate != nil {
			params.Set("maxdate", opts.MaxDate.Format("2006/01/02"))
		}
	}

	body, err := c.get(ctx, "esearch", string(db), params)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		c.recordFailure("esearch", string(db), "parse_error")
		return nil, fmt.Errorf("esearch: failed to parse XML response: %w", err)
	}

	// Phrases NCBI cannot find are an empty result, not an error.
	if result.ErrorList != nil && len(result.ErrorList.PhraseNotFound) > 0 {
		return &SearchResult{IDs: []int64{}, Count: 0}, nil
	}

	ids := make([]int64, 0, len(result.IDList.IDs))
	for _, raw := range result.IDList.IDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.recordFailure("esearch", string(db), "parse_error")
			return nil, fmt.Errorf("esearch: non-numeric Entrez ID %q in response", raw)
		}
		ids = append(ids, id)
	}

	return &SearchResult{IDs: ids, Count: result.Count}, nil
}

// ESummary fetches the document summary for one Entrez ID and returns the
// raw XML. The document is the sub-agent's primary context for a record.
func (c *Client) ESummary(ctx context.Context, db domain.Database, id int64) (string, error) {
	if !db.Valid() {
		return "", domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}
	if id <= 0 {
		return "", domain.NewValidationError("entrez_id", "entrez_id must be positive")
	}

	params := url.Values{}
	params.Set("db", string(db))
	params.Set("id", strconv.FormatInt(id, 10))
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "esummary", string(db), params)
	if err != nil {
		return "", fmt.Errorf("esummary failed: %w", err)
	}
	return string(body), nil
}

// EFetch fetches the full record for one Entrez ID and returns the raw
// response. For the sra database this is the experiment package XML; gds
// returns a plain-text series summary.
func (c *Client) EFetch(ctx context.Context, db domain.Database, id int64) (string, error) {
	if !db.Valid() {
		return "", domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}
	if id <= 0 {
		return "", domain.NewValidationError("entrez_id", "entrez_id must be positive")
	}

	params := url.Values{}
	params.Set("db", string(db))
	params.Set("id", strconv.FormatInt(id, 10))
	if db == domain.DatabaseSRA {
		params.Set("retmode", "xml")
	}

	body, err := c.get(ctx, "efetch", string(db), params)
	if err != nil {
		return "", fmt.Errorf("efetch failed: %w", err)
	}
	return string(body), nil
}

// get executes a single E-utilities GET request and returns the response
// body. The tool, email, and API key identification parameters are added to
// every request.
func (c *Client) get(ctx context.Context, endpoint, database string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.config.BaseURL + "/" + endpoint + ".fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	params.Set("tool", c.config.Tool)
	if c.config.Email != "" {
		params.Set("email", c.config.Email)
	}
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(endpoint, database, "network_error")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		c.recordFailure(endpoint, database, "api_error")
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		c.recordFailure(endpoint, database, "network_error")
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.config.Metrics != nil {
		c.config.Metrics.RecordEntrezRequest(endpoint, database, time.Since(start).Seconds())
	}
	return body, nil
}

// recordFailure records a failed request when metrics are configured.
func (c *Client) recordFailure(endpoint, database, errorType string) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordEntrezRequestFailed(endpoint, database, errorType)
	}
}
