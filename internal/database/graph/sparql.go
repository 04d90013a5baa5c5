package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	mimeSPARQLResultsJSON = "application/sparql-results+json"
	mimeRDFJSON           = "application/rdf+json"
	mimeFormURLEncoded    = "application/x-www-form-urlencoded"
)

// SPARQLClient implements Client for a SPARQL 1.1 Protocol endpoint,
// e.g. a GraphDB repository at http://localhost:7200/repositories/<repo>.
type SPARQLClient struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	username   string
	password   string
}

// SPARQLOption configures the SPARQL client.
type SPARQLOption func(*SPARQLClient)

// WithBasicAuth sets HTTP basic credentials sent with every request.
func WithBasicAuth(username, password string) SPARQLOption {
	return func(c *SPARQLClient) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) SPARQLOption {
	return func(c *SPARQLClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestTimeout bounds each query request, including reading the
// response. A non-positive d disables the bound.
func WithRequestTimeout(d time.Duration) SPARQLOption {
	return func(c *SPARQLClient) {
		c.timeout = d
	}
}

// NewSPARQLClient creates a client for the given query endpoint.
func NewSPARQLClient(endpoint string, opts ...SPARQLOption) (*SPARQLClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid sparql endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid sparql endpoint %q: scheme must be http or https", endpoint)
	}

	client := &SPARQLClient{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Close is a no-op; the HTTP client holds no per-client resources.
func (c *SPARQLClient) Close(ctx context.Context) error {
	return nil
}

// Execute posts the query and decodes the response according to its form.
// Any non-2xx answer becomes an *ExecutionError carrying the response body.
func (c *SPARQLClient) Execute(ctx context.Context, query string) (ResultSet, error) {
	form := DetectForm(query)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body := url.Values{"query": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, newExecutionError(query, err)
	}
	req.Header.Set("Content-Type", mimeFormURLEncoded)
	req.Header.Set("Accept", form.accept())
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newExecutionError(query, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newExecutionError(query, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &ExecutionError{
			Query:      query,
			Message:    msg,
			StatusCode: resp.StatusCode,
		}
	}

	var rows ResultSet
	switch form {
	case FormConstruct, FormDescribe:
		rows, err = decodeRDFJSON(data)
	default:
		rows, err = decodeSPARQLResults(data)
	}
	if err != nil {
		return nil, &ExecutionError{
			Query:      query,
			Message:    fmt.Sprintf("decode %s results: %v", form, err),
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	return rows, nil
}
