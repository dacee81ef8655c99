// Package client is the Go SDK of the Smart Campus API.
//
// Every method maps to exactly one HTTP call: nothing is retried, batched, de-duplicated or cached.
// Non-2xx answers come back as *APIError, transport failures are returned unchanged.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

// EnvBaseURL names the environment variable holding the API base URL.
const EnvBaseURL = "SMARTCAMPUS_API_URL"

const defaultTimeout = 30 * time.Second

var errNoBaseURL = errors.New("client: empty base URL")

// Client talks to one API server and keeps its session cookie.
type Client struct {
	baseURL string
	rest    *rest.Client
}

// New returns a Client for baseURL (e.g. "https://campus.example.com/api").
// A nil httpClient gets a default one; a httpClient without a cookie jar gets one,
// since the session lives in a cookie.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errNoBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "parsing base URL")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "creating cookie jar")
		}
		httpClient.Jar = jar
	}

	return &Client{
		baseURL: baseURL,
		rest:    &rest.Client{HTTPClient: httpClient},
	}, nil
}

// NewFromEnv reads the base URL from SMARTCAMPUS_API_URL.
func NewFromEnv() (*Client, error) {
	return New(os.Getenv(EnvBaseURL), nil)
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// AssetURL resolves a server-relative upload path against the API host: a trailing "/api"
// is stripped from the base URL. Absolute URLs and empty paths are returned as is.
func (c *Client) AssetURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	host := strings.TrimSuffix(c.baseURL, "/api")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host + path
}

// do sends one request and decodes a JSON answer into out (when non-nil).
func (c *Client) do(ctx context.Context, method rest.Method, path string, query url.Values, in, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if len(query) > 0 {
		// rest.Request only knows single-valued params
		req.BaseURL += "?" + query.Encode()
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	resp, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, resp.Body)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || resp.Body == "" {
		return nil
	}
	if err = json.Unmarshal([]byte(resp.Body), out); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, path)
	}
	return nil
}

func escape(id string) string {
	return url.PathEscape(id)
}

// Page is the envelope of paginated lists.
type Page struct {
	Page       int `json:"page"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Pagination selects a page; zero values leave the server defaults.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) encode(q url.Values) {
	if p.Page > 0 {
		q.Set("page", itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", itoa(p.Limit))
	}
}

func setList(q url.Values, name string, values []string) {
	if len(values) > 0 {
		q.Set(name, strings.Join(values, ","))
	}
}

func setBool(q url.Values, name string, b *bool) {
	if b != nil {
		if *b {
			q.Set(name, "true")
		} else {
			q.Set(name, "false")
		}
	}
}

func setTime(q url.Values, name string, t time.Time) {
	if !t.IsZero() {
		q.Set(name, t.UTC().Format(time.RFC3339))
	}
}
