/*
Package source fetches raw announcement records from the external listing
sources and normalizes them into the canonical announcement shape.
*/
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanehull/grantwatch/internal/types"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; grantwatch/1.0)"
	acceptLanguage = "ko-KR,ko;q=0.9,en;q=0.7"
	DefaultTimeout = 30 * time.Second
)

// Adapter fetches one source. Transport failures are returned as errors;
// unparseable payloads yield no records and no error.
type Adapter interface {
	Name() string
	Fields() FieldMap
	Fetch(ctx context.Context) ([]types.Record, error)
}

// FieldMap lists, per canonical field, the raw keys to try in order.
type FieldMap struct {
	Title             []string
	Description       []string
	Organization      []string
	Agency            []string
	Hashtags          []string
	ApplicationPeriod []string
	PostedDate        []string
	Link              []string
	Status            []string
	IDs               []string
}

// Normalize maps a raw record into an Announcement. Missing keys become "".
func Normalize(r types.Record, fm FieldMap) types.Announcement {
	a := types.Announcement{
		Title:             first(r, fm.Title),
		Description:       first(r, fm.Description),
		Organization:      first(r, fm.Organization),
		Agency:            first(r, fm.Agency),
		Hashtags:          first(r, fm.Hashtags),
		ApplicationPeriod: first(r, fm.ApplicationPeriod),
		PostedDate:        first(r, fm.PostedDate),
		Link:              first(r, fm.Link),
		Status:            first(r, fm.Status),
	}
	for _, k := range fm.IDs {
		a.IDCandidates = append(a.IDCandidates, str(r[k]))
	}
	return a
}

func first(r types.Record, keys []string) string {
	for _, k := range keys {
		if v := str(r[k]); v != "" {
			return v
		}
	}
	return ""
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// Client is the HTTP client shared by all adapters.
type Client struct {
	http *http.Client
	log  zerolog.Logger
}

func NewClient(timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}, log: log}
}

// NewClientWith wraps an existing http.Client, mostly for tests.
func NewClientWith(c *http.Client, log zerolog.Logger) *Client {
	return &Client{http: c, log: log}
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values, html bool) ([]byte, error) {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", redact(rawURL), err)
	}
	req.Header.Set("User-Agent", userAgent)
	if html {
		req.Header.Set("Accept-Language", acceptLanguage)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("failed to fetch URL %s: %w", redact(rawURL), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn().Err(err).Str("url", redact(rawURL)).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received non-OK status code %d from %s", resp.StatusCode, redact(rawURL))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", redact(rawURL), err)
	}
	return body, nil
}

// redact drops the query string so API keys never reach logs or errors.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// absolute resolves a root-relative href against origin.
func absolute(origin, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return strings.TrimRight(origin, "/") + href
	}
	return ""
}
