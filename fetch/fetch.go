// Package fetch downloads the current list of eligible recipient addresses.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucknot3/transfer-tea-multi-address/store"
)

// Error reports a failed candidate list download. The scheduler aborts the
// current run on it without touching durable state; the daily driver retries
// on the next cadence.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch candidate list from %v: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Source provides the candidate addresses for a run.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
}

// HTTPSource fetches a newline-delimited address list over plain HTTP GET.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the normalized, deduplicated address list.
func (s *HTTPSource) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &Error{URL: s.url, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{URL: s.url, Err: fmt.Errorf("unexpected status %v", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: s.url, Err: err}
	}

	return store.Normalize(strings.Split(string(body), "\n")), nil
}
