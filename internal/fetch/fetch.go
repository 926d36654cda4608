// Package fetch downloads template archives.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"create-uix-app/internal/errs"
	"create-uix-app/internal/logging"
)

// UserAgent is sent with every request.
const UserAgent = "create-uix-app"

// Fetcher issues a single GET per call. There is no retry and no timeout.
type Fetcher struct {
	Client *http.Client
}

// New returns a Fetcher on http.DefaultClient.
func New() *Fetcher {
	return &Fetcher{Client: http.DefaultClient}
}

// Fetch returns the response body as a stream. The caller closes it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	log := logging.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	log.Debug("Requesting archive.", "url", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &errs.NetworkError{URL: url, Status: resp.Status}
	}

	log.Debug("Archive response received.", "status", resp.Status, slog.Int64("content_length", resp.ContentLength))
	return resp.Body, nil
}
