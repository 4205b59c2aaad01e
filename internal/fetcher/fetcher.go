// Package fetcher retrieves sheet snapshots over HTTP or from local CSV/XLSX
// overrides, normalizes them and hashes the result for change detection.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote content.
type Fetcher interface {
	// Download fetches the URL and returns the response body. Non-2xx
	// responses are errors.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
