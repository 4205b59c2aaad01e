// Package youtube provides a minimal YouTube Data API v3 client for listing
// a channel's uploads.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrMissingAPIKey is returned when the client has no API key.
	ErrMissingAPIKey = eris.New("youtube: api key is required")
	// ErrEmptyChannel is returned when the uploads playlist has no items.
	ErrEmptyChannel = eris.New("youtube: channel has no uploads")
	// ErrPaginationExceeded is returned when paging does not terminate within the cap.
	ErrPaginationExceeded = eris.New("youtube: pagination cap exceeded")
)

const (
	defaultBaseURL  = "https://www.googleapis.com/youtube/v3"
	defaultMaxPages = 200
	pageSize        = 50
)

// Client defines the YouTube operations used by the sync.
type Client interface {
	// UploadsPlaylistID resolves the channel's uploads playlist.
	UploadsPlaylistID(ctx context.Context, channelID string) (string, error)
	// Uploads returns every video in the channel's uploads keyed by video id,
	// with the video title as value.
	Uploads(ctx context.Context, channelID string) (map[string]string, error)
}

// Option configures the YouTube client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithMaxPages caps how many playlist pages are read.
func WithMaxPages(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithBackoff sets the initial retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *httpClient) {
		c.backoff = d
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	maxPages int
	backoff  time.Duration
	http     *http.Client
}

// NewClient creates a new YouTube Data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		maxPages: defaultMaxPages,
		backoff:  time.Second,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type channelsResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title      string `json:"title"`
			ResourceID struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *httpClient) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("id", channelID)

	var resp channelsResponse
	if err := c.get(ctx, "channels", q, &resp); err != nil {
		return "", eris.Wrapf(err, "youtube: channel %s", channelID)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", eris.Errorf("youtube: channel %s not found", channelID)
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

func (c *httpClient) Uploads(ctx context.Context, channelID string) (map[string]string, error) {
	playlistID, err := c.UploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	videos := make(map[string]string)
	token := ""
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("playlistId", playlistID)
		q.Set("maxResults", fmt.Sprint(pageSize))
		if token != "" {
			q.Set("pageToken", token)
		}

		var resp playlistItemsResponse
		if err := c.get(ctx, "playlistItems", q, &resp); err != nil {
			return nil, eris.Wrapf(err, "youtube: playlist %s page %d", playlistID, page+1)
		}
		for _, it := range resp.Items {
			id := it.Snippet.ResourceID.VideoID
			if id == "" {
				continue
			}
			videos[id] = it.Snippet.Title
		}

		if resp.NextPageToken == "" {
			if len(videos) == 0 {
				return nil, ErrEmptyChannel
			}
			return videos, nil
		}
		token = resp.NextPageToken
	}
	return nil, eris.Wrapf(ErrPaginationExceeded, "youtube: more than %d pages", c.maxPages)
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// get issues a GET with exponential backoff on transient failures and
// decodes the JSON body into out.
func (c *httpClient) get(ctx context.Context, resource string, q url.Values, out any) error {
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + "/" + resource + "?" + q.Encode()

	const maxAttempts = 3
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			// The URL carries the key, so only the resource is reported.
			lastErr = eris.Errorf("request %s failed", resource)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close() //nolint:errcheck
			switch {
			case readErr != nil:
				lastErr = eris.Wrap(readErr, "read body")
			case resp.StatusCode == http.StatusOK:
				return eris.Wrap(json.Unmarshal(body, out), "decode response")
			case retryableStatusCode(resp.StatusCode):
				lastErr = eris.Errorf("%s returned status %d", resource, resp.StatusCode)
			default:
				return eris.Errorf("%s returned status %d: %s", resource, resp.StatusCode, truncate(body, 200))
			}
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "youtube: context cancelled during retry")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
