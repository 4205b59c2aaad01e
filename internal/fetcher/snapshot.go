package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/config"
)

const sheetsBase = "https://docs.google.com/spreadsheets/d/"

// Snapshot is the normalized CSV text of one source plus its content hash.
type Snapshot struct {
	Source config.SourceConfig
	Origin string
	Text   string
	Hash   string
}

// SnapshotFetcher produces snapshots from the sheet export or a local file.
type SnapshotFetcher struct {
	http    Fetcher
	baseURL string
}

// NewSnapshotFetcher creates a SnapshotFetcher using f for remote exports.
func NewSnapshotFetcher(f Fetcher) *SnapshotFetcher {
	return &SnapshotFetcher{http: f, baseURL: sheetsBase}
}

// ExportURL builds the CSV export URL for a source. A gid selects the tab by
// id; otherwise a tab name goes through the gviz endpoint.
func ExportURL(base string, src config.SourceConfig) (string, error) {
	if src.SheetID == "" {
		return "", eris.Errorf("fetcher: source %q has no sheet_id", src.Key)
	}
	prefix := strings.TrimRight(base, "/") + "/" + url.PathEscape(src.SheetID)
	if src.GID == "" && src.Tab != "" {
		q := url.Values{"tqx": {"out:csv"}, "sheet": {src.Tab}}
		return prefix + "/gviz/tq?" + q.Encode(), nil
	}
	q := url.Values{"format": {"csv"}}
	if src.GID != "" {
		q.Set("gid", src.GID)
	}
	return prefix + "/export?" + q.Encode(), nil
}

// Fetch retrieves and normalizes one source. A configured file wins over the
// remote sheet.
func (s *SnapshotFetcher) Fetch(ctx context.Context, src config.SourceConfig) (*Snapshot, error) {
	var (
		raw    string
		origin string
		err    error
	)
	if src.File != "" {
		origin = src.File
		raw, err = readLocal(src.File, src.Tab)
	} else {
		origin, err = ExportURL(s.baseURL, src)
		if err == nil {
			raw, err = s.download(ctx, origin)
		}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: snapshot %s", src.Key)
	}

	text := Normalize(raw)
	if text == "" {
		return nil, eris.Errorf("fetcher: snapshot %s: empty export from %s", src.Key, origin)
	}
	snap := &Snapshot{Source: src, Origin: origin, Text: text, Hash: Hash(text)}

	zap.L().Debug("fetched snapshot",
		zap.String("source", src.Key),
		zap.String("origin", origin),
		zap.Int("bytes", len(text)),
		zap.String("hash", snap.Hash),
	)
	return snap, nil
}

func (s *SnapshotFetcher) download(ctx context.Context, rawURL string) (string, error) {
	if s.http == nil {
		return "", eris.New("no http fetcher configured")
	}
	body, err := s.http.Download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return "", eris.Wrap(err, "read body")
	}
	return string(data), nil
}

func readLocal(path, tab string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrap(err, "read csv override")
		}
		return string(data), nil
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{SheetName: tab})
		if err != nil {
			return "", err
		}
		return encodeCSV(rows)
	default:
		return "", eris.Errorf("unsupported override file type %q", filepath.Ext(path))
	}
}

func encodeCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", eris.Wrap(err, "encode csv")
	}
	return buf.String(), nil
}
