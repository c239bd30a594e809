// Package doccache keeps downloaded documents on disk, keyed by sistedes
// identifier, so later runs do not fetch them again.
package doccache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPDF indicates a download that is not a readable PDF.
var ErrInvalidPDF = errors.New("invalid PDF document")

// Fetcher opens remote documents.
type Fetcher interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Document is a cached file ready to be uploaded.
type Document struct {
	Path  string
	Name  string
	Pages int
}

// Open opens the cached file.
func (d Document) Open() (*os.File, error) {
	return os.Open(d.Path)
}

// Cache is a directory of documents.
type Cache struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a cache rooted at dir reading through f.
func New(dir string, f Fetcher, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: dir, fetcher: f, logger: logger}
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// FileName turns an identifier into a flat file name.
func FileName(identifier string) string {
	return strings.ReplaceAll(strings.TrimSpace(identifier), "/", "-")
}

// PDF returns the cached PDF of identifier, downloading it from rawURL when
// it is not cached yet. An unreadable file is discarded and fetched once
// more.
func (c *Cache) PDF(ctx context.Context, identifier, rawURL string) (Document, error) {
	name := FileName(identifier) + ".pdf"
	path := filepath.Join(c.dir, "pdf", name)

	for attempt := 0; attempt < 2; attempt++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := c.download(ctx, rawURL, path); err != nil {
				return Document{}, err
			}
		} else if err != nil {
			return Document{}, fmt.Errorf("checking cached %s: %w", name, err)
		} else {
			c.logger.Debug("using cached document", "path", path)
		}

		pages, err := PageCount(path)
		if err == nil {
			return Document{Path: path, Name: name, Pages: pages}, nil
		}
		c.logger.Warn("discarding invalid cached document", "path", path, "error", err)
		if err := os.Remove(path); err != nil {
			return Document{}, err
		}
	}
	return Document{}, fmt.Errorf("%w: %s from %s", ErrInvalidPDF, name, rawURL)
}

// download stores rawURL at path through a temporary file so a failed
// transfer never leaves a partial document behind.
func (c *Cache) download(ctx context.Context, rawURL, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	c.logger.Info("downloading document", "url", rawURL)
	body, err := c.fetcher.Open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FrontMatter writes body as a standalone XHTML page and returns it as a
// document.
func (c *Cache) FrontMatter(identifier, title, body string) (Document, error) {
	name := FileName(identifier) + ".html"
	path := filepath.Join(c.dir, "html", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Document{}, fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(XHTML(title, body)), 0o644); err != nil {
		return Document{}, fmt.Errorf("writing %s: %w", name, err)
	}
	return Document{Path: path, Name: name}, nil
}

// Media lists the files cached for a seminar under video/<name>/, sorted
// by name. A missing directory yields no files.
func (c *Cache) Media(identifier string) ([]Document, error) {
	dir := filepath.Join(c.dir, "video", FileName(identifier))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing media of %s: %w", identifier, err)
	}
	var out []Document
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, Document{Path: filepath.Join(dir, e.Name()), Name: e.Name()})
	}
	return out, nil
}

// IsVideo reports whether a seminar file is its main recording.
func IsVideo(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "video.mp4")
}
