package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"thumbforge-client/internal/utils"
)

var ErrUnsupportedURI = errors.New("unsupported artifact uri")

// Downloader saves artifacts locally.
type Downloader struct {
	http *http.Client
	now  func() time.Time
}

func NewDownloader(httpClient *http.Client) *Downloader {
	return &Downloader{http: httpClient, now: time.Now}
}

// Download writes the artifact at uri into dir as thumbnail-<unix ms>.png and
// returns the file path.
func (d *Downloader) Download(ctx context.Context, uri, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	src, err := d.open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(dir, fmt.Sprintf("thumbnail-%d.png", d.now().UnixMilli()))
	tempPath := path + ".tmp"

	out, err := os.Create(tempPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to save artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	if err := os.Rename(tempPath, path); err != nil {
		return "", err
	}
	return path, nil
}

func (d *Downloader) open(ctx context.Context, uri string) (io.ReadCloser, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURI, err)
	}

	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		resp, err := d.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch artifact: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return nil, newStatusError(resp.StatusCode, utils.ReadLimited(resp.Body, 64<<10))
		}
		return resp.Body, nil
	case "data":
		// data:<mediatype>;base64,<payload>
		meta, payload, ok := strings.Cut(u.Opaque, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: only base64 data uris are supported", ErrUnsupportedURI)
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedURI, err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedURI, u.Scheme)
}
