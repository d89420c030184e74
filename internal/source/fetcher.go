// Package source fetches raw dataset and boundary files from local paths,
// HTTP(S) URLs and S3 buckets.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrUnsupportedScheme is returned for a URI whose scheme has no fetcher
var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// Fetcher reads the bytes behind a source URI
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// MultiFetcher dispatches on the URI scheme: plain paths and file:// read from
// disk, http and https go through an HTTPClient, s3 through an S3Client.
type MultiFetcher struct {
	HTTP *HTTPClient
	S3   *S3Client
}

// NewMultiFetcher creates a fetcher with a default HTTP client. S3 is only
// available when s3 is non-nil.
func NewMultiFetcher(s3 *S3Client) *MultiFetcher {
	return &MultiFetcher{
		HTTP: NewHTTPClient(),
		S3:   s3,
	}
}

func (m *MultiFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	scheme, rest := splitScheme(uri)

	switch scheme {
	case "", "file":
		data, err := os.ReadFile(rest)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", rest, err)
		}
		return data, nil
	case "http", "https":
		if m.HTTP == nil {
			return nil, fmt.Errorf("%w: %s (no HTTP client)", ErrUnsupportedScheme, scheme)
		}
		return m.HTTP.Fetch(ctx, uri)
	case "s3":
		if m.S3 == nil {
			return nil, fmt.Errorf("%w: %s (no S3 client)", ErrUnsupportedScheme, scheme)
		}
		return m.S3.Fetch(ctx, uri)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
}

// splitScheme returns the lower-cased scheme and, for file URIs and bare paths, the path
func splitScheme(uri string) (scheme, rest string) {
	i := strings.Index(uri, "://")
	if i <= 0 {
		return "", uri
	}
	scheme = strings.ToLower(uri[:i])
	if scheme == "file" {
		if u, err := url.Parse(uri); err == nil {
			return scheme, u.Path
		}
		return scheme, uri[i+3:]
	}
	return scheme, uri
}
