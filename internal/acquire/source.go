package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	serr "github.com/Aman-CERP/docsift/internal/errors"
)

// Source streams the object behind a URL into w.
type Source interface {
	Fetch(ctx context.Context, u *url.URL, w io.Writer) (int64, error)
}

// HTTPSource downloads http(s) URLs.
type HTTPSource struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPSource returns a source whose requests time out after timeout.
func NewHTTPSource(timeout time.Duration, userAgent string) *HTTPSource {
	return &HTTPSource{Client: &http.Client{Timeout: timeout}, UserAgent: userAgent}
}

// Fetch issues a GET. 429 and 5xx responses and transport errors are
// retryable; other non-2xx responses are wrapped with serr.Permanent.
func (s *HTTPSource) Fetch(ctx context.Context, u *url.URL, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, serr.Permanent(serr.New(serr.ErrCodeInvalidURL, "cannot build request", err))
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := serr.New(serr.ErrCodeHTTPStatus, fmt.Sprintf("HTTP %d", resp.StatusCode), nil).
			WithDetail("status", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return 0, statusErr
		}
		return 0, serr.Permanent(statusErr)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, transportError(err)
	}
	return n, nil
}

func transportError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return serr.New(serr.ErrCodeNetworkTimeout, "request timed out", err)
	}
	return serr.NetworkError("request failed", err)
}

// GCSSource reads gs://bucket/object URLs. The client is created on first use.
type GCSSource struct {
	CredentialsFile string

	once   sync.Once
	client *storage.Client
	err    error
}

func (s *GCSSource) storageClient(ctx context.Context) (*storage.Client, error) {
	s.once.Do(func() {
		var opts []option.ClientOption
		if s.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(s.CredentialsFile))
		}
		s.client, s.err = storage.NewClient(ctx, opts...)
	})
	return s.client, s.err
}

// Fetch copies the object into w. Missing buckets or objects are permanent.
func (s *GCSSource) Fetch(ctx context.Context, u *url.URL, w io.Writer) (int64, error) {
	client, err := s.storageClient(ctx)
	if err != nil {
		return 0, serr.Permanent(serr.New(serr.ErrCodeNetworkUnavailable, "cannot create storage client", err))
	}

	object := strings.TrimPrefix(u.Path, "/")
	r, err := client.Bucket(u.Host).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return 0, serr.Permanent(serr.New(serr.ErrCodeHTTPStatus, "object not found", err))
	}
	if err != nil {
		return 0, serr.NetworkError("open object", err)
	}
	defer func() { _ = r.Close() }()

	n, err := io.Copy(w, r)
	if err != nil {
		return n, serr.NetworkError("read object", err)
	}
	return n, nil
}

// Close releases the storage client if one was created.
func (s *GCSSource) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
