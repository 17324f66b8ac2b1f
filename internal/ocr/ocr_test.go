package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "github.com/Aman-CERP/docsift/internal/errors"
)

type fakeEngine struct {
	name   string
	source Source
	text   string
	err    error
	calls  int
}

func (f *fakeEngine) Name() string   { return f.name }
func (f *fakeEngine) Source() Source { return f.source }
func (f *fakeEngine) Recognize(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestChain_LocalSucceeds_RemoteNotCalled(t *testing.T) {
	local := &fakeEngine{name: "local", source: SourceLocal, text: "Hello  world"}
	remote := &fakeEngine{name: "remote", source: SourceCloud, text: "unused"}
	c := NewChain(nil, local, remote)

	text, src, err := c.Recognize(context.Background(), "page.png")

	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, SourceLocal, src)
	assert.Equal(t, 0, remote.calls)
}

func TestChain_FallsBackToRemote(t *testing.T) {
	local := &fakeEngine{name: "local", source: SourceLocal, err: errors.New("crashed")}
	remote := &fakeEngine{name: "remote", source: SourceCloud, text: "from cloud"}
	c := NewChain(nil, local, remote)

	text, src, err := c.Recognize(context.Background(), "page.png")

	require.NoError(t, err)
	assert.Equal(t, "from cloud", text)
	assert.Equal(t, SourceCloud, src)
}

func TestChain_AllFail(t *testing.T) {
	c := NewChain(nil,
		&fakeEngine{name: "local", source: SourceLocal, err: errors.New("a")},
		&fakeEngine{name: "remote", source: SourceCloud, err: errors.New("b")},
	)

	_, src, err := c.Recognize(context.Background(), "page.png")

	require.Error(t, err)
	assert.Equal(t, SourceNone, src)
	assert.True(t, serr.HasCode(err, serr.ErrCodeOCRFailed))
	assert.Contains(t, err.Error(), "local: a")
}

func TestChain_Empty(t *testing.T) {
	c := NewChain(nil, nil)

	assert.Equal(t, 0, c.Len())
	_, _, err := c.Recognize(context.Background(), "page.png")
	assert.True(t, serr.HasCode(err, serr.ErrCodeOCRUnavailable))
}

func TestCleanPageText(t *testing.T) {
	in := "Line one\n\n\n\nLine   two ©® §ok\t(a) [b] {c} 50% $5"

	got := CleanPageText(in)

	assert.Equal(t, "Line one Line two ok (a) [b] {c} 50% $5", got)
}

func writePNG(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "page-1.png")
	require.NoError(t, os.WriteFile(p, []byte("\x89PNG fake"), 0o644))
	return p
}

func fastOCRSpace(endpoint string) *OCRSpace {
	o := NewOCRSpace(OCRSpaceConfig{Endpoint: endpoint, APIKey: "k", Attempts: 2, CircuitFailures: 2}, nil)
	o.retry.InitialDelay = time.Millisecond
	o.retry.MaxDelay = time.Millisecond
	o.retry.Jitter = false
	return o
}

func TestOCRSpace_ParsesResult(t *testing.T) {
	var gotKey, gotImage, gotOverlay string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("apikey")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotImage = r.FormValue("base64Image")
		gotOverlay = r.FormValue("isOverlayRequired")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"IsErroredOnProcessing": false,
			"ParsedResults":         []map[string]any{{"ParsedText": "scanned text"}},
		})
	}))
	defer srv.Close()

	text, err := fastOCRSpace(srv.URL).Recognize(context.Background(), writePNG(t))

	require.NoError(t, err)
	assert.Equal(t, "scanned text\n", text)
	assert.Equal(t, "k", gotKey)
	assert.True(t, strings.HasPrefix(gotImage, "data:image/png;base64,"))
	assert.Equal(t, "false", gotOverlay)
}

func TestOCRSpace_ProcessingErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"IsErroredOnProcessing":true,"ErrorMessage":["Unable to recognize the file type"]}`))
	}))
	defer srv.Close()

	_, err := fastOCRSpace(srv.URL).Recognize(context.Background(), writePNG(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to recognize the file type")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOCRSpace_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ParsedResults":[{"ParsedText":"ok"}]}`))
	}))
	defer srv.Close()

	text, err := fastOCRSpace(srv.URL).Recognize(context.Background(), writePNG(t))

	require.NoError(t, err)
	assert.Equal(t, "ok\n", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOCRSpace_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	o := fastOCRSpace(srv.URL)
	img := writePNG(t)

	for i := 0; i < 2; i++ {
		_, err := o.Recognize(context.Background(), img)
		require.Error(t, err)
	}
	_, err := o.Recognize(context.Background(), img)

	assert.True(t, serr.HasCode(err, serr.ErrCodeCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, serr.StateOpen, o.Breaker().State())
}

func TestOCRSpace_MissingImage(t *testing.T) {
	o := fastOCRSpace("http://127.0.0.1:1")

	_, err := o.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.png"))

	assert.Error(t, err)
}

func TestProbeTesseract_Missing(t *testing.T) {
	_, _, err := ProbeTesseract(context.Background(), "definitely-not-a-tesseract-binary")
	assert.Error(t, err)
}
