package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
)

// DefaultOCRSpaceEndpoint is the public OCR.space parse endpoint.
const DefaultOCRSpaceEndpoint = "https://api.ocr.space/parse/image"

// OCRSpaceConfig configures the remote engine.
type OCRSpaceConfig struct {
	Endpoint string
	APIKey   string
	Language string
	Timeout  time.Duration
	// Attempts per page, including the first.
	Attempts int
	// CircuitFailures is the number of consecutive page failures after which
	// the engine stops calling the service for a minute.
	CircuitFailures int
}

// OCRSpace calls the OCR.space parse API with a base64-encoded PNG.
type OCRSpace struct {
	client  *http.Client
	cfg     OCRSpaceConfig
	retry   serr.RetryConfig
	breaker *serr.CircuitBreaker
	logger  *slog.Logger
}

// NewOCRSpace creates the remote engine.
func NewOCRSpace(cfg OCRSpaceConfig, logger *slog.Logger) *OCRSpace {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOCRSpaceEndpoint
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.CircuitFailures <= 0 {
		cfg.CircuitFailures = 5
	}

	retry := serr.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Attempts
	retry.MaxDelay = 4 * time.Second

	return &OCRSpace{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		retry:   retry,
		breaker: serr.NewCircuitBreaker("ocr.space", serr.WithMaxFailures(cfg.CircuitFailures), serr.WithResetTimeout(time.Minute)),
		logger:  logging.OrNop(logger),
	}
}

func (o *OCRSpace) Name() string   { return "ocr.space" }
func (o *OCRSpace) Source() Source { return SourceCloud }

// Breaker exposes the circuit breaker state for diagnostics.
func (o *OCRSpace) Breaker() *serr.CircuitBreaker { return o.breaker }

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// errorText flattens ErrorMessage, which the API sends as a string or a list.
func (r *ocrSpaceResponse) errorText() string {
	if len(r.ErrorMessage) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(r.ErrorMessage, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(r.ErrorMessage, &s); err == nil {
		return s
	}
	return string(r.ErrorMessage)
}

// Recognize uploads the image and returns the parsed text.
func (o *OCRSpace) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read page image: %w", err)
	}

	return serr.CircuitCall(o.breaker, func() (string, error) {
		return serr.RetryWithResult(ctx, o.retry, func() (string, error) {
			return o.post(ctx, data)
		})
	})
}

func (o *OCRSpace) post(ctx context.Context, image []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"base64Image":       "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
		"language":          o.cfg.Language,
		"isOverlayRequired": "false",
		"scale":             "true",
		"OCREngine":         "2",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", serr.Permanent(err)
		}
	}
	if err := w.Close(); err != nil {
		return "", serr.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Endpoint, &body)
	if err != nil {
		return "", serr.Permanent(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if o.cfg.APIKey != "" {
		req.Header.Set("apikey", o.cfg.APIKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", serr.NetworkError("ocr.space request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", serr.NetworkError("ocr.space response read failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", serr.New(serr.ErrCodeHTTPStatus, fmt.Sprintf("ocr.space returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return "", serr.Permanent(serr.New(serr.ErrCodeHTTPStatus,
			fmt.Sprintf("ocr.space returned %d: %s", resp.StatusCode, truncate(string(payload), 200)), nil))
	}

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", serr.Permanent(fmt.Errorf("decode ocr.space response: %w", err))
	}
	if parsed.IsErroredOnProcessing {
		return "", serr.Permanent(serr.New(serr.ErrCodeOCRFailed, "ocr.space: "+parsed.errorText(), nil))
	}
	if len(parsed.ParsedResults) == 0 {
		return "", serr.Permanent(serr.New(serr.ErrCodeOCRFailed, "ocr.space returned no results", nil))
	}

	var sb strings.Builder
	for _, r := range parsed.ParsedResults {
		sb.WriteString(r.ParsedText)
		sb.WriteString("\n")
	}
	o.logger.Debug("ocr.space page recognized", "chars", sb.Len())
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
