package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// TextLayer reads the embedded text of PDF pages.
type TextLayer interface {
	Name() string
	// ReadPages returns the text of the first limit pages (all pages when
	// limit <= 0) and the document's total page count. Unreadable pages
	// come back empty.
	ReadPages(path string, limit int) (pages []string, total int, err error)
}

// NewTextLayer returns the reader for a backend name: "ledongthuc",
// "pdfcpu" or "auto" (ledongthuc, then pdfcpu when it cannot open the file).
func NewTextLayer(backend string) (TextLayer, error) {
	switch strings.ToLower(backend) {
	case "", "auto":
		return fallbackLayer{primary: plainTextLayer{}, secondary: contentStreamLayer{}}, nil
	case "ledongthuc":
		return plainTextLayer{}, nil
	case "pdfcpu":
		return contentStreamLayer{}, nil
	}
	return nil, fmt.Errorf("unknown pdf backend %q", backend)
}

func pageLimit(total, limit int) int {
	if limit > 0 && limit < total {
		return limit
	}
	return total
}

// plainTextLayer uses ledongthuc/pdf's plain-text extraction.
type plainTextLayer struct{}

func (plainTextLayer) Name() string { return "ledongthuc" }

func (plainTextLayer) ReadPages(path string, limit int) (pages []string, total int, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parser: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	total = reader.NumPage()
	n := pageLimit(total, limit)
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, perr := p.GetPlainText(nil)
		if perr != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, total, nil
}

// contentStreamLayer decodes show-text operators from pdfcpu page content.
type contentStreamLayer struct{}

func (contentStreamLayer) Name() string { return "pdfcpu" }

func (contentStreamLayer) ReadPages(path string, limit int) ([]string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, 0, fmt.Errorf("pdfcpu read: %w", err)
	}

	total := ctx.PageCount
	n := pageLimit(total, limit)
	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		r, err := pdfcpu.ExtractPageContent(ctx, i)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		pages[i-1] = showTextOperands(data)
	}
	return pages, total, nil
}

type fallbackLayer struct {
	primary, secondary TextLayer
}

func (l fallbackLayer) Name() string { return "auto" }

func (l fallbackLayer) ReadPages(path string, limit int) ([]string, int, error) {
	pages, total, err := l.primary.ReadPages(path, limit)
	if err == nil {
		return pages, total, nil
	}
	pages, total, err2 := l.secondary.ReadPages(path, limit)
	if err2 != nil {
		return nil, 0, fmt.Errorf("%s: %v; %s: %w", l.primary.Name(), err, l.secondary.Name(), err2)
	}
	return pages, total, nil
}

var literalRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// showTextOperands collects the string operands of Tj, TJ, ' and " and
// breaks lines on T*, Td and TD.
func showTextOperands(stream []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(stream, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range literalRe.FindAllSubmatch(line, -1) {
				sb.WriteString(unescapeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			sb.WriteByte('\n')
			for _, m := range literalRe.FindAllSubmatch(line, -1) {
				sb.WriteString(unescapeLiteral(m[1]))
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func unescapeLiteral(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			out = append(out, c)
			continue
		}
		i++
		switch e := raw[i]; e {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := int(e - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				v = v*8 + int(raw[i]-'0')
			}
			out = append(out, byte(v))
		default:
			out = append(out, e)
		}
	}
	return string(out)
}
