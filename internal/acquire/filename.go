package acquire

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxBaseBytes caps the sanitized document id part of a file name.
const maxBaseBytes = 190

var (
	unsafeCharsRe   = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	attachmentURLRe = regexp.MustCompile(`attachment_(\d+)`)
)

// extensions in match order; ".docx" must be tested before ".doc".
var extensions = []string{".docx", ".doc", ".xlsx", ".xls", ".txt", ".pdf"}

// Sanitize makes a document id safe to use as a file name.
func Sanitize(id string) string {
	s := unsafeCharsRe.ReplaceAllString(id, "_")
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if len(s) > maxBaseBytes {
		cut := maxBaseBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	if s == "" {
		s = "document"
	}
	return s
}

// ExtensionFor infers the file extension from the URL path; ".pdf" when
// nothing matches.
func ExtensionFor(u *url.URL) string {
	p := strings.ToLower(u.Path)
	for _, ext := range extensions {
		if strings.Contains(p, ext) {
			return ext
		}
	}
	return ".pdf"
}

// FileName derives the local file name for the position-th (0-based) URL of
// a document: sanitized id, attachment suffix, extension. The suffix uses the
// number from an "attachment_N" path segment when present, otherwise the
// 1-based position for every URL after the first.
func FileName(documentID string, u *url.URL, position int) string {
	base := Sanitize(documentID)
	ext := ExtensionFor(u)
	if m := attachmentURLRe.FindStringSubmatch(u.Path); m != nil {
		return fmt.Sprintf("%s_attachment_%s%s", base, m[1], ext)
	}
	if position > 0 {
		return fmt.Sprintf("%s_attachment_%d%s", base, position+1, ext)
	}
	return base + ext
}

// ParseURL validates a manifest URL: it needs a supported scheme and a host.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "gs":
	case "":
		return nil, fmt.Errorf("missing scheme")
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
