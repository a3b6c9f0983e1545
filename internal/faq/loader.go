package faq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBytes     = 5 << 20
)

// ErrTooLarge is returned when a document exceeds the loader's size limit.
var ErrTooLarge = errors.New("document too large")

// ErrOutsideRoot is returned for a local reference that does not resolve
// inside one of the loader's document directories.
var ErrOutsideRoot = errors.New("document outside allowed directories")

// Kind identifies how document bytes are turned into text.
type Kind string

const (
	KindText Kind = "text"
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
)

// Document is a loaded document reduced to plain text.
type Document struct {
	Name string
	Kind Kind
	Text string
}

// DocumentLoader reads documents from http(s) URLs or from local paths under
// one of its root directories. With no roots, only URLs are accepted.
type DocumentLoader struct {
	httpClient *http.Client
	maxBytes   int64
	roots      []string
}

// NewDocumentLoader creates a loader confined to roots. Empty roots are
// ignored. Relative references resolve against the first root.
func NewDocumentLoader(roots ...string) *DocumentLoader {
	l := &DocumentLoader{
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		maxBytes:   defaultMaxBytes,
	}
	for _, r := range roots {
		if strings.TrimSpace(r) != "" {
			l.roots = append(l.roots, r)
		}
	}
	return l
}

// SupportedExtensions lists the file extensions the inbox watcher picks up.
func SupportedExtensions() []string {
	return []string{".pdf", ".html", ".htm", ".txt", ".md"}
}

// Load fetches ref and converts it to text.
func (l *DocumentLoader) Load(ctx context.Context, ref string) (Document, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Document{}, fmt.Errorf("empty document reference")
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return l.fetch(ctx, ref)
	}
	p, err := l.resolveLocal(ref)
	if err != nil {
		return Document{}, err
	}
	return l.readFile(p)
}

// resolveLocal maps ref to a real path inside a root. The check runs on the
// cleaned path and again after symlinks are resolved.
func (l *DocumentLoader) resolveLocal(ref string) (string, error) {
	for _, root := range l.roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rootReal, err := filepath.EvalSymlinks(rootAbs)
		if err != nil {
			continue
		}

		p := ref
		if !filepath.IsAbs(p) {
			p = filepath.Join(rootAbs, p)
		}
		p = filepath.Clean(p)
		if !within(rootAbs, p) && !within(rootReal, p) {
			continue
		}

		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return "", fmt.Errorf("opening document: %w", err)
		}
		if !within(rootReal, resolved) {
			continue
		}
		return resolved, nil
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideRoot, ref)
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (l *DocumentLoader) fetch(ctx context.Context, url string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, fmt.Errorf("creating request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := l.readLimited(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", url, err)
	}

	name := path.Base(req.URL.Path)
	kind := detectKind(name, resp.Header.Get("Content-Type"), data)
	text, err := ExtractText(kind, data)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: name, Kind: kind, Text: text}, nil
}

func (l *DocumentLoader) readFile(p string) (Document, error) {
	f, err := os.Open(p)
	if err != nil {
		return Document{}, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	data, err := l.readLimited(f)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", p, err)
	}

	name := filepath.Base(p)
	kind := detectKind(name, "", data)
	text, err := ExtractText(kind, data)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: name, Kind: kind, Text: text}, nil
}

func (l *DocumentLoader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, l.maxBytes)
	}
	return data, nil
}

// detectKind picks a converter from the content type, then the file
// extension, then the leading bytes.
func detectKind(name, contentType string, data []byte) Kind {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "application/pdf":
			return KindPDF
		case "text/html", "application/xhtml+xml":
			return KindHTML
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".html", ".htm":
		return KindHTML
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return KindPDF
	}
	return KindText
}

// ExtractText converts raw document bytes of the given kind to plain text.
func ExtractText(kind Kind, data []byte) (string, error) {
	switch kind {
	case KindPDF:
		return pdfText(data)
	case KindHTML:
		return htmlText(bytes.NewReader(data))
	default:
		return string(data), nil
	}
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// skipped elements never contribute visible text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// block elements end a line of text.
var block = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "dt": true, "dd": true, "title": true,
}

func htmlText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	depth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return collapseBlankLines(sb.String()), nil
			}
			return "", fmt.Errorf("tokenizing html: %w", z.Err())
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] {
				depth++
			}
			if block[tag] {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] && depth > 0 {
				depth--
			}
			if block[tag] {
				sb.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if block[string(name)] {
				sb.WriteByte('\n')
			}
		case html.TextToken:
			if depth > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(z.Text())), " ")
			if text == "" {
				continue
			}
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
