package document

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spigell/resume-analyzer/internal/logger"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"
)

const (
	ExtPDF      = ".pdf"
	ExtDOCX     = ".docx"
	ExtText     = ".txt"
	ExtMarkdown = ".md"
)

var (
	errNoText = errors.New("document contains no text")

	readers = map[string]func([]byte) (string, error){
		ExtPDF:      readPDF,
		ExtDOCX:     readDOCX,
		ExtText:     readPlain,
		ExtMarkdown: readPlain,
	}

	xmlTagRe       = regexp.MustCompile(`<[^>]+>`)
	inlineSpacesRe = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
)

// Extractor converts resume documents to plain text.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(log *zap.Logger) *Extractor {
	return &Extractor{logger: logger.WithComponent(log, "document")}
}

// Supported lists the accepted file extensions.
func Supported() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func supportedList() string {
	return strings.Join(Supported(), ", ")
}

// IsSupported reports whether name has an extension the Extractor can read.
func IsSupported(name string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ExtractFile reads the document at path and extracts its text.
func (e *Extractor) ExtractFile(path string) (string, error) {
	if !IsSupported(path) {
		return "", &UnsupportedFormatError{Name: filepath.Base(path), Ext: strings.ToLower(filepath.Ext(path))}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	return e.ExtractText(filepath.Base(path), data)
}

// ExtractText dispatches on the extension of name. The extension is checked
// before any byte of data is parsed.
func (e *Extractor) ExtractText(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	read, ok := readers[ext]
	if !ok {
		return "", &UnsupportedFormatError{Name: name, Ext: ext}
	}

	text, err := read(data)
	if err != nil {
		return "", &ExtractionError{Name: name, Err: err}
	}

	text = cleanText(text)
	if text == "" {
		return "", &ExtractionError{Name: name, Err: errNoText}
	}

	e.logger.Debug("document text extracted",
		zap.String("name", name),
		zap.String("format", ext),
		zap.Int("size", len(data)),
		zap.Int("text_length", utf8.RuneCountInString(text)),
	)

	return text, nil
}

func readPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}

// readPDF concatenates the plain text of every page. The parser panics on
// some malformed inputs, so panics are turned into errors.
func readPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}

		builder.WriteString(pageText)
		builder.WriteString("\n\n")
	}

	return builder.String(), nil
}

func readDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	return paragraphText(doc.Editable().GetContent()), nil
}

// paragraphText turns WordprocessingML into plain text, one line per paragraph.
func paragraphText(content string) string {
	replacer := strings.NewReplacer(
		"</w:p>", "\n",
		"<w:br/>", "\n",
		"<w:cr/>", "\n",
		"<w:tab/>", "\t",
	)
	text := xmlTagRe.ReplaceAllString(replacer.Replace(content), "")
	return html.UnescapeString(text)
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpacesRe.ReplaceAllString(line, " "))
	}

	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n\n"))
}
