package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n"

// LoadPDFText extracts the plain text of every page of the PDF at filePath,
// concatenated in page order.
func LoadPDFText(filePath string) (string, error) {
	pages, err := LoadPDFPages(filePath)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, PageSeparator), nil
}

// LoadPDFPages returns the plain text of each page, first page first.
func LoadPDFPages(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}

	reader, err := newReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf %s: %w", filePath, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text of page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}

	log.Debug().Str("file", filePath).Int("pages", numPages).Msg("Loaded pdf")
	return pages, nil
}

// pdf.NewReader panics on some malformed inputs instead of returning an error.
func newReader(f *os.File, size int64) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(f, size)
}
