package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdf-chat-platform/models"
)

var pdfMagic = []byte{0x25, 0x50, 0x44, 0x46} // %PDF

// ValidatePDFBytes rejects uploads that are not structurally PDF files
// before any parsing is attempted.
func ValidatePDFBytes(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("file is empty")
	}
	if len(data) < 4 || !bytes.Equal(data[:4], pdfMagic) {
		return fmt.Errorf("not a valid PDF document (missing PDF header)")
	}
	return nil
}

// ExtractPages extracts text page by page. A page with no extractable text
// yields an empty string, not an error; only an unreadable document errors.
func ExtractPages(data []byte) ([]models.Page, error) {
	if err := ValidatePDFBytes(data); err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]models.Page, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.Page{Number: i})
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			// scanned or malformed page: treat as empty rather than failing
			// the whole document
			pages = append(pages, models.Page{Number: i})
			continue
		}
		pages = append(pages, models.Page{Number: i, Text: strings.TrimSpace(text)})
	}

	return pages, nil
}
