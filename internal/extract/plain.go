package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// extractPlain returns content as a single page with an unknown page number,
// validating it is valid UTF-8. Invalid sequences are replaced with the
// replacement character.
func extractPlain(content []byte) ([]models.Page, error) {
	text := string(content)
	if !utf8.Valid(content) {
		text = strings.ToValidUTF8(text, "�")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []models.Page{{Number: models.PageUnknown, Text: text}}, nil
}
