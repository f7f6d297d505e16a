package mail

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// PlainText returns the message body as text suitable for extraction.
// HTML bodies are converted to markdown.
func PlainText(e Email) (string, error) {
	if !e.HTML {
		return e.Body, nil
	}
	md, err := htmltomarkdown.ConvertString(e.Body)
	if err != nil {
		return "", fmt.Errorf("convert %s body: %w", e.ID, err)
	}
	return strings.TrimSpace(md), nil
}
