package procedures

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// announceExcerpt bounds the procedure preview posted to chat.
const announceExcerpt = 600

func newMarkdownConverter() *md.Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return converter
}

// toMarkdown renders sanitised procedure HTML as GitHub flavored markdown.
func (s *Service) toMarkdown(content string) (string, error) {
	out, err := s.markdown.ConvertString(content)
	if err != nil {
		return "", fmt.Errorf("failed to convert procedure to markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Markdown returns a stored procedure as markdown for printing or chat.
func (s *Service) Markdown(ctx context.Context, id string) (string, error) {
	procedure, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.toMarkdown(procedure.Content)
}

// excerpt cuts markdown at a line boundary near limit.
func excerpt(markdown string, limit int) string {
	if len(markdown) <= limit {
		return markdown
	}
	cut := markdown[:limit]
	if nl := strings.LastIndexByte(cut, '\n'); nl > 0 {
		cut = cut[:nl]
	}
	return strings.TrimSpace(cut) + "\n…"
}
