package web

import (
	"bytes"
	"html/template"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"emprenix/internal/models"
)

const (
	BubbleUser      = "user"
	BubbleAssistant = "assistant"
)

// Bubble is one rendered chat turn.
type Bubble struct {
	Kind string
	HTML template.HTML
}

// raw HTML in answers is dropped by the renderer
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderHistory renders the conversation with alternating templates: even
// entries are user turns, odd entries assistant turns.
func RenderHistory(messages []models.Message) []Bubble {
	bubbles := make([]Bubble, len(messages))
	for i, msg := range messages {
		if i%2 == 0 {
			bubbles[i] = Bubble{Kind: BubbleUser, HTML: template.HTML(template.HTMLEscapeString(msg.Content))}
			continue
		}
		bubbles[i] = Bubble{Kind: BubbleAssistant, HTML: renderMarkdown(msg.Content)}
	}
	return bubbles
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		log.Warn().Err(err).Msg("Error rendering markdown")
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}
