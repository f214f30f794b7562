package web

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emprenix/internal/models"
)

func TestRenderHistoryAlternatesByPosition(t *testing.T) {
	for _, pairs := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("%d pairs", pairs), func(t *testing.T) {
			var messages []models.Message
			for i := 0; i < pairs; i++ {
				messages = append(messages,
					models.Message{Role: models.RoleUser, Content: fmt.Sprintf("question %d", i)},
					models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
				)
			}

			bubbles := RenderHistory(messages)
			require.Len(t, bubbles, 2*pairs)
			users, assistants := 0, 0
			for i, b := range bubbles {
				if i%2 == 0 {
					assert.Equal(t, BubbleUser, b.Kind)
					users++
				} else {
					assert.Equal(t, BubbleAssistant, b.Kind)
					assistants++
				}
			}
			assert.Equal(t, pairs, users)
			assert.Equal(t, pairs, assistants)
		})
	}
}

func TestRenderHistoryEscapesUserText(t *testing.T) {
	bubbles := RenderHistory([]models.Message{{Role: models.RoleUser, Content: "<script>alert(1)</script>"}})
	require.Len(t, bubbles, 1)
	assert.NotContains(t, string(bubbles[0].HTML), "<script>")
	assert.Contains(t, string(bubbles[0].HTML), "&lt;script&gt;")
}

func TestRenderHistoryRendersAssistantMarkdown(t *testing.T) {
	bubbles := RenderHistory([]models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "We offer **consulting**.\n\n<script>alert(1)</script>"},
	})
	require.Len(t, bubbles, 2)
	html := string(bubbles[1].HTML)
	assert.Contains(t, html, "<strong>consulting</strong>")
	assert.NotContains(t, html, "<script>")
}

func TestPageFromPath(t *testing.T) {
	for _, p := range Pages {
		assert.Equal(t, p, PageFromPath(p.Path()))
	}
	assert.Equal(t, PageHome, PageFromPath("https://evil.example.com"))
	assert.Equal(t, "What can we do for you?", PageAbout.Label())
}
