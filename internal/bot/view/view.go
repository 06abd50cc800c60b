// Package view renders questions into chat text.
package view

import (
	"strings"
	"unicode/utf8"

	"github.com/Proton-105/tarot-bot/internal/domain"
	"github.com/Proton-105/tarot-bot/internal/i18n"
)

const (
	// PreviewRunes is the longest text shown verbatim in lists and buttons.
	PreviewRunes = 50
	ellipsis     = "..."

	// MessageLimit is Telegram's maximum text length in characters.
	MessageLimit = 4096
)

// Preview shortens text to PreviewRunes characters, appending an ellipsis when cut.
func Preview(text string) string {
	return Truncate(text, PreviewRunes)
}

// Truncate keeps the first limit runes of text and marks the cut with "...".
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	return string(runes[:limit]) + ellipsis
}

// StatusGlyph returns the marker shown next to a question in the asker's history.
func StatusGlyph(q domain.Question) string {
	switch {
	case q.Status == domain.StatusRejected:
		return "❌"
	case q.HasAnswer():
		return "✅"
	default:
		return "🕒"
	}
}

// UserQuestions renders the asker's history, newest first as given.
func UserQuestions(t i18n.Translator, questions []domain.Question) string {
	if len(questions) == 0 {
		return t.T("my.empty")
	}

	var b strings.Builder
	b.WriteString(t.T("my.header"))
	for _, q := range questions {
		b.WriteString("\n\n")
		b.WriteString(t.Tf("my.item", StatusGlyph(q), q.ID, Preview(q.Text)))
		if q.HasAnswer() {
			b.WriteString("\n")
			b.WriteString(t.Tf("my.answer", Preview(*q.AnswerText)))
		}
	}

	return b.String()
}

// ModerationItem renders one pending question with its answer, if any.
func ModerationItem(t i18n.Translator, item domain.QueueItem) string {
	text := t.Tf("moderation.item", item.ID, item.AskerName, item.Text)
	if item.HasAnswer() {
		text += t.Tf("moderation.item_answer", item.ResponderName, *item.AnswerText)
	}
	return Truncate(text, MessageLimit-len(ellipsis))
}

// Chunks splits text on line boundaries into pieces no longer than limit runes.
// A single line longer than limit is split by runes.
func Chunks(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current []rune
	)

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = current[:0]
		}
	}

	for i, line := range strings.Split(text, "\n") {
		piece := []rune(line)
		if i > 0 {
			piece = append([]rune{'\n'}, piece...)
		}

		if len(current)+len(piece) > limit {
			flush()
			if i > 0 {
				piece = piece[1:]
			}
		}

		for len(piece) > limit {
			chunks = append(chunks, string(piece[:limit]))
			piece = piece[limit:]
		}
		current = append(current, piece...)
	}
	flush()

	return chunks
}
