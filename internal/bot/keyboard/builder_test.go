package keyboard_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	"github.com/Proton-105/tarot-bot/internal/domain"
	"github.com/Proton-105/tarot-bot/internal/i18n"
)

func english(t *testing.T) i18n.Translator {
	t.Helper()
	m, err := i18n.Load("en")
	require.NoError(t, err)
	return m.Default()
}

func TestBuilder_MainMenu(t *testing.T) {
	b := keyboard.NewBuilder(nil)
	tr := english(t)

	user := b.MainMenu(tr, false)
	require.Len(t, user.InlineKeyboard, 2)
	assert.Equal(t, keyboard.CallbackAsk, user.InlineKeyboard[0][0].Data)
	assert.Equal(t, keyboard.CallbackTarot, user.InlineKeyboard[1][0].Data)

	admin := b.MainMenu(tr, true)
	require.Len(t, admin.InlineKeyboard, 3)
	assert.Equal(t, keyboard.CallbackModeration, admin.InlineKeyboard[2][0].Data)
	assert.Equal(t, "⚡ Moderation", admin.InlineKeyboard[2][0].Text)
}

func TestBuilder_ModerationButtons(t *testing.T) {
	markup := keyboard.NewBuilder(nil).ModerationButtons(english(t), 42)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "moderate:42:approve", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "moderate:42:reject", markup.InlineKeyboard[0][1].Data)
}

func TestBuilder_TarotDashboard(t *testing.T) {
	b := keyboard.NewBuilder(nil)
	tr := english(t)

	items := make([]domain.QueueItem, 0, 23)
	for i := 1; i <= 23; i++ {
		items = append(items, domain.QueueItem{Question: domain.Question{
			ID:   int64(i),
			Text: fmt.Sprintf("question %d %s", i, strings.Repeat("x", 60)),
		}})
	}

	markup, page := b.TarotDashboard(tr, items, 1)
	assert.Equal(t, 1, page)
	// 10 questions, pagination, back
	require.Len(t, markup.InlineKeyboard, 12)
	assert.Equal(t, "answer:1", markup.InlineKeyboard[0][0].Data)
	assert.True(t, strings.HasSuffix(markup.InlineKeyboard[0][0].Text, "..."))
	assert.Equal(t, "tarot_page:2", markup.InlineKeyboard[10][1].Data)
	assert.Equal(t, keyboard.CallbackBack, markup.InlineKeyboard[11][0].Data)

	markup, page = b.TarotDashboard(tr, items, 7)
	assert.Equal(t, 3, page)
	require.Len(t, markup.InlineKeyboard, 5)
	assert.Equal(t, "answer:21", markup.InlineKeyboard[0][0].Data)

	markup, page = b.TarotDashboard(tr, items[:2], 1)
	assert.Equal(t, 1, page)
	require.Len(t, markup.InlineKeyboard, 3)
}
