package keyboard

import (
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/view"
	"github.com/Proton-105/tarot-bot/internal/domain"
	"github.com/Proton-105/tarot-bot/internal/i18n"
)

// Callback identifiers. Buttons carry "unique" or "unique:data".
const (
	CallbackAsk        = "ask_question"
	CallbackTarot      = "i_am_tarot"
	CallbackModeration = "moderation"
	CallbackBack       = "back_to_start"
	CallbackCancel     = "cancel"
	CallbackAnswer     = "answer"
	CallbackModerate   = "moderate"
	CallbackTarotPage  = "tarot_page"
)

// Moderation verdicts carried after the question id.
const (
	VerdictApprove = "approve"
	VerdictReject  = "reject"
)

// DashboardPageSize is the number of questions listed per reader dashboard page.
const DashboardPageSize = 10

// Builder creates the bot's inline keyboards.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// MainMenu builds the start menu. The moderation entry is shown to the administrator only.
func (b *Builder) MainMenu(t i18n.Translator, isAdmin bool) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("menu.ask"), Unique: CallbackAsk}).
		AddRow(InlineButton{Text: t.T("menu.tarot"), Unique: CallbackTarot})
	if isAdmin {
		kb.AddRow(InlineButton{Text: t.T("menu.moderation"), Unique: CallbackModeration})
	}
	return b.build(kb)
}

// CancelButton builds a single cancel button shown while the bot waits for text.
func (b *Builder) CancelButton(t i18n.Translator) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().AddRow(InlineButton{Text: t.T("menu.cancel"), Unique: CallbackCancel}))
}

// BackButton builds a single button returning to the start menu.
func (b *Builder) BackButton(t i18n.Translator) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().AddRow(InlineButton{Text: t.T("menu.back"), Unique: CallbackBack}))
}

// OpenModerationButton links an administrator notification to the moderation panel.
func (b *Builder) OpenModerationButton(t i18n.Translator) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().AddRow(InlineButton{Text: t.T("moderation.open"), Unique: CallbackModeration}))
}

// ModerationButtons builds the approve/reject pair for one question.
func (b *Builder) ModerationButtons(t i18n.Translator, questionID int64) *telebot.ReplyMarkup {
	id := strconv.FormatInt(questionID, 10)
	return b.build(NewInlineKeyboard().AddRow(
		InlineButton{Text: t.T("moderation.approve"), Unique: CallbackModerate, Data: JoinData(id, VerdictApprove)},
		InlineButton{Text: t.T("moderation.reject"), Unique: CallbackModerate, Data: JoinData(id, VerdictReject)},
	))
}

// TarotDashboard lists one page of the answer queue as buttons, one question per row,
// followed by pagination and a back button. It returns the page actually shown.
func (b *Builder) TarotDashboard(t i18n.Translator, items []domain.QueueItem, page int) (*telebot.ReplyMarkup, int) {
	shown, pager := Paginate(items, page, DashboardPageSize)

	kb := NewInlineKeyboard()
	for _, item := range shown {
		kb.AddRow(InlineButton{
			Text:   t.Tf("tarot.item", item.ID, view.Preview(item.Text)),
			Unique: CallbackAnswer,
			Data:   strconv.FormatInt(item.ID, 10),
		})
	}
	if pager.Total > 1 {
		kb.AddRow(PaginationButtons(t, CallbackTarotPage, pager)...)
	}
	kb.AddRow(InlineButton{Text: t.T("menu.back"), Unique: CallbackBack})

	return b.build(kb), pager.Page
}

func (b *Builder) build(kb *InlineKeyboardBuilder) *telebot.ReplyMarkup {
	markup, err := kb.Build()
	if err != nil {
		// every callback produced here is short; an overflow is a programming error
		b.log.Error("keyboard build failed", slog.Any("error", err))
		return &telebot.ReplyMarkup{}
	}
	return markup
}
