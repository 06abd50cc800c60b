package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/view"
)

// NewPromoteHandler grants the reader role: "/promote @username" or "/promote <id>".
func NewPromoteHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		t := Translator(c, d.I18n)

		_, args := ParseCommand(c.Text())
		if len(args) == 0 {
			return c.Send(t.T("promote.usage"))
		}

		promoted, err := d.Users.Promote(RequestContext(c), senderID(c), args[0])
		if err != nil {
			return err
		}

		return c.Send(t.Tf("promote.done", promoted.Handle()))
	}
}

// NewMyQuestionsHandler lists the sender's questions, newest first.
func NewMyQuestionsHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		questions, err := d.Questions.UserQuestions(RequestContext(c), senderID(c))
		if err != nil {
			return err
		}

		t := Translator(c, d.I18n)
		for _, chunk := range view.Chunks(view.UserQuestions(t, questions), view.MessageLimit) {
			if err := c.Send(chunk); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewIdleHandler answers free text that arrives while the bot expects nothing.
func NewIdleHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		t := Translator(c, d.I18n)
		return c.Send(t.T("idle.hint"), d.Keyboard.MainMenu(t, d.Users.IsAdmin(senderID(c))))
	}
}
