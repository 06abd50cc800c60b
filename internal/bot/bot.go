package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/handlers"
	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/idempotency"
	"github.com/Proton-105/tarot-bot/internal/middleware"
	"github.com/Proton-105/tarot-bot/internal/state"
	"github.com/Proton-105/tarot-bot/pkg/config"
)

// Options carries everything Bot needs besides the telebot client.
type Options struct {
	Deps        handlers.Deps
	ErrHandler  *errors.Handler
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	deps       handlers.Deps
	router     *Router
	errHandler *errors.Handler
	idem       idempotency.Manager
	rateLimit  *middleware.RateLimitMiddleware
}

// NewTelebot creates the Bot API client for the configured delivery mode.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.String("error", redactToken(err.Error()))}
			if c != nil && c.Sender() != nil {
				attrs = append(attrs, slog.Int64("user_id", c.Sender().ID))
			}
			log.Error("telebot error", attrs...)
		},
	}

	if cfg.Mode == config.BotModeWebhook {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %s", redactToken(err.Error()))
	}

	return tb, nil
}

// New wires routes and middlewares onto tb.
func New(tb *telebot.Bot, opts Options) *Bot {
	log := opts.Deps.Log
	if log == nil {
		log = slog.Default()
		opts.Deps.Log = log
	}
	if opts.Deps.Keyboard == nil {
		opts.Deps.Keyboard = keyboard.NewBuilder(log)
	}
	if opts.ErrHandler == nil {
		opts.ErrHandler = errors.NewHandler(log, false)
	}

	b := &Bot{
		telebot:    tb,
		log:        log,
		deps:       opts.Deps,
		router:     NewRouter(opts.Deps.FSM, log),
		errHandler: opts.ErrHandler,
		idem:       opts.Idempotency,
		rateLimit:  opts.RateLimit,
	}

	b.setupRouter()

	if tb != nil {
		if b.rateLimit != nil {
			tb.Use(b.rateLimit.Handle)
		}
		tb.Handle(telebot.OnText, b.router.Route)
		tb.Handle(telebot.OnCallback, b.router.Route)
	}

	return b
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.log.Info("telegram bot started", slog.String("username", b.telebot.Me.Username))
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Route exposes the router entry point.
func (b *Bot) Route(c telebot.Context) error {
	return b.router.Route(c)
}

func (b *Bot) setupRouter() {
	d := b.deps
	catalog := d.I18n

	b.router.Use(RecoveryMiddleware(b.log, b.errHandler, catalog))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Idempotency(b.idem, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler, catalog, b.log))
	b.router.Use(RegistrationMiddleware(d.Users, catalog, b.log))
	b.router.Use(middleware.Metrics)

	start := handlers.NewStartHandler(d)
	myQuestions := handlers.NewMyQuestionsHandler(d)
	cancel := handlers.NewCancelHandler(d)

	b.router.RegisterCommand(CommandStart, start)
	b.router.RegisterCommand(CommandPromote, handlers.NewPromoteHandler(d))
	b.router.RegisterCommand(CommandMyQuestions, myQuestions)
	b.router.RegisterCommand(CommandMyQuestionsAlt, myQuestions)
	b.router.RegisterCommand(CommandCancel, cancel)

	dashboard := handlers.NewTarotDashboardHandler(d)

	b.router.RegisterCallback(keyboard.CallbackAsk, handlers.NewAskHandler(d))
	b.router.RegisterCallback(keyboard.CallbackTarot, dashboard)
	b.router.RegisterCallback(keyboard.CallbackTarotPage, dashboard)
	b.router.RegisterCallback(keyboard.CallbackAnswer, handlers.NewAnswerSelectHandler(d))
	b.router.RegisterCallback(keyboard.CallbackModeration, handlers.NewModerationPanelHandler(d))
	b.router.RegisterCallback(keyboard.CallbackModerate, handlers.NewModerateHandler(d))
	b.router.RegisterCallback(keyboard.CallbackBack, handlers.CallbackHandler(start))
	b.router.RegisterCallback(keyboard.CallbackCancel, handlers.CallbackHandler(cancel))

	b.router.RegisterState(state.StateAskingQuestion, handlers.NewQuestionTextHandler(d))
	b.router.RegisterState(state.StateAnsweringQuestion, handlers.NewAnswerTextHandler(d))

	b.router.SetDefault(handlers.NewIdleHandler(d))
}
