package bot

import (
	"log/slog"
	"slices"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/handlers"
	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	"github.com/Proton-105/tarot-bot/internal/state"
)

// Router picks the handler for an update and runs it through the middleware chain.
//
// Callbacks are matched on their identifier, slash commands on the command
// name. Any other text goes to the handler registered for the sender's
// conversation state, or to the fallback when the sender is idle.
type Router struct {
	fsm state.StateMachine
	log *slog.Logger

	mu        sync.RWMutex
	commands  map[string]handlers.Handler
	callbacks map[string]handlers.CallbackHandler
	states    map[state.State]handlers.Handler
	fallback  handlers.Handler
	chain     []handlers.Middleware
}

func NewRouter(fsm state.StateMachine, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		fsm:       fsm,
		log:       log,
		commands:  make(map[string]handlers.Handler),
		callbacks: make(map[string]handlers.CallbackHandler),
		states:    make(map[state.State]handlers.Handler),
	}
}

// RegisterCommand registers a handler for a bot command such as "/start".
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback registers a handler for the callback identifier before the first ":".
func (r *Router) RegisterCallback(unique string, h handlers.CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[unique] = h
}

// RegisterState registers the free-text handler for senders in state s.
func (r *Router) RegisterState(s state.State, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[s] = h
}

// Use appends a middleware. The first registered middleware runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = append(slices.Clip(r.chain), mw)
}

// SetDefault sets the fallback handler for unknown commands and idle free text.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Route handles one update. Callback queries are always acknowledged.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}
	if c.Callback() != nil {
		defer handlers.Ack(c)
	}

	h, chain := r.lookup(c)
	if h == nil {
		return nil
	}
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	if h == nil {
		return nil
	}
	return h(c)
}

func (r *Router) lookup(c telebot.Context) (handlers.Handler, []handlers.Middleware) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cb := c.Callback(); cb != nil {
		unique, _, err := keyboard.DecodeCallback(cb.Data)
		if h, ok := r.callbacks[unique]; err == nil && ok {
			return handlers.Handler(h), r.chain
		}
		r.log.Info("unhandled callback", slog.String("data", cb.Data))
		return nil, nil
	}

	if cmd, _ := handlers.ParseCommand(c.Text()); cmd != "" {
		if h, ok := r.commands[cmd]; ok {
			return h, r.chain
		}
		return r.fallback, r.chain
	}

	return r.byState, r.chain
}

// byState runs inside the middleware chain so the state lookup shares the
// request context and error handling.
func (r *Router) byState(c telebot.Context) error {
	r.mu.RLock()
	h := r.fallback
	r.mu.RUnlock()

	if r.fsm != nil && c.Sender() != nil {
		st, err := r.fsm.GetState(handlers.RequestContext(c), c.Sender().ID)
		if err != nil {
			return err
		}

		current := st.Current()
		r.mu.RLock()
		sh, ok := r.states[current]
		r.mu.RUnlock()

		switch {
		case ok:
			h = sh
		case current != state.StateIdle:
			r.log.Info("no handler for state", slog.String("state", string(current)), slog.Int64("user_id", c.Sender().ID))
		}
	}

	if h == nil {
		return nil
	}
	return h(c)
}
