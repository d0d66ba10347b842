// Package bot binds the dialogue engine, the monitor, and the journal to
// Telegram commands, text, and button callbacks.
package bot

import (
	"context"
	"fmt"

	tg "github.com/m3rciful/solwatch/core/telegram"
	"github.com/m3rciful/solwatch/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/solwatch/core/telegram/helpers"
	"github.com/m3rciful/solwatch/core/telegram/middleware"
	"github.com/m3rciful/solwatch/core/telegram/router"
	"github.com/m3rciful/solwatch/internal/dialogue"
	"github.com/m3rciful/solwatch/internal/journal"
	"github.com/m3rciful/solwatch/internal/monitor"

	tele "gopkg.in/telebot.v4"
)

// Handler consumes dialogue events. *dialogue.Engine satisfies it.
type Handler interface {
	Handle(ctx context.Context, ev dialogue.Event) error
}

// WatchLister lists active watches. *monitor.Monitor satisfies it.
type WatchLister interface {
	Watched() []monitor.Watch
}

// HistoryReader reads a user's journal. *journal.Store satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, userID int64, limit int) ([]journal.Entry, error)
}

// Deps are the bot's collaborators. History may be nil, which hides /history.
type Deps struct {
	Dialogue     Handler
	Watches      WatchLister
	History      HistoryReader
	AdminID      int64
	ExplorerBase string
}

// Bot holds the Telegram handlers.
type Bot struct {
	deps     Deps
	commands []commandSpec
}

// New builds the handler set.
func New(deps Deps) *Bot {
	return &Bot{deps: deps}
}

type commandSpec struct {
	name string
	menu string
	help string
}

// commandList is in help order.
var commandList = []commandSpec{
	{name: "/start", menu: "Start monitoring your Solana wallet address", help: "Start monitoring your Solana wallet address"},
	{name: "/send", menu: "Send SOL to another address", help: "Send SOL to another address"},
	{name: "/stop", menu: "Stop monitoring your wallet", help: "Stop monitoring your wallet"},
	{name: "/view_wallets", menu: "View currently monitored wallets", help: "View currently monitored wallets"},
	{name: "/history", menu: "Show recent wallet activity", help: "Show your recent wallet activity"},
	{name: "/help", menu: "Show help message", help: "Show this help message"},
}

// Register adds every command, the choice callback, and the text fallback.
func (b *Bot) Register(reg *tg.Registry) error {
	handlers := map[string]tele.HandlerFunc{
		"/start":        b.event(dialogue.EventStart),
		"/send":         b.event(dialogue.EventSend),
		"/stop":         b.event(dialogue.EventStop),
		"/view_wallets": b.viewWallets,
		"/help":         b.help,
	}
	if b.deps.History != nil {
		handlers["/history"] = b.history
	}
	for _, spec := range commandList {
		h, ok := handlers[spec.name]
		if !ok {
			continue
		}
		if err := reg.RegisterCommand(spec.name, tg.Command{Handler: h, Description: spec.menu}); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		b.commands = append(b.commands, spec)
	}
	if err := reg.RegisterCallback(choiceKey, b.choice); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	reg.SetTextFallback(b.text)
	return nil
}

// Routes binds the registered commands, text, media rejection, and button
// callbacks. Call after Register.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: b.deps.AdminID})
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{
		UnknownMedia:   unsupported,
		UnknownCommand: unknownCommand,
	})...)
	return append(routes, router.CallbackRoute(reg))
}

func (b *Bot) event(kind dialogue.EventKind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.dispatch(c, kind, "")
	}
}

func (b *Bot) text(c tele.Context) error {
	return b.dispatch(c, dialogue.EventText, c.Text())
}

func (b *Bot) choice(c tele.Context) error {
	return b.dispatch(c, dialogue.EventChoice, callbacks.CallbackPayload(c))
}

func (b *Bot) dispatch(c tele.Context, kind dialogue.EventKind, text string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ev := dialogue.Event{Kind: kind, UserID: sender.ID, Text: text}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if kind == dialogue.EventText {
		if msg := c.Message(); msg != nil {
			ev.MessageID = msg.ID
		}
	}
	return b.deps.Dialogue.Handle(tghelpers.BuildContext(c), ev)
}

// viewWallets lists every watch for the admin and the sender's own otherwise.
func (b *Bot) viewWallets(c tele.Context) error {
	var watches []monitor.Watch
	if b.deps.Watches != nil {
		watches = b.deps.Watches.Watched()
	}
	if !middleware.IsAdmin(c, b.deps.AdminID) {
		own := watches[:0:0]
		for _, w := range watches {
			if w.UserID == c.Sender().ID {
				own = append(own, w)
			}
		}
		watches = own
	}
	return tghelpers.SendText(c, walletsText(watches))
}

func (b *Bot) history(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	entries, err := b.deps.History.Recent(ctx, c.Sender().ID, journal.DefaultLimit)
	if err != nil {
		_ = tghelpers.SendText(c, "History is unavailable right now. Please try again later.")
		return err
	}
	return tghelpers.SendPreview(c, historyText(entries, b.deps.ExplorerBase))
}

func (b *Bot) help(c tele.Context) error {
	return tghelpers.SendText(c, helpText(b.commands))
}

func unsupported(c tele.Context) error {
	return tghelpers.SendText(c, textUnsupported)
}

func unknownCommand(c tele.Context) error {
	return tghelpers.SendText(c, textUnknownCommand)
}

// RateLimited answers a throttled sender.
func RateLimited(c tele.Context) error {
	return tghelpers.SendText(c, textRateLimited)
}
