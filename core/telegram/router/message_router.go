package router

import (
	"time"

	tg "github.com/m3rciful/solwatch/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for updates the registry does not
// handle. Documents and photos never carry dialogue input.
type TextOptions struct {
	UnknownMedia tele.HandlerFunc
	// UnknownCommand answers "/" text the registry does not know. When nil
	// such text goes to the text fallback.
	UnknownCommand tele.HandlerFunc
}

// TextRoutes routes plain text to the registry's text fallback and answers
// media through UnknownMedia. Commands are bound separately by CommandRoutes;
// text that still looks like a command is resolved via the registry so
// aliases typed with a bot suffix reach their handler.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil && len(text) > 0 && text[0] == '/' {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if opts.UnknownCommand != nil {
				return handleWithSummary(c, "unknown_command", start, func() error {
					return opts.UnknownCommand(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "text", start, func() error {
					return fb(c)
				})
			}
		}

		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	media := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownMedia != nil {
			return handleWithSummary(c, "unexpected_media", start, func() error {
				return opts.UnknownMedia(c)
			})
		}
		logHandlerSummary(c, "unexpected_media", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: handler},
		{Endpoint: tele.OnDocument, Handler: media},
		{Endpoint: tele.OnPhoto, Handler: media},
	}
}
