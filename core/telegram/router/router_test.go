package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/solwatch/core/telegram"
	"github.com/m3rciful/solwatch/core/telegram/callbacks"
)

// testBot answers every Bot API call with a bare success.
func testBot(t *testing.T) *tele.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"ok":true,"result":true}`)
	}))
	t.Cleanup(srv.Close)
	b, err := tele.NewBot(tele.Settings{Offline: true, URL: srv.URL, Token: "1:test"})
	require.NoError(t, err)
	return b
}

func text(b *tele.Bot, userID int64, s string) tele.Context {
	return b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
		Text:   s,
	}})
}

func callback(b *tele.Bot, data string) tele.Context {
	return b.NewContext(tele.Update{ID: 2, Callback: &tele.Callback{
		ID:     "cb",
		Sender: &tele.User{ID: 5},
		Data:   data,
	}})
}

func TestCallbackRoute(t *testing.T) {
	b := testBot(t)
	reg := tg.NewRegistry()
	var payload string
	require.NoError(t, reg.RegisterCallback("choice", func(c tele.Context) error {
		payload = callbacks.CallbackPayload(c)
		return nil
	}))
	var missing bool
	reg.SetCallbackNotFound(func(tele.Context) error { missing = true; return nil })

	route := CallbackRoute(reg)
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	require.NoError(t, route.Handler(callback(b, "\fchoice|2")))
	assert.Equal(t, "2", payload)
	assert.False(t, missing)

	require.NoError(t, route.Handler(callback(b, "\fother|x")))
	assert.True(t, missing)
}

func TestTextRoutes(t *testing.T) {
	b := testBot(t)
	reg := tg.NewRegistry()
	var helped int
	require.NoError(t, reg.RegisterCommand("/help", tg.Command{
		Description: "help",
		Aliases:     []string{"h"},
		Handler:     func(tele.Context) error { helped++; return nil },
	}))
	var fallback []string
	reg.SetTextFallback(func(c tele.Context) error {
		fallback = append(fallback, c.Text())
		return nil
	})

	routes := TextRoutes(reg, TextOptions{})
	require.Len(t, routes, 3)
	h := routes[0].Handler

	require.NoError(t, h(text(b, 1, "/help@solwatch_bot now")))
	require.NoError(t, h(text(b, 1, "/h")))
	require.NoError(t, h(text(b, 1, "So11111111111111111111111111111111111111112")))
	require.NoError(t, h(text(b, 1, "/unknown")))

	assert.Equal(t, 2, helped)
	assert.Equal(t, []string{"So11111111111111111111111111111111111111112", "/unknown"}, fallback)
}

func TestTextRoutesUnknownCommand(t *testing.T) {
	b := testBot(t)
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", tg.Command{Handler: func(tele.Context) error { return nil }}))
	var fallback, unknown []string
	reg.SetTextFallback(func(c tele.Context) error {
		fallback = append(fallback, c.Text())
		return nil
	})

	h := TextRoutes(reg, TextOptions{UnknownCommand: func(c tele.Context) error {
		unknown = append(unknown, c.Text())
		return nil
	}})[0].Handler

	require.NoError(t, h(text(b, 1, "/foo")))
	require.NoError(t, h(text(b, 1, "/help")))
	require.NoError(t, h(text(b, 1, "word list here")))

	assert.Equal(t, []string{"/foo"}, unknown)
	assert.Equal(t, []string{"word list here"}, fallback)
}

func TestCommandRoutes(t *testing.T) {
	b := testBot(t)
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", tg.Command{
		Description: "start", Aliases: []string{"begin"},
		Handler: func(tele.Context) error { return nil },
	}))
	require.NoError(t, reg.RegisterCommand("/stats", tg.Command{
		Description: "stats", AdminOnly: true,
		Handler: func(tele.Context) error { return errors.New("admin reached") },
	}))

	routes := CommandRoutes(reg, CommandRouteOptions{AdminID: 99})
	byEndpoint := map[any]tele.HandlerFunc{}
	for _, r := range routes {
		byEndpoint[r.Endpoint] = r.Handler
	}
	require.Contains(t, byEndpoint, "/start")
	require.Contains(t, byEndpoint, "/begin")
	require.Contains(t, byEndpoint, "/stats")

	assert.NoError(t, byEndpoint["/stats"](text(b, 1, "/stats")), "non-admin is silently rejected")
	assert.EqualError(t, byEndpoint["/stats"](text(b, 99, "/stats")), "admin reached")
}

type codedErr struct{}

func (codedErr) Error() string { return "x" }
func (codedErr) Code() string  { return "transfer.timeout" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "TRANSFER.TIMEOUT", deriveErrorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("plain")))
	assert.Equal(t, "", deriveErrorCode(nil))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "view_wallets", normalizeHandlerName("/View_Wallets"))
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
}
