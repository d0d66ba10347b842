package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/m3rciful/solwatch/core/telegram/keyboard"
	"github.com/m3rciful/solwatch/internal/dialogue"

	tele "gopkg.in/telebot.v4"
)

// choiceKey is the callback unique shared by every dialogue button.
const choiceKey = "choice"

// Messenger is the part of *tele.Bot the transport needs.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Replier delivers dialogue replies synchronously so a turn's messages keep
// their order. It also erases key material messages.
type Replier struct {
	messenger Messenger
}

// NewReplier wraps m.
func NewReplier(m Messenger) *Replier {
	return &Replier{messenger: m}
}

// Reply implements dialogue.Replier. Private chats share the user's id.
func (r *Replier) Reply(ctx context.Context, userID int64, msg dialogue.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if markup := choicesMarkup(msg.Choices); markup != nil {
		opts.ReplyMarkup = markup
	}
	if _, err := r.messenger.Send(tele.ChatID(userID), msg.Text, opts); err != nil {
		return fmt.Errorf("bot: reply: %w", err)
	}
	return nil
}

// Erase implements dialogue.Eraser.
func (r *Replier) Erase(_ context.Context, chatID int64, messageID int) error {
	return r.messenger.Delete(tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
}

func choicesMarkup(rows [][]dialogue.Choice) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	btnRows := make([][]keyboard.InlineBtn, len(rows))
	for i, row := range rows {
		btns := make([]keyboard.InlineBtn, len(row))
		for j, ch := range row {
			btns[j] = keyboard.InlineBtn{Text: ch.Label, Unique: choiceKey, Data: ch.Data}
		}
		btnRows[i] = btns
	}
	return keyboard.InlineButtonsRows(btnRows...)
}
