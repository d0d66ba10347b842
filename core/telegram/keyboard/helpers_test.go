package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Secret Phrase", Unique: "choice", Data: "use_secret_phrase"}, {Text: "Private Key", Unique: "choice", Data: "use_private_key"}},
		nil,
	)
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "Secret Phrase", m.InlineKeyboard[0][0].Text)
	assert.Equal(t, "choice", m.InlineKeyboard[0][1].Unique)
	assert.Equal(t, "use_private_key", m.InlineKeyboard[0][1].Data)

	assert.Nil(t, InlineButtonsRows())
}
