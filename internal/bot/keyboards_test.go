package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyKeyboardLayout(t *testing.T) {
	menu := mainMenuKeyboard()
	require.Len(t, menu.Keyboard, 2)
	assert.Equal(t, menuLabelNew, menu.Keyboard[0][0].Text)
	assert.Equal(t, menuLabelHelp, menu.Keyboard[1][1].Text)
	assert.False(t, menu.OneTimeKeyboard)
	assert.True(t, menu.ResizeKeyboard)

	days := weekdayKeyboard()
	require.Len(t, days.Keyboard, 2)
	assert.Len(t, days.Keyboard[0], 4)
	assert.Equal(t, "Sunday", days.Keyboard[0][0].Text)
	require.Len(t, days.Keyboard[1], 4)
	assert.Equal(t, btnSkip, days.Keyboard[1][3].Text)
	assert.True(t, days.OneTimeKeyboard)
}

func TestInputMatching(t *testing.T) {
	assert.True(t, isSkipInput(" SKIP "))
	assert.True(t, isSkipInput(btnSkip))
	assert.True(t, isSkipInput("-"))
	assert.False(t, isSkipInput("skipping"))

	assert.True(t, isConfirmInput("Yes"))
	assert.True(t, isConfirmInput(btnConfirm))
	assert.True(t, isCancelInput("no"))
	assert.True(t, isCancelInput(btnCancel))
	assert.True(t, isCancelDialogInput("Stop input"))
	assert.False(t, isCancelDialogInput("stop"))
}
