package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// replyKeyboard lays out one button row per labels slice.
func replyKeyboard(oneTime bool, rows ...[]string) tgbotapi.ReplyKeyboardMarkup {
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, labels := range rows {
		row := make([]tgbotapi.KeyboardButton, 0, len(labels))
		for _, label := range labels {
			row = append(row, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, row)
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = oneTime
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(false,
		[]string{menuLabelNew, menuLabelHabits},
		[]string{menuLabelStats, menuLabelHelp},
	)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, []string{btnConfirm, btnCancel})
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, []string{btnCancelDialog})
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, []string{btnSkip}, []string{btnCancelDialog})
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, []string{btnYes, btnNo, btnCancelDialog})
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(true, []string{btnDaily, btnWeekly}, []string{btnCancelDialog})
}

// weekdayKeyboard shows Sunday..Saturday four to a row, then Skip.
func weekdayKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]string
	var row []string
	for wd := 1; wd <= 7; wd++ {
		row = append(row, weekdayName(wd))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	rows = append(rows, append(row, btnSkip))
	return replyKeyboard(true, rows...)
}

// matchesAny compares user input with button labels and typed aliases, ignoring case.
func matchesAny(text string, options ...string) bool {
	value := strings.TrimSpace(text)
	for _, opt := range options {
		if strings.EqualFold(value, opt) {
			return true
		}
	}
	return false
}

func isSkipInput(text string) bool {
	return matchesAny(text, btnSkip, "skip", "-")
}

func isConfirmInput(text string) bool {
	return matchesAny(text, btnConfirm, "confirm", "yes")
}

func isCancelInput(text string) bool {
	return matchesAny(text, btnCancel, "cancel", "no")
}

func isCancelDialogInput(text string) bool {
	return matchesAny(text, btnCancelDialog, "stop input")
}
