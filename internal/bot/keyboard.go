package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const calendarChoicePrefix = "cal:"

// calendarKeyboard offers one button per calendar, two per row.
// Buttons carry the list index since names may exceed the 64-byte
// callback limit.
func calendarKeyboard(names []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, name := range names {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			truncate(name, 30),
			fmt.Sprintf("%s%d", calendarChoicePrefix, i),
		))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseCalendarChoice(data string) (int, bool) {
	if !strings.HasPrefix(data, calendarChoicePrefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(data, calendarChoicePrefix))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
