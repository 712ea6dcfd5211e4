// Package keyboard builds telebot inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button. A button with URL opens the link;
// otherwise it produces a callback carrying Unique and Data.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

func (b InlineBtn) build(markup *tele.ReplyMarkup) tele.Btn {
	if b.URL != "" {
		return markup.URL(b.Text, b.URL)
	}
	return markup.Data(b.Text, b.Unique, b.Data)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
// Empty rows are skipped; no rows yields nil.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *btn.build(markup).Inline()
		}
		inline = append(inline, r)
	}
	if len(inline) == 0 {
		return nil
	}
	markup.InlineKeyboard = inline
	return markup
}
