package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/gate"
	"github.com/m3rciful/gatebot/internal/pagination"
	"github.com/m3rciful/gatebot/internal/stats"
)

// Button actions.
const (
	ActionAge      = "age"
	ActionCategory = "cat"
	ActionNav      = "nav"
	ActionContinue = "continue"
	ActionMenu     = "menu"
)

const (
	textWelcome     = "Welcome 🔥\nSelect a category to start:"
	textAgePrompt   = "🔞 This content is for adults only.\nPlease confirm that you are 18 or older."
	textJoinPrompt  = "⚠️ Please join the channel first:"
	textNoVideos    = "⚠️ No videos available."
	textNoMorePages = "No more videos in that direction."
	textNoCategory  = "Please select a category first."
	textFailure     = "⚠️ Something went wrong, please try again later."
	textAdminOnly   = "⛔ This command is for administrators only."
)

const helpUser = `Commands:
/start - choose a category
/help - show this help`

const helpAdmin = `
Admin:
/addvideo [category] - add the next video
/bulkadd <category> - add videos until /done
/done - finish bulk add
/removeid <id> - remove a video by id
/removevideo <category> <index> - remove the index-th newest video
/setgate [invite=<url>] [channel=<@name|id>] [age=on|off] - replace the access gate
/fsub <invite> - gate with an invite link only
/stats [category] - show statistics
/restart - restart the bot`

func menuKeyboard(categories []string) *Keyboard {
	kb := &Keyboard{}
	for _, c := range categories {
		kb.Rows = append(kb.Rows, []Button{{Text: c, Action: ActionCategory, Payload: c}})
	}
	return kb
}

func ageKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Button{{{Text: "✅ I am 18+", Action: ActionAge}}}}
}

// joinLink returns the link for the join button, empty when the channel
// cannot be linked to.
func joinLink(cfg catalog.GateConfig) string {
	if cfg.InviteLink != "" {
		return cfg.InviteLink
	}
	if strings.HasPrefix(cfg.Channel, "@") && len(cfg.Channel) > 1 {
		return "https://t.me/" + cfg.Channel[1:]
	}
	return ""
}

func joinKeyboard(cfg catalog.GateConfig, category string) *Keyboard {
	kb := &Keyboard{}
	if link := joinLink(cfg); link != "" {
		kb.Rows = append(kb.Rows, []Button{{Text: "📢 Join Channel", URL: link}})
	}
	kb.Rows = append(kb.Rows, []Button{{Text: "✅ I Joined / Continue", Action: ActionContinue, Payload: category}})
	return kb
}

func promptFor(res gate.Result, cfg catalog.GateConfig, category string) (string, *Keyboard) {
	if res.Decision == gate.NeedsAgeConfirmation {
		return textAgePrompt, ageKeyboard()
	}
	return textJoinPrompt, joinKeyboard(cfg, category)
}

func navText(category string, pg pagination.Page[catalog.MediaItem], total, pageSize int) string {
	return fmt.Sprintf("%s: page %d of %d", category, pg.Page+1, pagination.PageCount(total, pageSize))
}

func navKeyboard(pg pagination.Page[catalog.MediaItem]) *Keyboard {
	var row []Button
	if pg.HasPrev {
		row = append(row, Button{Text: "⬅ Previous", Action: ActionNav, Payload: "prev"})
	}
	if pg.HasNext {
		row = append(row, Button{Text: "Next ➡", Action: ActionNav, Payload: "next"})
	}
	kb := &Keyboard{}
	if len(row) > 0 {
		kb.Rows = append(kb.Rows, row)
	}
	kb.Rows = append(kb.Rows, backKeyboard().Rows...)
	return kb
}

func backKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Button{{{Text: "📂 Categories", Action: ActionMenu}}}}
}

func statsText(snap stats.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Total users: %d\n", snap.Users)
	fmt.Fprintf(&b, "🎬 Total videos: %d\n", snap.Items)
	fmt.Fprintf(&b, "📁 Categories: %d", len(snap.Categories))
	for _, c := range snap.Categories {
		fmt.Fprintf(&b, "\n• %s: %d", c.Category, c.Items)
	}
	return b.String()
}

func gateText(cfg catalog.GateConfig) string {
	if cfg.Empty() {
		return "✅ Access gate cleared."
	}
	age := "off"
	if cfg.RequireAge {
		age = "on"
	}
	return fmt.Sprintf("✅ Access gate set.\ninvite: %s\nchannel: %s\nage: %s",
		orDash(cfg.InviteLink), orDash(cfg.Channel), age)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
