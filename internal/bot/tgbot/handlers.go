package tgbot

import (
	"context"
	"strings"

	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/callbacks"
	"github.com/m3rciful/gatebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
	"github.com/m3rciful/gatebot/core/telegram/router"
	"github.com/m3rciful/gatebot/core/telegram/ui"
	"github.com/m3rciful/gatebot/internal/bot"

	tele "gopkg.in/telebot.v4"
)

// Handler receives the converted events; *bot.Dispatcher implements it.
type Handler interface {
	HandleCommand(ctx context.Context, ev bot.CommandReceived) error
	HandleButton(ctx context.Context, ev bot.ButtonPressed) error
	HandleMedia(ctx context.Context, ev bot.MediaUploaded) error
	HandleJoinRequest(ctx context.Context, ev bot.JoinRequested) error
	HandleMembership(ctx context.Context, ev bot.MembershipChanged) error
}

var commandDescriptions = map[string]string{
	"start":       "Choose a category",
	"help":        "Show help",
	"addvideo":    "Add the next video",
	"bulkadd":     "Add videos until /done",
	"done":        "Finish bulk add",
	"removeid":    "Remove a video by id",
	"removevideo": "Remove a video by position",
	"setgate":     "Replace the access gate",
	"fsub":        "Gate with an invite link",
	"stats":       "Show statistics",
	"restart":     "Restart the bot",
}

var buttonActions = []string{bot.ActionAge, bot.ActionCategory, bot.ActionNav, bot.ActionContinue, bot.ActionMenu}

// Adapter converts telebot updates into dispatcher events.
type Adapter struct {
	h       Handler
	isAdmin func(int64) bool
}

var _ ui.FallbackProvider = (*Adapter)(nil)

// New builds an adapter. isAdmin decides who passes the admin command check.
func New(h Handler, isAdmin func(int64) bool) *Adapter {
	return &Adapter{h: h, isAdmin: isAdmin}
}

// Register adds the commands, button callbacks and fallbacks to reg.
func (a *Adapter) Register(reg *tg.Registry) error {
	if err := reg.RegisterCommand("/start", commands.Command{Handler: a.command("start"), Description: commandDescriptions["start"]}); err != nil {
		return err
	}
	if err := reg.RegisterCommand("/help", commands.Command{Handler: a.command("help"), Description: commandDescriptions["help"]}); err != nil {
		return err
	}
	for _, name := range bot.AdminCommands {
		cmd := commands.Command{Handler: a.command(name), Description: commandDescriptions[name], AdminOnly: true}
		if err := reg.RegisterCommand("/"+name, cmd); err != nil {
			return err
		}
	}
	for _, action := range buttonActions {
		if err := reg.RegisterCallback(action, a.button(action)); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(a.UnknownCallback())
	return nil
}

// Routes returns every route the bot needs. Register must have run on reg.
// Admin commands from other users still reach the dispatcher, which applies
// the reject policy.
func (a *Adapter) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin: a.isAdmin,
		OnAdminReject: func(c tele.Context) error {
			return a.commandFromText(c)
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: a.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{UnknownText: a.UnknownText()})...)
	routes = append(routes,
		router.EventRoute(tele.OnVideo, "media.video", a.media),
		router.EventRoute(tele.OnChatJoinRequest, "join.request", a.joinRequest),
		router.EventRoute(tele.OnChatMember, "join.member", a.memberUpdate),
	)
	return routes
}

// UnknownText answers unknown slash commands with the help text and ignores
// other text.
func (a *Adapter) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		if !strings.HasPrefix(strings.TrimSpace(c.Text()), "/") {
			return nil
		}
		ev, ok := commandEvent(c, "help")
		if !ok {
			return nil
		}
		return a.h.HandleCommand(tghelpers.BuildContext(c), ev)
	}
}

// UnknownCallback tells the user the button is no longer supported.
func (a *Adapter) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
	}
}

func (a *Adapter) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev, ok := commandEvent(c, name)
		if !ok {
			return nil
		}
		return a.h.HandleCommand(tghelpers.BuildContext(c), ev)
	}
}

// commandFromText dispatches the command named in the message text.
func (a *Adapter) commandFromText(c tele.Context) error {
	name := commandName(c.Text())
	if name == "" {
		return nil
	}
	return a.command(name)(c)
}

func (a *Adapter) button(action string) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil || cb.Sender == nil {
			return nil
		}
		ev := bot.ButtonPressed{
			Action:  action,
			Payload: callbacks.CallbackPayload(c),
			User:    userOf(cb.Sender),
			ChatID:  cb.Sender.ID,
		}
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
			if cb.Message.Chat != nil {
				ev.ChatID = cb.Message.Chat.ID
			}
		}
		return a.h.HandleButton(tghelpers.BuildContext(c), ev)
	}
}

func (a *Adapter) media(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Video == nil || msg.Sender == nil {
		return nil
	}
	return a.h.HandleMedia(tghelpers.BuildContext(c), bot.MediaUploaded{
		ContentRef: msg.Video.FileID,
		Caption:    msg.Caption,
		User:       userOf(msg.Sender),
		ChatID:     msg.Chat.ID,
	})
}

func (a *Adapter) joinRequest(c tele.Context) error {
	req := c.ChatJoinRequest()
	if req == nil || req.Sender == nil || req.Chat == nil {
		return nil
	}
	return a.h.HandleJoinRequest(tghelpers.BuildContext(c), bot.JoinRequested{
		User:    userOf(req.Sender),
		Channel: channelOf(req.Chat),
	})
}

func (a *Adapter) memberUpdate(c tele.Context) error {
	upd := c.ChatMember()
	if upd == nil || upd.Chat == nil || upd.NewChatMember == nil || upd.NewChatMember.User == nil {
		return nil
	}
	return a.h.HandleMembership(tghelpers.BuildContext(c), bot.MembershipChanged{
		User:      userOf(upd.NewChatMember.User),
		Channel:   channelOf(upd.Chat),
		NewStatus: membershipOf(upd.NewChatMember),
	})
}

func commandEvent(c tele.Context, name string) (bot.CommandReceived, bool) {
	sender := c.Sender()
	if sender == nil {
		return bot.CommandReceived{}, false
	}
	chatID := sender.ID
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	return bot.CommandReceived{
		Name:   name,
		Args:   c.Args(),
		User:   userOf(sender),
		ChatID: chatID,
	}, true
}

// commandName extracts "name" from "/name@bot args".
func commandName(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

func userOf(u *tele.User) bot.User {
	return bot.User{ID: u.ID, FirstName: u.FirstName}
}

func channelOf(chat *tele.Chat) bot.Channel {
	return bot.Channel{ID: chat.ID, Username: chat.Username}
}
