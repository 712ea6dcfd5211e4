// Package tgbot connects the bot dispatcher to Telegram through telebot:
// it turns updates into dispatcher events and implements the dispatcher's
// Transport on top of the bot client and the outbound sender.
package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/gatebot/core/telegram/keyboard"
	"github.com/m3rciful/gatebot/core/telegram/middleware"
	tgsender "github.com/m3rciful/gatebot/core/telegram/sender"
	"github.com/m3rciful/gatebot/internal/bot"
	"github.com/m3rciful/gatebot/internal/gate"

	tele "gopkg.in/telebot.v4"
)

// maxAlbum is the Telegram limit on items in one media group.
const maxAlbum = 10

// API is the part of *tele.Bot the transport uses.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Queue schedules outbound calls; *sender.Dispatcher implements it.
type Queue interface {
	Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error
}

// Transport implements bot.Transport. Sends are queued per chat so a page of
// videos and the navigation message after it arrive in order; they run
// inline when no queue is set or the queue has shut down.
type Transport struct {
	api   API
	queue Queue
}

var _ bot.Transport = (*Transport)(nil)

// NewTransport builds a transport over api. queue may be nil.
func NewTransport(api API, queue Queue) *Transport {
	return &Transport{api: api, queue: queue}
}

// channelRef addresses a public channel by @username.
type channelRef string

func (r channelRef) Recipient() string { return string(r) }

func (t *Transport) submit(ctx context.Context, chatID int64, action string, keyboard bool, run func() error) error {
	middleware.RecordReply(ctx, action, keyboard)
	if t.queue == nil {
		return run()
	}
	err := t.queue.Enqueue(ctx, chatID, action, "chat:"+strconv.FormatInt(chatID, 10), run)
	if errors.Is(err, tgsender.ErrQueueClosed) {
		return run()
	}
	return err
}

// SendText sends text with an optional inline keyboard.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, kb *bot.Keyboard) error {
	to := tele.ChatID(chatID)
	opts := sendOptions(kb)
	return t.submit(ctx, chatID, "send", kb != nil, func() error {
		_, err := t.api.Send(to, text, opts...)
		return err
	})
}

// SendMediaBatch sends refs as video albums of at most ten items. A single
// video is sent on its own since albums need two items.
func (t *Transport) SendMediaBatch(ctx context.Context, chatID int64, refs []string) error {
	to := tele.ChatID(chatID)
	for start := 0; start < len(refs); start += maxAlbum {
		chunk := refs[start:min(start+maxAlbum, len(refs))]
		var run func() error
		if len(chunk) == 1 {
			video := &tele.Video{File: tele.File{FileID: chunk[0]}}
			run = func() error {
				_, err := t.api.Send(to, video)
				return err
			}
		} else {
			album := make(tele.Album, 0, len(chunk))
			for _, ref := range chunk {
				album = append(album, &tele.Video{File: tele.File{FileID: ref}})
			}
			run = func() error {
				_, err := t.api.SendAlbum(to, album)
				return err
			}
		}
		if err := t.submit(ctx, chatID, "send_album", false, run); err != nil {
			return err
		}
	}
	return nil
}

// EditMessage replaces the text and keyboard of a sent message. Editing to
// identical content counts as success.
func (t *Transport) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *bot.Keyboard) error {
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	opts := sendOptions(kb)
	return t.submit(ctx, chatID, "edit", kb != nil, func() error {
		_, err := t.api.Edit(msg, text, opts...)
		if errors.Is(err, tele.ErrMessageNotModified) || errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		return err
	})
}

// QueryChatMembership asks Telegram for userID's status in channel, given as
// @username or numeric chat ID. It runs synchronously.
func (t *Transport) QueryChatMembership(ctx context.Context, channel string, userID int64) (gate.Membership, error) {
	chat, err := recipientFor(channel)
	if err != nil {
		return gate.Membership{}, err
	}
	if err := ctx.Err(); err != nil {
		return gate.Membership{}, err
	}
	member, err := t.api.ChatMemberOf(chat, tele.ChatID(userID))
	if err != nil {
		return gate.Membership{}, fmt.Errorf("get chat member: %w", err)
	}
	return membershipOf(member), nil
}

func recipientFor(channel string) (tele.Recipient, error) {
	channel = strings.TrimSpace(channel)
	if strings.HasPrefix(channel, "@") && len(channel) > 1 {
		return channelRef(channel), nil
	}
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid channel reference %q", channel)
	}
	return tele.ChatID(id), nil
}

func membershipOf(m *tele.ChatMember) gate.Membership {
	if m == nil {
		return gate.Membership{Status: gate.StatusLeft}
	}
	var status gate.MemberStatus
	switch m.Role {
	case tele.Creator:
		status = gate.StatusCreator
	case tele.Administrator:
		status = gate.StatusAdministrator
	case tele.Member:
		status = gate.StatusMember
	case tele.Restricted:
		status = gate.StatusRestricted
	case tele.Kicked:
		status = gate.StatusKicked
	default:
		status = gate.StatusLeft
	}
	return gate.Membership{Status: status, IsMember: m.Member}
}

func sendOptions(kb *bot.Keyboard) []interface{} {
	markup := toMarkup(kb)
	if markup == nil {
		return nil
	}
	return []interface{}{markup}
}

func toMarkup(kb *bot.Keyboard) *tele.ReplyMarkup {
	if kb == nil {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Unique: b.Action, Data: b.Payload, URL: b.URL})
		}
		rows = append(rows, r)
	}
	return keyboard.InlineButtonsRows(rows...)
}
