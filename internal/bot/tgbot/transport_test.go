package tgbot

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgsender "github.com/m3rciful/gatebot/core/telegram/sender"
	"github.com/m3rciful/gatebot/internal/bot"
	"github.com/m3rciful/gatebot/internal/gate"

	tele "gopkg.in/telebot.v4"
)

type call struct {
	method string
	to     string
	what   interface{}
	opts   []interface{}
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []call
	member  *tele.ChatMember
	editErr error
	err     error
}

func (f *fakeAPI) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.record(call{method: "send", to: to.Recipient(), what: what, opts: opts})
	return &tele.Message{}, f.err
}

func (f *fakeAPI) SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error) {
	f.record(call{method: "album", to: to.Recipient(), what: a, opts: opts})
	return nil, f.err
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	id, chat := msg.MessageSig()
	f.record(call{method: "edit", to: id + "@" + tele.ChatID(chat).Recipient(), what: what, opts: opts})
	return &tele.Message{}, f.editErr
}

func (f *fakeAPI) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	f.record(call{method: "member", to: chat.Recipient(), what: user.Recipient()})
	return f.member, f.err
}

func refs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestSendMediaBatchSplitsAlbums(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTransport(api, nil)

	if err := tr.SendMediaBatch(context.Background(), 42, refs(11)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(api.calls))
	}
	album, ok := api.calls[0].what.(tele.Album)
	if api.calls[0].method != "album" || !ok || len(album) != 10 {
		t.Fatalf("first call = %+v", api.calls[0])
	}
	video, ok := api.calls[1].what.(*tele.Video)
	if api.calls[1].method != "send" || !ok || video.FileID != "k" {
		t.Fatalf("single video call = %+v", api.calls[1])
	}
	if api.calls[0].to != "42" {
		t.Fatalf("recipient = %q", api.calls[0].to)
	}
}

func TestSendTextAttachesKeyboard(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTransport(api, nil)
	kb := &bot.Keyboard{Rows: [][]bot.Button{
		{{Text: "Join", URL: "https://t.me/+x"}},
		{{Text: "Next", Action: bot.ActionNav, Payload: "next"}},
	}}

	if err := tr.SendText(context.Background(), 7, "hi", kb); err != nil {
		t.Fatalf("send: %v", err)
	}
	got := api.calls[0]
	if got.what != "hi" || len(got.opts) != 1 {
		t.Fatalf("call = %+v", got)
	}
	markup := got.opts[0].(*tele.ReplyMarkup)
	if markup.InlineKeyboard[0][0].URL != "https://t.me/+x" {
		t.Fatalf("url button = %+v", markup.InlineKeyboard[0][0])
	}
	if btn := markup.InlineKeyboard[1][0]; btn.Unique != bot.ActionNav || btn.Data != "next" {
		t.Fatalf("nav button = %+v", btn)
	}

	if err := tr.SendText(context.Background(), 7, "plain", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if opts := api.calls[1].opts; len(opts) != 0 {
		t.Fatalf("plain message carries options %v", opts)
	}
}

func TestEditMessageIgnoresNotModified(t *testing.T) {
	api := &fakeAPI{editErr: tele.ErrMessageNotModified}
	tr := NewTransport(api, nil)
	if err := tr.EditMessage(context.Background(), 42, 7, "same", nil); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if api.calls[0].to != "7@42" {
		t.Fatalf("edited %q", api.calls[0].to)
	}
}

func TestQueuedSendsKeepOrder(t *testing.T) {
	api := &fakeAPI{}
	queue := tgsender.NewDispatcher(tgsender.Options{Workers: 4})
	tr := NewTransport(api, queue)

	ctx := context.Background()
	if err := tr.SendMediaBatch(ctx, 42, refs(3)); err != nil {
		t.Fatalf("album: %v", err)
	}
	if err := tr.SendText(ctx, 42, "nav", nil); err != nil {
		t.Fatalf("text: %v", err)
	}
	queue.Close()

	if len(api.calls) != 2 || api.calls[0].method != "album" || api.calls[1].what != "nav" {
		t.Fatalf("calls = %+v", api.calls)
	}

	// A closed queue falls back to sending inline.
	if err := tr.SendText(ctx, 42, "late", nil); err != nil {
		t.Fatalf("after close: %v", err)
	}
	if len(api.calls) != 3 {
		t.Fatalf("late send not delivered")
	}
}

func TestQueryChatMembership(t *testing.T) {
	api := &fakeAPI{member: &tele.ChatMember{Role: tele.Restricted, Member: true}}
	tr := NewTransport(api, nil)

	m, err := tr.QueryChatMembership(context.Background(), "@chan", 42)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if m.Status != gate.StatusRestricted || !m.IsMember || !m.Active() {
		t.Fatalf("membership = %+v", m)
	}
	if api.calls[0].to != "@chan" || api.calls[0].what != "42" {
		t.Fatalf("call = %+v", api.calls[0])
	}

	if _, err := tr.QueryChatMembership(context.Background(), "-100123", 42); err != nil {
		t.Fatalf("numeric channel: %v", err)
	}
	if api.calls[1].to != "-100123" {
		t.Fatalf("numeric recipient = %q", api.calls[1].to)
	}

	if _, err := tr.QueryChatMembership(context.Background(), "chan", 42); err == nil {
		t.Fatal("bare name accepted")
	}
}

func TestQueryChatMembershipError(t *testing.T) {
	boom := errors.New("chat not found")
	tr := NewTransport(&fakeAPI{err: boom}, nil)
	if _, err := tr.QueryChatMembership(context.Background(), "@chan", 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.QueryChatMembership(ctx, "@chan", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}
}

func TestMembershipOf(t *testing.T) {
	cases := []struct {
		in   *tele.ChatMember
		want gate.MemberStatus
	}{
		{nil, gate.StatusLeft},
		{&tele.ChatMember{Role: tele.Creator}, gate.StatusCreator},
		{&tele.ChatMember{Role: tele.Administrator}, gate.StatusAdministrator},
		{&tele.ChatMember{Role: tele.Member}, gate.StatusMember},
		{&tele.ChatMember{Role: tele.Left}, gate.StatusLeft},
		{&tele.ChatMember{Role: tele.Kicked}, gate.StatusKicked},
	}
	for _, tc := range cases {
		if got := membershipOf(tc.in).Status; got != tc.want {
			t.Errorf("membershipOf(%+v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
