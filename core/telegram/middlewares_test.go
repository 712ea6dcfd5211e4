package telegram

import (
	"testing"

	coreconfig "github.com/m3rciful/gatebot/core/config"

	tele "gopkg.in/telebot.v4"
)

func chain(mws []Middleware, h tele.HandlerFunc) tele.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i].Use(h)
	}
	return h
}

func videoFrom(b *tele.Bot, id int, user int64) tele.Context {
	return b.NewContext(tele.Update{ID: id, Message: &tele.Message{
		ID:     id,
		Sender: &tele.User{ID: user},
		Chat:   &tele.Chat{ID: user},
		Video:  &tele.Video{File: tele.File{FileID: "vid"}},
	}})
}

func TestDefaultMiddlewaresPassAdminMediaBurst(t *testing.T) {
	cfg := coreconfig.Config{
		Telegram:  coreconfig.TelegramConfig{Token: "t", AdminIDs: []int64{1}},
		RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500},
	}
	if err := coreconfig.Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}

	handled := map[int64]int{}
	h := chain(DefaultMiddlewares(&cfg, nil), func(c tele.Context) error {
		handled[c.Sender().ID]++
		return nil
	})

	for i := 1; i <= 3; i++ {
		if err := h(videoFrom(b, i, 1)); err != nil {
			t.Fatalf("admin video %d: %v", i, err)
		}
		if err := h(videoFrom(b, 10+i, 2)); err != nil {
			t.Fatalf("user video %d: %v", i, err)
		}
	}
	if handled[1] != 3 {
		t.Fatalf("admin media handled = %d, want 3", handled[1])
	}
	if handled[2] != 1 {
		t.Fatalf("non-admin media handled = %d, want 1", handled[2])
	}
}

func TestDefaultMiddlewaresPassJoinRequests(t *testing.T) {
	cfg := coreconfig.Config{
		Telegram:  coreconfig.TelegramConfig{Token: "t"},
		RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500},
	}
	if err := coreconfig.Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}

	var handled int
	h := chain(DefaultMiddlewares(&cfg, nil), func(tele.Context) error { handled++; return nil })
	user := &tele.User{ID: 5}
	for i := 0; i < 2; i++ {
		_ = h(b.NewContext(tele.Update{ID: i, ChatJoinRequest: &tele.ChatJoinRequest{
			Sender: user,
			Chat:   &tele.Chat{ID: -100},
		}}))
	}
	if handled != 2 {
		t.Fatalf("join requests handled = %d, want 2", handled)
	}
}
