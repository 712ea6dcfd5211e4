package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/catalog"
	"github.com/m3rciful/gatebot/internal/catalog/memstore"
	"github.com/m3rciful/gatebot/internal/gate"
	"github.com/m3rciful/gatebot/internal/ingest"
	"github.com/m3rciful/gatebot/internal/stats"
)

const (
	adminID = int64(1)
	userID  = int64(42)
	chatID  = int64(42)
)

type sentMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  *Keyboard
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []sentMessage
	edited []sentMessage
	albums [][]string

	member gate.Membership
	err    error
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, kb *Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeTransport) SendMediaBatch(_ context.Context, _ int64, refs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums = append(f.albums, refs)
	return nil
}

func (f *fakeTransport) EditMessage(_ context.Context, chatID int64, messageID int, text string, kb *Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, sentMessage{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeTransport) QueryChatMembership(context.Context, string, int64) (gate.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.member, f.err
}

func (f *fakeTransport) lastSent(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) lastEdited(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edited) == 0 {
		t.Fatal("no message edited")
	}
	return f.edited[len(f.edited)-1]
}

type fixture struct {
	d        *Dispatcher
	store    *memstore.Store
	sessions *state.Manager
	tr       *fakeTransport
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := memstore.New()
	sessions := state.NewManager()
	tr := &fakeTransport{member: gate.Membership{Status: gate.StatusLeft}}
	d := New(Deps{
		Store:     store,
		Sessions:  sessions,
		Gate:      gate.NewEvaluator(store, tr, 0),
		Ingest:    ingest.New(store, sessions, []int64{adminID}),
		Stats:     stats.NewReporter(store),
		Transport: tr,
	}, opts)
	return &fixture{d: d, store: store, sessions: sessions, tr: tr}
}

func (f *fixture) command(t *testing.T, from int64, line string) {
	t.Helper()
	fields := strings.Fields(line)
	ev := CommandReceived{Name: fields[0], Args: fields[1:], User: User{ID: from, FirstName: "Ann"}, ChatID: from}
	if err := f.d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("/%s: %v", line, err)
	}
}

func (f *fixture) press(t *testing.T, action, payload string, messageID int) {
	t.Helper()
	ev := ButtonPressed{Action: action, Payload: payload, User: User{ID: userID, FirstName: "Ann"}, ChatID: chatID, MessageID: messageID}
	if err := f.d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("press %s:%s: %v", action, payload, err)
	}
}

func (f *fixture) seed(t *testing.T, category string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if _, err := f.store.Append(context.Background(), category, fmt.Sprintf("ref-%02d", i)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func hasURLButton(kb *Keyboard, url string) bool {
	if kb == nil {
		return false
	}
	for _, row := range kb.Rows {
		for _, b := range row {
			if b.URL == url {
				return true
			}
		}
	}
	return false
}

func TestAgeThenFailedMembershipQueryPromptsJoin(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	cfg := catalog.GateConfig{InviteLink: "https://t.me/+invite", Channel: "@chan", RequireAge: true}
	if err := f.store.ReplaceGateConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	f.tr.err = errors.New("bad gateway")
	f.seed(t, "Desi", 3)

	f.command(t, userID, "start")
	if st := f.sessions.Get(userID).Stage; st != state.StageAwaitingGate {
		t.Fatalf("stage after start = %s", st)
	}
	if got := f.tr.lastSent(t).Text; got != textAgePrompt {
		t.Fatalf("start reply = %q", got)
	}

	f.press(t, ActionAge, "", 7)
	if st := f.sessions.Get(userID).Stage; st != state.StageBrowsing {
		t.Fatalf("stage after age = %s", st)
	}
	if u, _ := f.store.User(ctx, userID); !u.AgeConfirmed {
		t.Fatal("age confirmation not persisted")
	}

	f.press(t, ActionCategory, "Desi", 7)
	msg := f.tr.lastEdited(t)
	if msg.Text != textJoinPrompt || msg.MessageID != 7 {
		t.Fatalf("category reply = %+v", msg)
	}
	if !hasURLButton(msg.Keyboard, cfg.InviteLink) {
		t.Fatalf("join prompt lacks invite button: %+v", msg.Keyboard)
	}
	if len(f.tr.albums) != 0 {
		t.Fatalf("content delivered despite failed query: %v", f.tr.albums)
	}
	if cat := f.sessions.Get(userID).Browse.Category; cat != "" {
		t.Fatalf("denied category committed: %q", cat)
	}
}

func TestPagingThroughCategory(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t, "Desi", 25)

	f.command(t, userID, "start")
	f.press(t, ActionCategory, "Desi", 3)
	f.press(t, ActionNav, string(state.Next), 0)
	f.press(t, ActionNav, string(state.Next), 0)

	if len(f.tr.albums) != 3 {
		t.Fatalf("albums = %d, want 3", len(f.tr.albums))
	}
	sizes := []int{10, 10, 5}
	for i, a := range f.tr.albums {
		if len(a) != sizes[i] {
			t.Fatalf("album %d has %d items, want %d", i, len(a), sizes[i])
		}
	}
	if first := f.tr.albums[0][0]; first != "ref-25" {
		t.Fatalf("first item = %s, want newest", first)
	}
	if last := f.tr.albums[2][4]; last != "ref-01" {
		t.Fatalf("last item = %s, want oldest", last)
	}

	f.press(t, ActionNav, string(state.Next), 0)
	if got := f.tr.lastSent(t).Text; got != textNoMorePages {
		t.Fatalf("past the end reply = %q", got)
	}
	if pg := f.sessions.Get(userID).Browse.Page; pg != 2 {
		t.Fatalf("page = %d, want 2", pg)
	}

	f.press(t, ActionNav, string(state.Prev), 0)
	if pg := f.sessions.Get(userID).Browse.Page; pg != 1 {
		t.Fatalf("page after prev = %d, want 1", pg)
	}
}

func TestEmptyCategory(t *testing.T) {
	f := newFixture(t, Options{Categories: []string{"Mallu"}})
	f.command(t, userID, "start")
	f.press(t, ActionCategory, "Mallu", 0)
	if got := f.tr.lastSent(t).Text; got != textNoVideos {
		t.Fatalf("reply = %q", got)
	}
}

func TestPendingJoinGrantsAccess(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if err := f.store.ReplaceGateConfig(ctx, catalog.GateConfig{Channel: "@chan"}); err != nil {
		t.Fatal(err)
	}
	f.seed(t, "Latest", 2)
	f.command(t, userID, "start")

	f.press(t, ActionCategory, "Latest", 0)
	if len(f.tr.albums) != 0 {
		t.Fatal("delivered before join")
	}

	join := JoinRequested{User: User{ID: userID}, Channel: Channel{ID: -100, Username: "Chan"}}
	if err := f.d.Dispatch(ctx, join); err != nil {
		t.Fatal(err)
	}
	f.press(t, ActionContinue, "Latest", 0)
	if len(f.tr.albums) != 1 {
		t.Fatalf("albums = %d after pending join", len(f.tr.albums))
	}
}

func TestJoinEventsOnlyForGatedChannel(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if err := f.store.ReplaceGateConfig(ctx, catalog.GateConfig{Channel: "-100"}); err != nil {
		t.Fatal(err)
	}

	other := JoinRequested{User: User{ID: userID}, Channel: Channel{ID: -200}}
	if err := f.d.HandleJoinRequest(ctx, other); err != nil {
		t.Fatal(err)
	}
	if st, _ := f.store.JoinStatus(ctx, userID); st != catalog.JoinNone {
		t.Fatalf("status = %s for foreign channel", st)
	}

	ch := Channel{ID: -100}
	steps := []struct {
		member gate.Membership
		want   catalog.JoinStatus
	}{
		{gate.Membership{Status: gate.StatusMember}, catalog.JoinVerified},
		{gate.Membership{Status: gate.StatusRestricted, IsMember: true}, catalog.JoinVerified},
		{gate.Membership{Status: gate.StatusKicked}, catalog.JoinNone},
	}
	for _, s := range steps {
		ev := MembershipChanged{User: User{ID: userID}, Channel: ch, NewStatus: s.member}
		if err := f.d.HandleMembership(ctx, ev); err != nil {
			t.Fatal(err)
		}
		if st, _ := f.store.JoinStatus(ctx, userID); st != s.want {
			t.Fatalf("after %s status = %s, want %s", s.member.Status, st, s.want)
		}
	}
}

func TestInviteOnlyGateNeedsAcknowledgement(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if err := f.store.ReplaceGateConfig(ctx, catalog.GateConfig{InviteLink: "https://t.me/+x"}); err != nil {
		t.Fatal(err)
	}
	f.seed(t, "Trending", 1)
	f.command(t, userID, "start")

	f.press(t, ActionCategory, "Trending", 0)
	if got := f.tr.lastSent(t).Text; got != textJoinPrompt {
		t.Fatalf("reply = %q", got)
	}
	f.press(t, ActionContinue, "Trending", 0)
	if len(f.tr.albums) != 1 {
		t.Fatal("not delivered after acknowledgement")
	}
}

func TestNonAdminRejection(t *testing.T) {
	t.Run("silent", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.command(t, userID, "bulkadd Desi")
		if len(f.tr.sent) != 0 {
			t.Fatalf("silent policy replied: %+v", f.tr.sent)
		}
		if f.sessions.Get(userID).Ingestion.Active() {
			t.Fatal("non-admin started ingestion")
		}
	})
	t.Run("reply", func(t *testing.T) {
		f := newFixture(t, Options{RejectPolicy: RejectReply})
		f.command(t, userID, "stats")
		if got := f.tr.lastSent(t).Text; got != textAdminOnly {
			t.Fatalf("reply = %q", got)
		}
	})
}

func TestBulkAddThroughDispatcher(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.command(t, adminID, "bulkadd")
	if got := f.tr.lastSent(t).Text; got != "⚠️ Usage: /bulkadd <category>" {
		t.Fatalf("usage reply = %q", got)
	}

	f.command(t, adminID, "bulkadd Desi")
	for _, ref := range []string{"v1", "v2", "v1"} {
		ev := MediaUploaded{ContentRef: ref, Caption: "Premium", User: User{ID: adminID}, ChatID: adminID}
		if err := f.d.Dispatch(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.tr.lastSent(t).Text; got != "⚠️ Already in Desi, skipped." {
		t.Fatalf("duplicate reply = %q", got)
	}
	f.command(t, adminID, "done")
	if got := f.tr.lastSent(t).Text; got != "✅ Bulk add finished, 2 videos stored." {
		t.Fatalf("done reply = %q", got)
	}
	if n, _ := f.store.Count(ctx, "Desi"); n != 2 {
		t.Fatalf("Desi count = %d", n)
	}
}

func TestSingleAddUsesCaption(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.command(t, adminID, "addvideo")
	ev := MediaUploaded{ContentRef: "v9", Caption: "Mallu", User: User{ID: adminID}, ChatID: adminID}
	if err := f.d.Dispatch(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if got := f.tr.lastSent(t).Text; got != "✅ Video added to Mallu (#1)" {
		t.Fatalf("reply = %q", got)
	}
	// A second upload without a new /addvideo is ignored.
	n := len(f.tr.sent)
	ev.ContentRef = "v10"
	if err := f.d.Dispatch(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if len(f.tr.sent) != n {
		t.Fatal("upload outside ingestion produced a reply")
	}
}

func TestLongCategoryCaptionIsReported(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.command(t, adminID, "addvideo")
	ev := MediaUploaded{ContentRef: "v1", Caption: strings.Repeat("c", catalog.MaxCategoryLen+1), User: User{ID: adminID}, ChatID: adminID}
	if err := f.d.Dispatch(ctx, ev); err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("⚠️ category must be at most %d bytes", catalog.MaxCategoryLen)
	if got := f.tr.lastSent(t).Text; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
	if n, _ := f.store.CountAll(ctx); n != 0 {
		t.Fatalf("stored %d items", n)
	}
}

func TestRemoveCommands(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.seed(t, "Desi", 3)

	f.command(t, adminID, "removevideo Desi 3")
	if got := f.tr.lastSent(t).Text; got != "⚠️ Invalid index or category" {
		t.Fatalf("range reply = %q", got)
	}
	f.command(t, adminID, "removevideo Desi x")
	if got := f.tr.lastSent(t).Text; got != "⚠️ Usage: /removevideo <category> <index>" {
		t.Fatalf("usage reply = %q", got)
	}

	f.command(t, adminID, "removevideo Desi 0")
	items, _ := f.store.List(ctx, "Desi")
	if len(items) != 2 || items[0].ContentRef != "ref-02" {
		t.Fatalf("after positional remove: %+v", items)
	}

	f.command(t, adminID, "removeid 1")
	if got := f.tr.lastSent(t).Text; got != "🗑️ Removed video #1 from Desi" {
		t.Fatalf("remove reply = %q", got)
	}
	f.command(t, adminID, "removeid 1")
	if got := f.tr.lastSent(t).Text; got != "⚠️ No video with id 1" {
		t.Fatalf("not found reply = %q", got)
	}
}

func TestSetGateReplacesWholeConfig(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.command(t, adminID, "setgate invite=https://t.me/+a channel=@chan age=on")
	cfg, _ := f.store.GateConfig(ctx)
	if cfg.InviteLink != "https://t.me/+a" || cfg.Channel != "@chan" || !cfg.RequireAge {
		t.Fatalf("config = %+v", cfg)
	}

	f.command(t, adminID, "setgate age=on")
	cfg, _ = f.store.GateConfig(ctx)
	if cfg.InviteLink != "" || cfg.Channel != "" || !cfg.RequireAge {
		t.Fatalf("omitted keys kept: %+v", cfg)
	}

	f.command(t, adminID, "setgate channel=chan")
	if got := f.tr.lastSent(t).Text; !strings.HasPrefix(got, "⚠️ channel must be") {
		t.Fatalf("invalid channel reply = %q", got)
	}

	f.command(t, adminID, "fsub https://t.me/+b")
	cfg, _ = f.store.GateConfig(ctx)
	if cfg.InviteLink != "https://t.me/+b" || cfg.RequireAge {
		t.Fatalf("fsub config = %+v", cfg)
	}
}

func TestStatsCommand(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t, "Desi", 2)
	f.command(t, userID, "start")
	f.command(t, adminID, "stats")
	got := f.tr.lastSent(t).Text
	if !strings.HasPrefix(got, "📊 Total users: 1\n🎬 Total videos: 2") {
		t.Fatalf("stats = %q", got)
	}

	f.command(t, adminID, "stats Desi")
	if got := f.tr.lastSent(t).Text; got != "🎬 Desi: 2 videos" {
		t.Fatalf("category stats = %q", got)
	}
}

func TestRestartCommand(t *testing.T) {
	called := false
	f := newFixture(t, Options{Restart: func() { called = true }})
	f.command(t, adminID, "restart")
	if !called {
		t.Fatal("restart hook not called")
	}
}

func TestNewUserAnnounced(t *testing.T) {
	f := newFixture(t, Options{LogChannelID: -500})
	f.command(t, userID, "start")
	f.command(t, userID, "start")

	var notices int
	for _, m := range f.tr.sent {
		if m.ChatID == -500 {
			notices++
			if m.Text != "👤 New user: Ann (42)" {
				t.Fatalf("notice = %q", m.Text)
			}
		}
	}
	if notices != 1 {
		t.Fatalf("notices = %d, want 1", notices)
	}
}

func TestStorageFailureRepliesGeneric(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.FailWith = errors.New("disk full")
	ev := CommandReceived{Name: "start", User: User{ID: userID}, ChatID: chatID}
	err := f.d.Dispatch(context.Background(), ev)
	if !errors.Is(err, catalog.ErrStorage) {
		t.Fatalf("err = %v, want storage error", err)
	}
	if got := f.tr.lastSent(t).Text; got != textFailure {
		t.Fatalf("reply = %q", got)
	}
}

func TestStaleButtonResumesSession(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t, "Desi", 1)
	// No /start: the session was lost, the menu message is still on screen.
	f.press(t, ActionCategory, "Desi", 0)
	if len(f.tr.albums) != 1 {
		t.Fatal("stale menu button did not deliver")
	}
}

func TestUnknownAction(t *testing.T) {
	f := newFixture(t, Options{})
	err := f.d.HandleButton(context.Background(), ButtonPressed{Action: "bogus", User: User{ID: userID}})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v", err)
	}
}

func TestChannelMatches(t *testing.T) {
	ch := Channel{ID: -1001, Username: "News"}
	tests := []struct {
		ref  string
		want bool
	}{
		{"@news", true},
		{"-1001", true},
		{"-1002", false},
		{"@other", false},
		{"", false},
		{"news", false},
	}
	for _, tt := range tests {
		if got := ch.Matches(tt.ref); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
