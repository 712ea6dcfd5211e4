// Package ingest stores admin-submitted media in the catalog.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/catalog"
)

const component = "service.ingest"

// ErrDuplicate reports that the exact (category, content) pair is already stored.
var ErrDuplicate = errors.New("duplicate media item")

var (
	ingestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatebot_ingested_items_total",
			Help: "Media items stored by ingestion mode",
		},
		[]string{"mode"},
	)
	duplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatebot_ingest_duplicates_total",
		Help: "Uploads rejected as duplicates",
	})
)

// Outcome is what happened to one uploaded media item.
type Outcome string

const (
	Stored    Outcome = "stored"
	Duplicate Outcome = "duplicate"
	Ignored   Outcome = "ignored"
)

// Result describes a processed upload.
type Result struct {
	Outcome  Outcome
	Mode     state.Mode
	Category string
	Item     catalog.MediaItem
}

// Pipeline accepts single and bulk uploads from admins. Ingestion modes live
// in the admin's session, so every operation goes through the session manager.
type Pipeline struct {
	store    catalog.Store
	sessions *state.Manager
	admins   map[int64]struct{}
}

// New builds a pipeline for the given admin IDs.
func New(store catalog.Store, sessions *state.Manager, admins []int64) *Pipeline {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Pipeline{store: store, sessions: sessions, admins: set}
}

// IsAdmin reports whether userID may ingest media.
func (p *Pipeline) IsAdmin(userID int64) bool {
	_, ok := p.admins[userID]
	return ok
}

func (p *Pipeline) requireAdmin(userID int64, op string) error {
	if !p.IsAdmin(userID) {
		return &catalog.PermissionError{UserID: userID, Op: op}
	}
	return nil
}

// AddSingle stores one item directly.
func (p *Pipeline) AddSingle(ctx context.Context, userID int64, category, contentRef string) (catalog.MediaItem, error) {
	if err := p.requireAdmin(userID, "add_single"); err != nil {
		return catalog.MediaItem{}, err
	}
	return p.add(ctx, state.ModeSingle, category, contentRef)
}

func (p *Pipeline) add(ctx context.Context, mode state.Mode, category, contentRef string) (catalog.MediaItem, error) {
	category = strings.TrimSpace(category)
	contentRef = strings.TrimSpace(contentRef)
	if err := catalog.ValidateCategory(category); err != nil {
		return catalog.MediaItem{}, err
	}
	if contentRef == "" {
		return catalog.MediaItem{}, &catalog.ValidationError{Field: "content_ref", Reason: "must not be empty"}
	}

	exists, err := p.store.Exists(ctx, category, contentRef)
	if err != nil {
		return catalog.MediaItem{}, err
	}
	if exists {
		duplicatesTotal.Inc()
		logger.Info(ctx, component, "ingest.duplicate",
			slog.String("mode", string(mode)),
			slog.String("category", category),
		)
		return catalog.MediaItem{}, ErrDuplicate
	}

	item, err := p.store.Append(ctx, category, contentRef)
	if err != nil {
		return catalog.MediaItem{}, err
	}
	ingestedTotal.WithLabelValues(string(mode)).Inc()
	logger.Info(ctx, component, "ingest.stored",
		slog.String("status", "ok"),
		slog.String("mode", string(mode)),
		slog.String("category", category),
		slog.Int64("item_id", item.ID),
	)
	return item, nil
}

// StartBulk tags every following upload with category until FinishBulk.
// Starting again overwrites the active category.
func (p *Pipeline) StartBulk(ctx context.Context, userID int64, category string) error {
	if err := p.requireAdmin(userID, "start_bulk"); err != nil {
		return err
	}
	category = strings.TrimSpace(category)
	if err := catalog.ValidateCategory(category); err != nil {
		return err
	}
	return p.sessions.Update(ctx, userID, func(s *state.Session) error {
		if s.Ingestion.Mode == state.ModeBulk {
			logger.Warn(ctx, component, "ingest.bulk_overwrite",
				slog.String("category", s.Ingestion.Category),
				slog.Int("count", s.Ingestion.Stored),
			)
		}
		next, err := s.StartBulk(category)
		if err != nil {
			return err
		}
		*s = next
		return nil
	})
}

// StartSingle waits for one upload. An empty category defers the tag to the
// upload caption.
func (p *Pipeline) StartSingle(ctx context.Context, userID int64, category string) error {
	if err := p.requireAdmin(userID, "start_single"); err != nil {
		return err
	}
	category = strings.TrimSpace(category)
	if category != "" {
		if err := catalog.ValidateCategory(category); err != nil {
			return err
		}
	}
	return p.sessions.Update(ctx, userID, func(s *state.Session) error {
		*s = s.StartSingle(category)
		return nil
	})
}

// FinishBulk leaves bulk mode and returns how many items it stored. Without
// an active bulk session it is a no-op.
func (p *Pipeline) FinishBulk(ctx context.Context, userID int64) (int, error) {
	if err := p.requireAdmin(userID, "finish_bulk"); err != nil {
		return 0, err
	}
	var stored int
	err := p.sessions.Update(ctx, userID, func(s *state.Session) error {
		if s.Ingestion.Mode != state.ModeBulk {
			return nil
		}
		next, prev := s.FinishIngestion()
		stored = prev.Stored
		*s = next
		return nil
	})
	return stored, err
}

// OnMediaReceived routes an upload according to the sender's ingestion mode.
// Bulk mode ignores the caption. Single mode tags with the pending category,
// then the caption, then catalog.DefaultCategory, and ends after one upload.
// Uploads outside any mode, or from non-admins, are ignored.
func (p *Pipeline) OnMediaReceived(ctx context.Context, userID int64, contentRef, caption string) (Result, error) {
	if !p.IsAdmin(userID) {
		return Result{Outcome: Ignored}, nil
	}
	var res Result
	err := p.sessions.Update(ctx, userID, func(s *state.Session) error {
		in := s.Ingestion
		switch in.Mode {
		case state.ModeBulk:
			res.Category = in.Category
		case state.ModeSingle:
			res.Category = firstNonEmpty(in.Category, caption, catalog.DefaultCategory)
		default:
			res = Result{Outcome: Ignored}
			return nil
		}
		res.Mode = in.Mode

		item, err := p.add(ctx, in.Mode, res.Category, contentRef)
		switch {
		case errors.Is(err, ErrDuplicate):
			res.Outcome = Duplicate
		case err != nil:
			return err
		default:
			res.Outcome = Stored
			res.Item = item
			s.Ingestion.Stored++
		}
		if in.Mode == state.ModeSingle {
			*s, _ = s.FinishIngestion()
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
