package eligibility

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
)

const (
	// trackingTTLPadding is added to the window when setting the tracking
	// set TTL.
	trackingTTLPadding = 5 * time.Second

	// defaultTrackingTTL applies when no window is configured.
	defaultTrackingTTL = 300 * time.Second

	// hardPruneAge bounds the age of any tracked event regardless of the
	// configured window.
	hardPruneAge = 10 * time.Minute

	// memberStripes is the number of locks Admit calls are spread over.
	memberStripes = 64
)

// Tracker implements the rolling-window eligibility check.
//
// State per member moves Cold -> Tracking -> Cooldown -> Cold. The cooldown
// marker expires on its own; the tracking set carries its own TTL and a
// hard age cap so a crash between steps self-heals.
type Tracker struct {
	store    Store
	asserter *shared.Asserter
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	// stripes serialize Admit per member within this process. Processes
	// sharing a store can still interleave.
	stripes [memberStripes]sync.Mutex
}

func (t *Tracker) lockMember(trackingKey string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingKey))
	mu := &t.stripes[h.Sum32()%memberStripes]
	mu.Lock()
	return mu.Unlock
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store Store, asserter *shared.Asserter, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if asserter == nil {
		asserter = shared.NewAsserter(true, logger)
	}
	t := &Tracker{
		store:    store,
		asserter: asserter,
		logger:   logger.With(slog.String("component", "eligibility")),
		tracer:   otel.Tracer("github.com/ChatSift/Social/internal/application/eligibility"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Admit records the event and reports whether it completes a window.
//
// A zero eventTime, or one in the future, is replaced by the tracker clock.
func (t *Tracker) Admit(
	ctx context.Context,
	settings leveling.GuildSettings,
	guildID, userID, eventID string,
	eventTime time.Time,
) (admitted bool, err error) {
	if settings.RequiredMessages <= 1 {
		return true, nil
	}

	ctx, span := t.tracer.Start(ctx, "eligibility.Admit", trace.WithAttributes(
		attribute.String("guild.id", guildID),
		attribute.String("user.id", userID),
	))
	defer func() {
		span.SetAttributes(attribute.Bool("eligibility.admitted", admitted))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := t.logger.With(slog.String("guild_id", guildID), slog.String("user_id", userID))
	ineligibleKey := IneligibleKey(guildID, userID)
	trackingKey := TrackingKey(guildID, userID)
	defer t.lockMember(trackingKey)()

	remaining, err := t.store.PTTL(ctx, ineligibleKey)
	if err != nil {
		return false, storeError("PTTL", err)
	}
	if remaining >= 0 {
		log.DebugContext(ctx, "member is on cooldown", slog.Duration("remaining", remaining))
		return false, nil
	}

	now := t.now()
	nowMs := now.UnixMilli()
	score := nowMs
	if !eventTime.IsZero() && eventTime.Before(now) {
		score = eventTime.UnixMilli()
	}

	if err := t.store.ZAdd(ctx, trackingKey, score, eventID); err != nil {
		return false, storeError("ZAdd", err)
	}

	ttl := defaultTrackingTTL
	if settings.HasTimespan() {
		ttl = time.Duration(settings.TimespanSeconds())*time.Second + trackingTTLPadding
	}
	if err := t.store.Expire(ctx, trackingKey, ttl); err != nil {
		return false, storeError("Expire", err)
	}

	if err := t.store.ZRemRangeByScore(ctx, trackingKey, 0, nowMs-hardPruneAge.Milliseconds()); err != nil {
		return false, storeError("ZRemRangeByScore", err)
	}

	var windowStart int64
	if settings.HasTimespan() {
		windowStart = nowMs - settings.TimespanSeconds()*1000
	}
	entries, err := t.store.ZRangeByScoreWithScores(ctx, trackingKey, windowStart, nowMs)
	if err != nil {
		return false, storeError("ZRangeByScore", err)
	}

	eligible := int64(len(entries)) >= settings.RequiredMessages
	log.DebugContext(ctx, "collected events in window",
		slog.Int("count", len(entries)),
		slog.Bool("eligible", eligible),
	)
	if !eligible {
		return false, nil
	}

	if settings.HasTimespan() {
		elapsed := nowMs - entries[0].Score
		ineligibleFor := settings.TimespanSeconds()*1000 - elapsed

		log.DebugContext(ctx, "marking member ineligible",
			slog.Int64("elapsed_ms", elapsed),
			slog.Int64("ineligible_for_ms", ineligibleFor),
		)
		if err := t.asserter.Check(ctx, ineligibleFor >= 0,
			shared.NewDomainError("eligibility", "Admit", shared.ErrInvariant,
				fmt.Sprintf("computed cooldown is negative (%dms); using its absolute value", ineligibleFor)),
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
		); err != nil {
			return false, err
		}

		cooldown := time.Duration(abs(ineligibleFor)) * time.Millisecond
		if cooldown < time.Millisecond {
			cooldown = time.Millisecond
		}
		if err := t.store.SetPX(ctx, ineligibleKey, "true", cooldown); err != nil {
			return false, storeError("SetPX", err)
		}
	}

	if err := t.store.Del(ctx, trackingKey); err != nil {
		// The marker is already set and the set expires on its own.
		log.WarnContext(ctx, "failed to delete tracking set", slog.String("error", err.Error()))
	}

	return true, nil
}

func storeError(op string, err error) error {
	return shared.WrapError("eligibility", op, shared.ErrExternalService, "store operation failed", err)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
