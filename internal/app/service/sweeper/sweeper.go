package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/platform/cache"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/metrics"
	"github.com/fatflowers/tollgate/pkg/tool"
	"github.com/fatflowers/tollgate/pkg/types"
)

const lockName = "expiry_sweep"

// Report summarises one sweep.
type Report struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Evicted int `json:"evicted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	// Locked is true when another runner held the sweep lock and nothing was done.
	Locked bool `json:"locked"`
}

// Sweeper expires members whose subscription window has ended.
type Sweeper struct {
	store      store.Store
	members    *membership.Service
	locker     cache.Locker
	batchLimit int
	lockTTL    time.Duration
	log        *zap.SugaredLogger
	rec        *metrics.Recorder
	now        func() time.Time
}

func New(st store.Store, members *membership.Service, locker cache.Locker, cfg *config.Config, log *zap.SugaredLogger, rec *metrics.Recorder) *Sweeper {
	limit := cfg.Sweeper.BatchLimit
	if limit <= 0 {
		limit = 500
	}
	ttl := cfg.Sweeper.LockTTL
	if ttl <= 0 {
		ttl = 4 * time.Minute
	}
	return &Sweeper{
		store:      st,
		members:    members,
		locker:     locker,
		batchLimit: limit,
		lockTTL:    ttl,
		log:        log,
		rec:        rec,
		now:        time.Now,
	}
}

// RunOnce processes at most one batch of expired members. Per-member failures are logged
// and counted; only listing or locking failures abort the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	ctx = logctx.WithTraceID(ctx, tool.GenerateUUIDV7())
	log := logctx.FromCtx(ctx, s.log)
	start := s.now()
	defer s.rec.ObserveSince("sweeper", "run", start)

	unlock, err := s.locker.TryLock(ctx, lockName, s.lockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		log.Infow("sweep_skipped_lock_held")
		return Report{Locked: true}, nil
	}
	if err != nil {
		return Report{}, err
	}
	defer unlock()

	expired, err := s.store.ListExpiredMembers(ctx, start, s.batchLimit)
	if err != nil {
		return Report{}, apperr.Store("list expired members", err)
	}
	rep := Report{Scanned: len(expired)}
	for _, m := range expired {
		wasActive := m.IsActive
		out, err := s.members.Expire(ctx, m)
		if err != nil {
			rep.Failed++
			log.Errorw("sweep_member_failed", "member_id", m.ID, "user_id", m.ExternalUserID, "community_id", m.CommunityID, "err", err)
			continue
		}
		if out.SubscriptionStatus != types.SubscriptionStatusExpired {
			rep.Skipped++
			continue
		}
		rep.Expired++
		if wasActive && !out.IsActive {
			rep.Evicted++
		}
	}
	log.Infow("sweep_finished", "scanned", rep.Scanned, "expired", rep.Expired, "evicted", rep.Evicted, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}
