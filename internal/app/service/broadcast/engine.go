package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/telegram"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/metrics"
	"github.com/fatflowers/tollgate/pkg/types"
)

const (
	defaultBatchSize       = 10
	defaultInterBatchDelay = 500 * time.Millisecond
)

// Request describes one fan-out. ImageURL turns the message into a photo caption;
// ButtonText and ButtonURL add a single inline button and must be set together.
type Request struct {
	EntityID   string                    `json:"entity_id" binding:"required"`
	EntityType types.BroadcastEntityType `json:"entity_type" binding:"required"`
	Filter     types.BroadcastFilter     `json:"filter" binding:"required"`
	PlanID     string                    `json:"plan_id"`
	Message    string                    `json:"message" binding:"required"`
	ImageURL   string                    `json:"image_url"`
	ButtonText string                    `json:"button_text"`
	ButtonURL  string                    `json:"button_url"`
}

func (r Request) Validate() error {
	switch r.EntityType {
	case types.BroadcastEntityCommunity, types.BroadcastEntityGroup:
	default:
		return apperr.Validation("broadcast", "unknown entity type %q", r.EntityType)
	}
	if r.EntityID == "" {
		return apperr.Validation("broadcast", "entity id is required")
	}
	if r.Message == "" {
		return apperr.Validation("broadcast", "message is required")
	}
	if !r.Filter.Valid() {
		return apperr.Validation("broadcast", "unknown filter %q", r.Filter)
	}
	if r.Filter == types.BroadcastFilterPlan && r.PlanID == "" {
		return apperr.Validation("broadcast", "filter plan requires plan_id")
	}
	if (r.ButtonText == "") != (r.ButtonURL == "") {
		return apperr.Validation("broadcast", "button_text and button_url must be set together")
	}
	return nil
}

type Result struct {
	JobID   string `json:"job_id"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	Batches int    `json:"batches"`
}

type Engine struct {
	store     store.Store
	gw        *telegram.Gateway
	batchSize int
	delay     time.Duration
	log       *zap.SugaredLogger
	rec       *metrics.Recorder
	now       func() time.Time
}

func New(st store.Store, gw *telegram.Gateway, cfg *config.Config, log *zap.SugaredLogger, rec *metrics.Recorder) *Engine {
	size := cfg.Broadcast.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	delay := cfg.Broadcast.InterBatchDelay
	if delay < 0 {
		delay = defaultInterBatchDelay
	}
	return &Engine{store: st, gw: gw, batchSize: size, delay: delay, log: log, rec: rec, now: time.Now}
}

// Broadcast sends req to every matching member, BatchSize at a time with a pause between batches.
// A failed recipient only increments Failed. The job row is inserted once and finished once.
// The run is detached from ctx cancellation so it always completes.
func (e *Engine) Broadcast(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	ctx = context.WithoutCancel(ctx)
	start := e.now()
	defer e.rec.ObserveSince("broadcast", string(req.EntityType), start)

	job := newJob(req, start)
	if err := e.store.CreateBroadcastJob(ctx, job); err != nil {
		return Result{}, apperr.Store("create broadcast job", err)
	}
	log := logctx.FromCtx(ctx, e.log).With("job_id", job.ID, "entity_type", req.EntityType, "entity_id", req.EntityID)
	res := Result{JobID: job.ID}

	recipients, err := e.recipients(ctx, req)
	if err != nil {
		log.Errorw("broadcast_recipients_failed", "err", err)
		job.Status = types.BroadcastStatusFailed
		job.Error = lo.ToPtr(err.Error())
		return res, errors.Join(err, e.finish(ctx, job))
	}
	res.Total = len(recipients)
	log.Infow("broadcast_started", "total", res.Total, "filter", req.Filter)

	msg := telegram.OutgoingMessage{Text: req.Message, ImageURL: req.ImageURL}
	if req.ButtonText != "" {
		msg.Button = &telegram.Button{Text: req.ButtonText, URL: req.ButtonURL}
	}

	var sent, failed atomic.Int64
	for i, batch := range lo.Chunk(recipients, e.batchSize) {
		if i > 0 && e.delay > 0 {
			time.Sleep(e.delay)
		}
		res.Batches++
		var g errgroup.Group
		for _, userID := range batch {
			g.Go(func() error {
				m := msg
				m.ChatID = userID
				if err := e.gw.Send(ctx, m); err != nil {
					failed.Add(1)
					result := "failed"
					if telegram.IsBlocked(err) {
						result = "blocked"
					}
					e.rec.BroadcastSend(result)
					log.Warnw("broadcast_send_failed", "user_id", userID, "err", err)
					return nil
				}
				sent.Add(1)
				e.rec.BroadcastSend("sent")
				return nil
			})
		}
		_ = g.Wait()
	}

	res.Sent = int(sent.Load())
	res.Failed = int(failed.Load())
	job.Sent = res.Sent
	job.Failed = res.Failed
	job.Total = res.Total
	job.Status = types.BroadcastStatusCompleted
	log.Infow("broadcast_finished", "sent", res.Sent, "failed", res.Failed, "batches", res.Batches)
	return res, e.finish(ctx, job)
}

func newJob(req Request, start time.Time) *models.BroadcastJob {
	job := &models.BroadcastJob{
		EntityID:   req.EntityID,
		EntityType: req.EntityType,
		Filter:     req.Filter,
		Message:    req.Message,
		Status:     types.BroadcastStatusRunning,
		StartedAt:  start,
	}
	if req.PlanID != "" {
		job.PlanID = lo.ToPtr(req.PlanID)
	}
	if req.ImageURL != "" {
		job.ImageURL = lo.ToPtr(req.ImageURL)
	}
	if req.ButtonText != "" {
		job.ButtonText = lo.ToPtr(req.ButtonText)
		job.ButtonURL = lo.ToPtr(req.ButtonURL)
	}
	return job
}

func (e *Engine) finish(ctx context.Context, job *models.BroadcastJob) error {
	job.FinishedAt = lo.ToPtr(e.now())
	if err := e.store.FinishBroadcastJob(ctx, job); err != nil {
		return apperr.Store("finish broadcast job", err)
	}
	return nil
}

// recipients resolves the target communities and returns member user ids, each once.
func (e *Engine) recipients(ctx context.Context, req Request) ([]int64, error) {
	var communityIDs []string
	switch req.EntityType {
	case types.BroadcastEntityGroup:
		ids, err := e.store.ListGroupCommunityIDs(ctx, req.EntityID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Validation("broadcast", "group %s not found", req.EntityID)
		}
		if err != nil {
			return nil, apperr.Store("list group communities", err)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		communityIDs = ids
	default:
		if _, err := e.store.FindCommunity(ctx, req.EntityID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Validation("broadcast", "community %s not found", req.EntityID)
			}
			return nil, apperr.Store("find community", err)
		}
		communityIDs = []string{req.EntityID}
	}

	q := store.MemberQuery{CommunityIDs: communityIDs, Filter: req.Filter, PlanID: req.PlanID}
	if err := q.Validate(); err != nil {
		return nil, apperr.Validation("broadcast", "%v", err)
	}
	members, err := e.store.ListMembers(ctx, q)
	if err != nil {
		return nil, apperr.Store("list members", err)
	}
	ids := lo.Uniq(lo.Map(members, func(m *models.Member, _ int) int64 { return m.ExternalUserID }))
	return ids, nil
}

// Job returns a stored broadcast job.
func (e *Engine) Job(ctx context.Context, id string) (*models.BroadcastJob, error) {
	job, err := e.store.FindBroadcastJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find broadcast job %s: %w", id, err)
	}
	return job, nil
}
