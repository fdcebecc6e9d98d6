package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/tollgate/internal/app/service/admission"
	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/app/service/payment"
	"github.com/fatflowers/tollgate/internal/apperr"
	dbmodels "github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/telegram"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/metrics"
	"github.com/fatflowers/tollgate/pkg/response"
)

// Result is what a handler reports for the audit record.
type Result struct {
	Handled bool
	Data    map[string]any
}

func handled(kv ...any) Result   { return Result{Handled: true, Data: pairs(kv)} }
func unhandled(kv ...any) Result { return Result{Handled: false, Data: pairs(kv)} }

func pairs(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return m
}

// Response is the HTTP answer for one update.
type Response struct {
	StatusCode int
	Body       *response.WebhookResponse
}

type Router struct {
	store       store.Store
	members     *membership.Service
	admission   *admission.Decider
	links       *invitelink.Manager
	payments    *payment.Service
	gw          *telegram.Gateway
	botUsername string
	log         *zap.SugaredLogger
	rec         *metrics.Recorder
	now         func() time.Time
}

func New(
	st store.Store,
	members *membership.Service,
	adm *admission.Decider,
	links *invitelink.Manager,
	payments *payment.Service,
	gw *telegram.Gateway,
	cfg *config.Config,
	log *zap.SugaredLogger,
	rec *metrics.Recorder,
) *Router {
	return &Router{
		store:       st,
		members:     members,
		admission:   adm,
		links:       links,
		payments:    payments,
		gw:          gw,
		botUsername: cfg.Telegram.BotUsername,
		log:         log,
		rec:         rec,
		now:         time.Now,
	}
}

// Handle decodes, audits and dispatches one webhook body.
// Malformed updates get 400 and are not persisted; a failed audit write gets 500;
// everything else gets 200, with success=false when the handler failed.
func (r *Router) Handle(ctx context.Context, raw []byte) Response {
	start := r.now()
	log := logctx.FromCtx(ctx, r.log)

	u, err := Decode(raw)
	if err != nil {
		return r.invalid(log, err)
	}
	ev, err := Classify(u)
	if err != nil {
		return r.invalid(log, err)
	}
	kind := string(ev.Kind())
	defer r.rec.ObserveSince("webhook", kind, start)
	log = log.With("update_id", u.ID, "kind", kind)
	log.Infow("webhook_received", "chat_id", ev.ChatID(), "user_id", ev.UserID())

	audit := &dbmodels.WebhookEventLog{
		UpdateID: u.ID,
		Kind:     kind,
		ChatID:   nonZero(ev.ChatID()),
		UserID:   nonZero(ev.UserID()),
		TraceID:  logctx.TraceID(ctx),
		Data:     datatypes.JSON(raw),
		Status:   dbmodels.WebhookEventLogStatusReceived,
	}
	if err := r.store.CreateEventLog(ctx, audit); err != nil {
		log.Errorw("webhook_audit_write_failed", "err", err)
		r.rec.WebhookEvent(kind, "audit_failed")
		return Response{StatusCode: http.StatusInternalServerError, Body: response.WebhookFailed(apperr.Store("create event log", err).Error())}
	}

	res, herr := r.dispatch(ctx, ev)
	r.finishAudit(ctx, log, audit, res, herr)

	switch {
	case herr != nil:
		log.Errorw("webhook_handle_failed", "err", herr)
		r.rec.WebhookEvent(kind, "failed")
		return Response{StatusCode: http.StatusOK, Body: response.WebhookFailed(herr.Error())}
	case ev.Kind() == KindUnclassified:
		log.Infow("webhook_unclassified")
		r.rec.WebhookEvent(kind, "ignored")
		return Response{StatusCode: http.StatusOK, Body: response.WebhookOK("ignored")}
	case !res.Handled:
		r.rec.WebhookEvent(kind, "ignored")
		return Response{StatusCode: http.StatusOK, Body: response.WebhookOK("acknowledged")}
	}
	r.rec.WebhookEvent(kind, "handled")
	return Response{StatusCode: http.StatusOK, Body: response.WebhookOK("ok")}
}

func (r *Router) invalid(log *zap.SugaredLogger, err error) Response {
	log.Warnw("webhook_invalid", "err", err)
	r.rec.WebhookEvent("invalid", "rejected")
	return Response{StatusCode: http.StatusBadRequest, Body: response.WebhookFailed(apperr.Description(err))}
}

// dispatch runs the handler for ev, turning a panic into an error.
func (r *Router) dispatch(ctx context.Context, ev Event) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			logctx.FromCtx(ctx, r.log).Errorw("webhook_handler_panic", "panic", p, "stack", string(debug.Stack()))
			res, err = Result{}, fmt.Errorf("handler panic: %v", p)
		}
	}()

	switch e := ev.(type) {
	case SuccessfulPaymentEvent:
		return r.onSuccessfulPayment(ctx, e)
	case MessageEvent:
		return r.onMessage(ctx, e.Message)
	case ChannelPostEvent:
		return r.onMessage(ctx, e.Message)
	case EditedMessageEvent:
		return unhandled(), nil
	case ChatMemberEvent:
		return r.onChatMember(ctx, e)
	case MyChatMemberEvent:
		return r.onMyChatMember(ctx, e)
	case JoinRequestEvent:
		return r.onJoinRequest(ctx, e)
	case CallbackQueryEvent:
		return r.onCallbackQuery(ctx, e)
	case PreCheckoutEvent:
		return r.onPreCheckout(ctx, e)
	}
	return unhandled(), nil
}

// finishAudit updates the audit row; a failure here is only logged since the update was already handled.
func (r *Router) finishAudit(ctx context.Context, log *zap.SugaredLogger, audit *dbmodels.WebhookEventLog, res Result, herr error) {
	result := map[string]any{}
	for k, v := range res.Data {
		result[k] = v
	}
	audit.Handled = res.Handled && herr == nil
	switch {
	case herr != nil:
		audit.Status = dbmodels.WebhookEventLogStatusHandleFailed
		result["error"] = herr.Error()
	case res.Handled:
		audit.Status = dbmodels.WebhookEventLogStatusHandled
	default:
		audit.Status = dbmodels.WebhookEventLogStatusIgnored
	}
	if b, err := json.Marshal(result); err == nil {
		j := datatypes.JSON(b)
		audit.Result = &j
	}
	if err := r.store.FinishEventLog(ctx, audit); err != nil {
		log.Errorw("webhook_audit_finish_failed", "event_log_id", audit.ID, "err", err)
	}
}

func nonZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
