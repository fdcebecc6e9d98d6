package telegram

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/metrics"
)

// Policy is the single retry, timeout and kick-timing policy for every Bot API call.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	CallTimeout time.Duration
	BanDuration time.Duration
	UnbanDelay  time.Duration
}

func PolicyFromConfig(cfg *config.Config) Policy {
	p := cfg.Platform
	return Policy{
		MaxAttempts: p.MaxAttempts,
		BaseBackoff: p.BaseBackoff,
		MaxBackoff:  p.MaxBackoff,
		CallTimeout: p.CallTimeout,
		BanDuration: p.BanDuration,
		UnbanDelay:  p.UnbanDelay,
	}
}

func (p Policy) backoff() retry.Backoff {
	base := p.BaseBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxBackoff > 0 {
		b = retry.WithCappedDuration(p.MaxBackoff, b)
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Gateway is the PlatformClient used by the engine: classified errors, retries and metrics on top of API.
type Gateway struct {
	api    API
	policy Policy
	log    *zap.SugaredLogger
	rec    *metrics.Recorder
	now    func() time.Time
}

func NewGateway(api API, policy Policy, log *zap.SugaredLogger, rec *metrics.Recorder) *Gateway {
	return &Gateway{api: api, policy: policy, log: log, rec: rec, now: time.Now}
}

func (g *Gateway) Policy() Policy { return g.policy }

// call runs fn with a per-attempt timeout, retrying rate limits and transient failures.
// A failure that outlives the policy is returned as an apperr platform error.
func (g *Gateway) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, g.policy.backoff(), func(ctx context.Context) error {
		attempt++
		callCtx := ctx
		if g.policy.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.policy.CallTimeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err == nil {
			return nil
		}
		f := classify(err)
		if !f.retryable || ctx.Err() != nil {
			return err
		}
		logctx.FromCtx(ctx, g.log).Warnw("platform_call_retry", "method", method, "attempt", attempt, "err", err)
		if f.retryAfter > 0 {
			if werr := wait(ctx, f.retryAfter); werr != nil {
				return werr
			}
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		g.rec.PlatformCall(method, "error")
		return apperr.Platform(method, err.Error(), err)
	}
	g.rec.PlatformCall(method, "ok")
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *Gateway) Approve(ctx context.Context, chatID, userID int64) error {
	return g.call(ctx, "approveChatJoinRequest", func(ctx context.Context) error {
		return g.api.ApproveChatJoinRequest(ctx, chatID, userID)
	})
}

func (g *Gateway) Decline(ctx context.Context, chatID, userID int64) error {
	return g.call(ctx, "declineChatJoinRequest", func(ctx context.Context) error {
		return g.api.DeclineChatJoinRequest(ctx, chatID, userID)
	})
}

func (g *Gateway) CreateInviteLink(ctx context.Context, chatID int64, p InviteLinkParams) (string, error) {
	var link string
	err := g.call(ctx, "createChatInviteLink", func(ctx context.Context) error {
		var err error
		link, err = g.api.CreateChatInviteLink(ctx, chatID, p)
		return err
	})
	return link, err
}

func (g *Gateway) RevokeInviteLink(ctx context.Context, chatID int64, link string) error {
	return g.call(ctx, "revokeChatInviteLink", func(ctx context.Context) error {
		return g.api.RevokeChatInviteLink(ctx, chatID, link)
	})
}

func (g *Gateway) SendText(ctx context.Context, chatID int64, text string) error {
	return g.Send(ctx, OutgoingMessage{ChatID: chatID, Text: text})
}

// Send delivers msg as a photo with caption when it carries an image, as text otherwise.
func (g *Gateway) Send(ctx context.Context, msg OutgoingMessage) error {
	if msg.ImageURL != "" {
		return g.call(ctx, "sendPhoto", func(ctx context.Context) error {
			return g.api.SendPhoto(ctx, msg)
		})
	}
	return g.call(ctx, "sendMessage", func(ctx context.Context) error {
		return g.api.SendMessage(ctx, msg)
	})
}

func (g *Gateway) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	return g.call(ctx, "answerPreCheckoutQuery", func(ctx context.Context) error {
		return g.api.AnswerPreCheckoutQuery(ctx, queryID, ok, errorMessage)
	})
}

func (g *Gateway) AnswerCallback(ctx context.Context, queryID, text string) error {
	return g.call(ctx, "answerCallbackQuery", func(ctx context.Context) error {
		return g.api.AnswerCallbackQuery(ctx, queryID, text)
	})
}
