package telegram

import (
	"context"

	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/pkg/logctx"
)

// KickResult reports what the platform did for a removal.
type KickResult struct {
	// Removed is true once the ban (or the legacy kick) succeeded.
	Removed bool
	// Legacy is set when kickChatMember was used because banChatMember is unsupported.
	Legacy bool
}

// Kick removes a user without a permanent ban: ban for BanDuration, wait UnbanDelay,
// then unban with only_if_banned so the user may rejoin through a new invite.
// A failed unban still reports Removed and returns an apperr partial failure.
func (g *Gateway) Kick(ctx context.Context, chatID, userID int64) (KickResult, error) {
	log := logctx.FromCtx(ctx, g.log).With("chat_id", chatID, "user_id", userID)
	until := g.now().Add(g.policy.BanDuration)

	err := g.call(ctx, "banChatMember", func(ctx context.Context) error {
		return g.api.BanChatMember(ctx, chatID, userID, until)
	})
	if err != nil {
		if !IsUnsupportedMethod(err) {
			return KickResult{}, err
		}
		log.Warnw("ban_unsupported_fallback_to_kick", "err", err)
		if lerr := g.call(ctx, "kickChatMember", func(ctx context.Context) error {
			return g.api.KickChatMember(ctx, chatID, userID)
		}); lerr != nil {
			return KickResult{}, lerr
		}
		return KickResult{Removed: true, Legacy: true}, nil
	}

	if werr := wait(ctx, g.policy.UnbanDelay); werr != nil {
		return KickResult{Removed: true}, apperr.Partial("kick", "unban skipped: context done", werr)
	}

	if err := g.call(ctx, "unbanChatMember", func(ctx context.Context) error {
		return g.api.UnbanChatMember(ctx, chatID, userID, true)
	}); err != nil {
		log.Warnw("unban_failed_after_ban", "err", err)
		return KickResult{Removed: true}, apperr.Partial("kick", "unban failed", err)
	}
	return KickResult{Removed: true}, nil
}
