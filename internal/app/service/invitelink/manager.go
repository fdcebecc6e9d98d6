package invitelink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/cache"
	"github.com/fatflowers/tollgate/internal/platform/telegram"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/logctx"
)

// ErrLinkUnavailable means no usable link could be produced; callers fall back to a manual-join message.
var ErrLinkUnavailable = errors.New("invite link unavailable")

// ManualJoinMessage is sent instead of a link when ErrLinkUnavailable is returned.
const ManualJoinMessage = "We could not create an invite link right now. Request to join the community and you will be approved automatically."

const defaultExpiry = 24 * time.Hour

type Manager struct {
	store         store.Store
	gw            *telegram.Gateway
	cache         cache.LinkCache
	expiry        time.Duration
	personalLimit int
	log           *zap.SugaredLogger
	now           func() time.Time
}

func New(st store.Store, gw *telegram.Gateway, lc cache.LinkCache, cfg *config.Config, log *zap.SugaredLogger) *Manager {
	expiry := cfg.Invite.Expiry
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	limit := cfg.Invite.PersonalMemberLimit
	if limit <= 0 {
		limit = 1
	}
	return &Manager{
		store:         st,
		gw:            gw,
		cache:         lc,
		expiry:        expiry,
		personalLimit: limit,
		log:           log,
		now:           time.Now,
	}
}

// LinkName labels a link created on behalf of a user, e.g. "u42-20260115".
func LinkName(userID int64, at time.Time) string {
	return fmt.Sprintf("u%d-%s", userID, at.UTC().Format("20060102"))
}

func unavailable(reason string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrLinkUnavailable, reason)
	}
	return fmt.Errorf("%w: %s: %w", ErrLinkUnavailable, reason, err)
}

func (m *Manager) community(ctx context.Context, communityID string) (*models.Community, error) {
	c, err := m.store.FindCommunity(ctx, communityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, unavailable("community not found", nil)
	}
	if err != nil {
		return nil, unavailable("load community", err)
	}
	if !c.CanAdmit() {
		return nil, unavailable("community chat not verified", nil)
	}
	return c, nil
}

// GetOrCreate returns the community's shared invite link, creating one when neither the cache
// nor the community row holds a live link. requesterID is only logged and may be zero.
// Concurrent callers may both create a link; the last write wins.
func (m *Manager) GetOrCreate(ctx context.Context, communityID string, requesterID int64) (string, error) {
	log := logctx.FromCtx(ctx, m.log).With("community_id", communityID, "requester_id", requesterID)

	if link, ok, err := m.cache.Get(ctx, communityID); err != nil {
		log.Warnw("invite_link_cache_get_failed", "err", err)
	} else if ok {
		return link, nil
	}

	c, err := m.community(ctx, communityID)
	if err != nil {
		return "", err
	}
	now := m.now()
	if link, ok := c.CachedInviteLink(now); ok {
		if c.InviteLinkExpireAt != nil {
			m.setCache(ctx, log, communityID, link, c.InviteLinkExpireAt.Sub(now))
		}
		return link, nil
	}

	// shared by every requester, so left unnamed
	expireAt := now.Add(m.expiry)
	params := telegram.InviteLinkParams{ExpireAt: expireAt}
	link, err := m.gw.CreateInviteLink(ctx, *c.ExternalChatID, params)
	if err != nil {
		log.Warnw("invite_link_create_failed", "err", err)
		return "", unavailable("create link", err)
	}

	if err := m.store.SetCommunityInviteLink(ctx, communityID, link, expireAt); err != nil {
		log.Errorw("invite_link_persist_failed", "err", err)
	}
	row := &models.InviteLink{
		CommunityID: communityID,
		Link:        link,
		Name:        params.Name,
		ExpireAt:    expireAt.Unix(),
	}
	if err := m.store.SaveInviteLink(ctx, row); err != nil {
		log.Errorw("invite_link_row_save_failed", "err", err)
	}
	m.setCache(ctx, log, communityID, link, m.expiry)
	log.Infow("invite_link_created", "expire_at", expireAt)
	return link, nil
}

func (m *Manager) setCache(ctx context.Context, log *zap.SugaredLogger, communityID, link string, ttl time.Duration) {
	if err := m.cache.Set(ctx, communityID, link, ttl); err != nil {
		log.Warnw("invite_link_cache_set_failed", "err", err)
	}
}

// IssuePersonal creates a single-use link for userID and attaches it to the payment.
func (m *Manager) IssuePersonal(ctx context.Context, communityID string, userID int64, paymentID string) (string, error) {
	log := logctx.FromCtx(ctx, m.log).With("community_id", communityID, "user_id", userID, "payment_id", paymentID)

	c, err := m.community(ctx, communityID)
	if err != nil {
		return "", err
	}
	now := m.now()
	expireAt := now.Add(m.expiry)
	params := telegram.InviteLinkParams{
		Name:        LinkName(userID, now),
		ExpireAt:    expireAt,
		MemberLimit: m.personalLimit,
	}
	link, err := m.gw.CreateInviteLink(ctx, *c.ExternalChatID, params)
	if err != nil {
		log.Warnw("personal_invite_link_create_failed", "err", err)
		return "", unavailable("create personal link", err)
	}

	row := &models.InviteLink{
		CommunityID:  communityID,
		MemberUserID: lo.ToPtr(userID),
		Link:         link,
		Name:         params.Name,
		ExpireAt:     expireAt.Unix(),
		MemberLimit:  lo.ToPtr(m.personalLimit),
	}
	if paymentID != "" {
		row.PaymentID = lo.ToPtr(paymentID)
		if err := m.store.SetPaymentInviteLink(ctx, paymentID, link); err != nil {
			log.Errorw("payment_invite_link_persist_failed", "err", err)
		}
	}
	if err := m.store.SaveInviteLink(ctx, row); err != nil {
		log.Errorw("invite_link_row_save_failed", "err", err)
	}
	log.Infow("personal_invite_link_created", "expire_at", expireAt)
	return link, nil
}

// Invalidate withdraws every link issued to the member: payment-attached links are cleared,
// InviteLink rows are revoked, and the platform revocation is attempted best effort.
// Only Store failures are returned.
func (m *Manager) Invalidate(ctx context.Context, member *models.Member) error {
	if member == nil {
		return nil
	}
	log := logctx.FromCtx(ctx, m.log).With("community_id", member.CommunityID, "user_id", member.ExternalUserID)

	if err := m.store.ClearPaymentInviteLinks(ctx, member.ExternalUserID, member.CommunityID); err != nil {
		return fmt.Errorf("clear payment invite links: %w", err)
	}
	revoked, err := m.store.RevokeMemberInviteLinks(ctx, member.ExternalUserID, member.CommunityID, m.now())
	if err != nil {
		return fmt.Errorf("revoke invite links: %w", err)
	}
	if len(revoked) == 0 {
		return nil
	}

	c, err := m.store.FindCommunity(ctx, member.CommunityID)
	if err != nil || !c.CanAdmit() {
		log.Warnw("invite_link_platform_revoke_skipped", "links", len(revoked), "err", err)
		return nil
	}
	for _, l := range revoked {
		if err := m.gw.RevokeInviteLink(ctx, *c.ExternalChatID, l.Link); err != nil {
			log.Warnw("invite_link_platform_revoke_failed", "link_id", l.ID, "err", err)
		}
	}
	log.Infow("invite_links_invalidated", "links", len(revoked))
	return nil
}
