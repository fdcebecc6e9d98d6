package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/fatflowers/tollgate/internal/app/service/admission"
	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/app/service/payment"
	"github.com/fatflowers/tollgate/internal/apperr"
	dbmodels "github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/logctx"
)

const (
	callbackInvitePrefix = "invite:"

	commandVerify = "/verify"
	commandStatus = "/status"
)

// community resolves a chat to its registered community; nil when the chat is unknown.
func (r *Router) community(ctx context.Context, chatID int64) (*dbmodels.Community, error) {
	c, err := r.store.FindCommunityByChatID(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find community by chat", err)
	}
	return c, nil
}

func (r *Router) onChatMember(ctx context.Context, e ChatMemberEvent) (Result, error) {
	u := e.Update
	user := memberUser(u.NewChatMember)
	if user.IsBot {
		return unhandled("reason", "bot member"), nil
	}
	c, err := r.community(ctx, u.Chat.ID)
	if err != nil {
		return Result{}, err
	}
	if c == nil {
		return unhandled("reason", "community not registered"), nil
	}

	nm := u.NewChatMember
	switch {
	case present(nm):
		m, err := r.members.Join(ctx, membership.JoinInput{
			UserID:      user.ID,
			CommunityID: c.ID,
			Username:    user.Username,
			FirstName:   user.FirstName,
		})
		if err != nil {
			return Result{}, err
		}
		return handled("action", "join", "subscription_status", m.SubscriptionStatus), nil
	case nm.Type == models.ChatMemberTypeBanned, nm.Type == models.ChatMemberTypeLeft, nm.Type == models.ChatMemberTypeRestricted:
		kicked := nm.Type == models.ChatMemberTypeBanned
		m, err := r.members.Leave(ctx, user.ID, c.ID, kicked)
		if err != nil {
			return Result{}, err
		}
		if m == nil {
			return unhandled("reason", "unknown member"), nil
		}
		return handled("action", "leave", "kicked", kicked, "subscription_status", m.SubscriptionStatus), nil
	}
	return unhandled("reason", "unhandled member status", "status", nm.Type), nil
}

func (r *Router) onMyChatMember(ctx context.Context, e MyChatMemberEvent) (Result, error) {
	u := e.Update
	log := logctx.FromCtx(ctx, r.log).With("chat_id", u.Chat.ID)
	old := u.OldChatMember.Type
	next := u.NewChatMember.Type
	log.Infow("bot_status_changed", "old_status", old, "new_status", next)
	if isAdmin(old) && !isAdmin(next) {
		log.Warnw("bot_demoted")
		return handled("result", "bot_demoted"), nil
	}
	return unhandled("old_status", old, "new_status", next), nil
}

func isAdmin(t models.ChatMemberType) bool {
	return t == models.ChatMemberTypeAdministrator || t == models.ChatMemberTypeOwner
}

func (r *Router) onJoinRequest(ctx context.Context, e JoinRequestEvent) (Result, error) {
	req := e.Request
	d, err := r.admission.Decide(ctx, admission.Request{
		ChatID:    req.Chat.ID,
		UserID:    req.From.ID,
		Username:  req.From.Username,
		FirstName: req.From.FirstName,
	})
	if err != nil {
		return Result{}, err
	}
	return handled("approved", d.Approved, "reason", d.Reason, "platform_acknowledged", d.PlatformAcknowledged), nil
}

func (r *Router) onCallbackQuery(ctx context.Context, e CallbackQueryEvent) (Result, error) {
	q := e.Query
	log := logctx.FromCtx(ctx, r.log).With("user_id", q.From.ID, "callback_data", q.Data)

	answer := ""
	defer func() {
		if err := r.gw.AnswerCallback(ctx, q.ID, answer); err != nil {
			log.Warnw("callback_answer_failed", "err", err)
		}
	}()

	communityID, ok := strings.CutPrefix(q.Data, callbackInvitePrefix)
	if !ok || communityID == "" {
		return unhandled("reason", "unknown callback data"), nil
	}

	text := invitelink.ManualJoinMessage
	link, err := r.links.GetOrCreate(ctx, communityID, q.From.ID)
	switch {
	case err == nil:
		text = fmt.Sprintf("Here is your invite link: %s", link)
	case errors.Is(err, invitelink.ErrLinkUnavailable):
		log.Warnw("callback_invite_link_unavailable", "community_id", communityID, "err", err)
	default:
		answer = "Something went wrong, please try again later."
		return Result{}, err
	}
	answer = "Check your private messages."
	if err := r.gw.SendText(ctx, q.From.ID, text); err != nil {
		log.Warnw("callback_dm_failed", "err", err)
		answer = "Please start a private chat with the bot first."
		return handled("community_id", communityID, "link_issued", link != "", "dm_sent", false), nil
	}
	return handled("community_id", communityID, "link_issued", link != "", "dm_sent", true), nil
}

func (r *Router) onPreCheckout(ctx context.Context, e PreCheckoutEvent) (Result, error) {
	q := e.Query
	ok, err := r.payments.ValidatePreCheckout(ctx, payment.PreCheckout{
		QueryID:     q.ID,
		UserID:      q.From.ID,
		Currency:    q.Currency,
		TotalAmount: int64(q.TotalAmount),
		Payload:     q.InvoicePayload,
	})
	if err != nil {
		return Result{}, err
	}
	return handled("ok", ok), nil
}

func (r *Router) onSuccessfulPayment(ctx context.Context, e SuccessfulPaymentEvent) (Result, error) {
	msg := e.Message
	sp := msg.SuccessfulPayment
	out, err := r.payments.RecordSuccessful(ctx, payment.SuccessfulPayment{
		UserID:           msg.From.ID,
		Username:         msg.From.Username,
		Currency:         sp.Currency,
		TotalAmount:      int64(sp.TotalAmount),
		Payload:          sp.InvoicePayload,
		TelegramChargeID: sp.TelegramPaymentChargeID,
		ProviderChargeID: sp.ProviderPaymentChargeID,
	})
	if err != nil {
		return Result{}, err
	}
	return handled("payment_id", out.Payment.ID, "duplicate", out.Duplicate, "link_issued", out.InviteLink != ""), nil
}

func (r *Router) onMessage(ctx context.Context, msg *models.Message) (Result, error) {
	cmd, arg, ok := r.command(msg.Text)
	if !ok {
		return unhandled(), nil
	}
	switch {
	case cmd == commandVerify && isGroupChat(msg.Chat):
		return r.verify(ctx, msg, arg)
	case cmd == commandStatus && msg.Chat.Type == models.ChatTypePrivate && msg.From != nil:
		return r.status(ctx, msg)
	}
	return unhandled("command", cmd), nil
}

func isGroupChat(c models.Chat) bool {
	switch c.Type {
	case models.ChatTypeGroup, models.ChatTypeSupergroup, models.ChatTypeChannel:
		return true
	}
	return false
}

// command splits "/cmd@bot arg" into its parts. Commands addressed to another bot are ignored.
func (r *Router) command(text string) (cmd, arg string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", "", false
	}
	cmd = fields[0]
	if name, target, found := strings.Cut(cmd, "@"); found {
		if r.botUsername != "" && !strings.EqualFold(target, r.botUsername) {
			return "", "", false
		}
		cmd = name
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(cmd), arg, true
}

func (r *Router) verify(ctx context.Context, msg *models.Message, code string) (Result, error) {
	log := logctx.FromCtx(ctx, r.log).With("chat_id", msg.Chat.ID)
	if code == "" {
		r.reply(ctx, msg.Chat.ID, "Usage: /verify <code>")
		return unhandled("reason", "missing verification code"), nil
	}
	c, err := r.store.FindCommunityByVerificationCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		r.reply(ctx, msg.Chat.ID, "This verification code is not valid.")
		return unhandled("reason", "unknown verification code"), nil
	}
	if err != nil {
		return Result{}, apperr.Store("find community by verification code", err)
	}
	if err := r.store.BindCommunityChat(ctx, c.ID, msg.Chat.ID); err != nil {
		return Result{}, apperr.Store("bind community chat", err)
	}
	log.Infow("community_verified", "community_id", c.ID)
	r.reply(ctx, msg.Chat.ID, fmt.Sprintf("%s is now connected. Paid members will be admitted automatically.", c.Name))
	return handled("community_id", c.ID, "action", "verify"), nil
}

func (r *Router) status(ctx context.Context, msg *models.Message) (Result, error) {
	members, err := r.store.ListMembersByUser(ctx, msg.From.ID)
	if err != nil {
		return Result{}, apperr.Store("list members by user", err)
	}
	r.reply(ctx, msg.Chat.ID, r.statusText(ctx, members))
	return handled("action", "status", "memberships", len(members)), nil
}

func (r *Router) statusText(ctx context.Context, members []*dbmodels.Member) string {
	if len(members) == 0 {
		return "You have no memberships yet."
	}
	var b strings.Builder
	b.WriteString("Your memberships:")
	for _, m := range members {
		name := m.CommunityID
		if c, err := r.store.FindCommunity(ctx, m.CommunityID); err == nil {
			name = c.Name
		}
		fmt.Fprintf(&b, "\n%s: %s", name, m.SubscriptionStatus)
		if m.SubscriptionEnd != nil {
			verb := "until"
			if !m.HasLiveSubscription(r.now()) {
				verb = "ended"
			}
			fmt.Fprintf(&b, " (%s %s)", verb, m.SubscriptionEnd.UTC().Format("2006-01-02"))
		}
	}
	return b.String()
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.gw.SendText(ctx, chatID, text); err != nil {
		logctx.FromCtx(ctx, r.log).Warnw("reply_failed", "chat_id", chatID, "err", err)
	}
}
