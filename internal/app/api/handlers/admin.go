package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/tollgate/internal/app/service/broadcast"
	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/app/service/payment"
	"github.com/fatflowers/tollgate/internal/app/service/statistics"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/response"
	"github.com/fatflowers/tollgate/pkg/types"
)

const (
	defaultListSize = 100
	maxListSize     = 1000
)

// @Summary      Broadcast (Admin)
// @Description  Sends a message to the members of a community or a community group. Runs to completion before answering.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body broadcast.Request true "Broadcast request"
// @Success      200  {object}  handlers.RespBroadcastResult
// @Router       /api/v1/admin/broadcast [post]
func ApiBroadcast(engine *broadcast.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req broadcast.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := engine.Broadcast(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Broadcast Job (Admin)
// @Description  Returns the counters and status of one broadcast job.
// @Tags         Admin
// @Produce      json
// @Security     AdminBearer
// @Param        id   path      string  true  "Broadcast job id"
// @Success      200  {object}  handlers.RespBroadcastJob
// @Router       /api/v1/admin/broadcast/{id} [get]
func ApiGetBroadcastJob(engine *broadcast.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := engine.Job(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(job))
	}
}

type MemberRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	CommunityID string `json:"community_id" binding:"required"`
}

// memberAction kicks the member with the given final status.
func memberAction(st store.Store, members *membership.Service, status types.SubscriptionStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		m, err := st.FindMember(c.Request.Context(), req.UserID, req.CommunityID)
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := members.Kick(c.Request.Context(), m, status)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

// @Summary      Kick Member (Admin)
// @Description  Removes the member from the chat and marks the subscription removed. The row is updated even if Telegram refused.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body handlers.MemberRequest true "Member"
// @Success      200  {object}  handlers.RespKickOutcome
// @Router       /api/v1/admin/members/kick [post]
func ApiKickMember(st store.Store, members *membership.Service) gin.HandlerFunc {
	return memberAction(st, members, types.SubscriptionStatusRemoved)
}

// @Summary      Expire Member (Admin)
// @Description  Removes the member from the chat and marks the subscription expired.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body handlers.MemberRequest true "Member"
// @Success      200  {object}  handlers.RespKickOutcome
// @Router       /api/v1/admin/members/expire [post]
func ApiExpireMember(st store.Store, members *membership.Service) gin.HandlerFunc {
	return memberAction(st, members, types.SubscriptionStatusExpired)
}

type ListMembersRequest struct {
	CommunityIDs []string              `json:"community_ids" binding:"required"`
	Filter       types.BroadcastFilter `json:"filter"`
	PlanID       string                `json:"plan_id"`
	Filters      []*types.CommonFilter `json:"filters"`
	From         int                   `json:"from"`
	Size         int                   `json:"size"`
}

type ListMembersResponse struct {
	Items []*models.Member `json:"items"`
}

// @Summary      List Members (Admin)
// @Description  Lists members of the given communities, optionally narrowed by a broadcast filter and column filters.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body handlers.ListMembersRequest true "List members request with filters and pagination"
// @Success      200  {object}  handlers.RespListMembers
// @Router       /api/v1/admin/members/list [post]
func ApiListMembers(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListMembersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.Filter == "" {
			req.Filter = types.BroadcastFilterAll
		}
		if req.Size <= 0 {
			req.Size = defaultListSize
		}
		q := store.MemberQuery{
			CommunityIDs: req.CommunityIDs,
			Filter:       req.Filter,
			PlanID:       req.PlanID,
			Filters:      req.Filters,
			Limit:        min(req.Size, maxListSize),
			Offset:       max(req.From, 0),
		}
		if err := q.Validate(); err != nil {
			badRequest(c, err.Error())
			return
		}
		items, err := st.ListMembers(c.Request.Context(), q)
		if errors.Is(err, store.ErrFiltersUnsupported) {
			badRequest(c, err.Error())
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListMembersResponse{Items: items}))
	}
}

type InviteLinkRequest struct {
	CommunityID string `json:"community_id" binding:"required"`
	UserID      int64  `json:"user_id"`
}

type InviteLinkResponse struct {
	InviteLink string `json:"invite_link"`
}

// @Summary      Get Invite Link (Admin)
// @Description  Returns the shared invite link of a community, creating one when none is live.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body handlers.InviteLinkRequest true "Invite link request"
// @Success      200  {object}  handlers.RespInviteLink
// @Router       /api/v1/admin/invite_link [post]
func ApiInviteLink(links *invitelink.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InviteLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		link, err := links.GetOrCreate(c.Request.Context(), req.CommunityID, req.UserID)
		if errors.Is(err, invitelink.ErrLinkUnavailable) {
			c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeError, invitelink.ManualJoinMessage))
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&InviteLinkResponse{InviteLink: link}))
	}
}

type CompletePaymentRequest struct {
	CommunityID      string `json:"community_id" binding:"required"`
	PlanID           string `json:"plan_id" binding:"required"`
	UserID           int64  `json:"user_id"`
	Username         string `json:"username"`
	Amount           string `json:"amount" binding:"required"`
	Currency         string `json:"currency" binding:"required"`
	Provider         string `json:"provider"`
	ProviderChargeID string `json:"provider_charge_id"`
}

// @Summary      Complete Payment (Admin)
// @Description  Records a successful payment made through an external gateway and grants access to the payer.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body handlers.CompletePaymentRequest true "Payment"
// @Success      200  {object}  handlers.RespPaymentOutcome
// @Router       /api/v1/admin/payments/complete [post]
func ApiCompletePayment(payments *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompletePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		provider := types.PaymentProviderExternal
		if req.Provider != "" {
			provider = types.PaymentProvider(req.Provider)
		}
		if !provider.Valid() {
			badRequest(c, "invalid provider")
			return
		}
		p := &models.Payment{
			CommunityID:     req.CommunityID,
			PlanID:          req.PlanID,
			PayerExternalID: req.UserID,
			PayerUsername:   strings.TrimPrefix(req.Username, "@"),
			Status:          types.PaymentStatusSuccessful,
			Provider:        provider,
			Amount:          amount,
			Currency:        strings.ToUpper(req.Currency),
		}
		if req.ProviderChargeID != "" {
			p.ProviderChargeID = lo.ToPtr(req.ProviderChargeID)
		}
		out, err := payments.Complete(c.Request.Context(), p)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func RegisterAdminRoutes(r gin.IRouter, st store.Store, members *membership.Service, engine *broadcast.Engine, links *invitelink.Manager, payments *payment.Service, stats *statistics.Service) {
	r.POST("/broadcast", ApiBroadcast(engine))
	r.GET("/broadcast/:id", ApiGetBroadcastJob(engine))
	r.POST("/members/kick", ApiKickMember(st, members))
	r.POST("/members/expire", ApiExpireMember(st, members))
	r.POST("/members/list", ApiListMembers(st))
	r.GET("/members/by_user", ApiMembersByUser(st))
	r.POST("/invite_link", ApiInviteLink(links))
	r.POST("/payments/complete", ApiCompletePayment(payments))
	r.POST("/statistics", ApiStatistics(stats))
}
