package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/response"
	"github.com/fatflowers/tollgate/pkg/types"
)

func toSubscriptionInfo(m *models.Member, _ int) *types.MemberSubscriptionInfo {
	return &types.MemberSubscriptionInfo{
		CommunityID: m.CommunityID,
		Status:      m.SubscriptionStatus,
		IsActive:    m.IsActive,
		PlanID:      m.SubscriptionPlanID,
		ExpireAt:    m.SubscriptionEnd,
	}
}

// @Summary      Memberships Of User (Admin)
// @Description  Lists every community membership of one Telegram user.
// @Tags         Admin
// @Produce      json
// @Security     AdminBearer
// @Param        user_id  query     int  true  "Telegram user id"
// @Success      200      {object}  handlers.RespMemberships
// @Router       /api/v1/admin/members/by_user [get]
func ApiMembersByUser(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID == 0 {
			badRequest(c, "missing or invalid user_id")
			return
		}
		members, err := st.ListMembersByUser(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(lo.Map(members, toSubscriptionInfo)))
	}
}
