package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/tollgate/internal/app/service/statistics"
	"github.com/fatflowers/tollgate/pkg/response"
)

// @Summary      Statistics (Admin)
// @Description  Payment and member series for the given communities. Supported ids: daily_payment_count, daily_revenue, total_revenue, member_count_by_status, daily_new_member_count, active_member_count.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body statistics.Request true "Statistics request"
// @Success      200  {object}  handlers.RespStatistics
// @Router       /api/v1/admin/statistics [post]
func ApiStatistics(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Get(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}
