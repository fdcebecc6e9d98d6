package handlers

import (
	"github.com/fatflowers/tollgate/internal/app/service/broadcast"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/app/service/payment"
	"github.com/fatflowers/tollgate/internal/app/service/statistics"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/pkg/response"
	"github.com/fatflowers/tollgate/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespHealth struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    HealthStatus             `json:"data"`
}

type RespBroadcastResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    broadcast.Result         `json:"data"`
}

type RespBroadcastJob struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.BroadcastJob      `json:"data"`
}

type RespKickOutcome struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    membership.KickOutcome   `json:"data"`
}

type RespListMembers struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListMembersResponse      `json:"data"`
}

type RespMemberships struct {
	Code    response.APIResponseCode       `json:"code"`
	Message string                         `json:"message"`
	Data    []types.MemberSubscriptionInfo `json:"data"`
}

type RespInviteLink struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    InviteLinkResponse       `json:"data"`
}

type RespPaymentOutcome struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.Outcome          `json:"data"`
}

type RespStatistics struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}
