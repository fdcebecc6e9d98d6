package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/response"
)

// writeError maps a service error onto the admin envelope. HTTP status stays 200.
func writeError(c *gin.Context, err error) {
	code := response.APIResponseCodeError
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = response.APIResponseCodeNotFound
	case apperr.Is(err, apperr.KindValidation):
		code = response.APIResponseCodeBadRequest
	}
	c.JSON(http.StatusOK, response.ErrorMsg(code, apperr.Description(err)))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeBadRequest, msg))
}
