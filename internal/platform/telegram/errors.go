package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

type failure struct {
	retryable  bool
	retryAfter time.Duration
}

// classify decides whether a failed call may be retried.
// 400/401/403/404/409 answers are final; 429 and transport errors are not.
func classify(err error) failure {
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return failure{retryable: true, retryAfter: time.Duration(tooMany.RetryAfter) * time.Second}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return failure{retryable: true, retryAfter: apiErr.RetryAfter}
		case apiErr.Code >= 500:
			return failure{retryable: true}
		default:
			return failure{}
		}
	}
	for _, final := range []error{bot.ErrorBadRequest, bot.ErrorForbidden, bot.ErrorUnauthorized, bot.ErrorNotFound, bot.ErrorConflict} {
		if errors.Is(err, final) {
			return failure{}
		}
	}
	if errors.Is(err, context.Canceled) {
		return failure{}
	}
	return failure{retryable: true}
}

// IsUnsupportedMethod reports a server that does not know the requested method.
func IsUnsupportedMethod(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return true
	}
	if errors.Is(err, bot.ErrorNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") || strings.Contains(msg, "method is not supported")
}

// IsBlocked reports that the user blocked the bot or never started it.
func IsBlocked(err error) bool {
	return errors.Is(err, bot.ErrorForbidden)
}
