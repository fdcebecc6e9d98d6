// Package telegramtest provides an in-memory telegram.API for tests.
package telegramtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/platform/telegram"
)

// Call is one recorded API invocation.
type Call struct {
	Method       string
	ChatID       int64
	UserID       int64
	Until        time.Time
	OnlyIfBanned bool
	Link         string
	LinkParams   telegram.InviteLinkParams
	Message      telegram.OutgoingMessage
	QueryID      string
	OK           bool
	Text         string
}

// FakeAPI records every call. Queued errors are returned per method in FIFO order;
// ErrFunc, when set, is consulted after the queue is empty.
type FakeAPI struct {
	mu      sync.Mutex
	calls   []Call
	queued  map[string][]error
	ErrFunc func(c Call) error
	linkSeq int
}

var _ telegram.API = (*FakeAPI)(nil)

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{queued: map[string][]error{}}
}

// FailNext queues errs to be returned by the next calls of method.
func (f *FakeAPI) FailNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[method] = append(f.queued[method], errs...)
}

func (f *FakeAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Methods returns the recorded method names in call order.
func (f *FakeAPI) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

// CallsOf returns the recorded calls of one method.
func (f *FakeAPI) CallsOf(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeAPI) record(c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	if q := f.queued[c.Method]; len(q) > 0 {
		f.queued[c.Method] = q[1:]
		f.mu.Unlock()
		return q[0]
	}
	fn := f.ErrFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(c)
	}
	return nil
}

func (f *FakeAPI) ApproveChatJoinRequest(_ context.Context, chatID, userID int64) error {
	return f.record(Call{Method: "approveChatJoinRequest", ChatID: chatID, UserID: userID})
}

func (f *FakeAPI) DeclineChatJoinRequest(_ context.Context, chatID, userID int64) error {
	return f.record(Call{Method: "declineChatJoinRequest", ChatID: chatID, UserID: userID})
}

func (f *FakeAPI) BanChatMember(_ context.Context, chatID, userID int64, until time.Time) error {
	return f.record(Call{Method: "banChatMember", ChatID: chatID, UserID: userID, Until: until})
}

func (f *FakeAPI) UnbanChatMember(_ context.Context, chatID, userID int64, onlyIfBanned bool) error {
	return f.record(Call{Method: "unbanChatMember", ChatID: chatID, UserID: userID, OnlyIfBanned: onlyIfBanned})
}

func (f *FakeAPI) KickChatMember(_ context.Context, chatID, userID int64) error {
	return f.record(Call{Method: "kickChatMember", ChatID: chatID, UserID: userID})
}

func (f *FakeAPI) CreateChatInviteLink(_ context.Context, chatID int64, p telegram.InviteLinkParams) (string, error) {
	f.mu.Lock()
	f.linkSeq++
	link := fmt.Sprintf("https://t.me/+fake%d", f.linkSeq)
	f.mu.Unlock()
	if err := f.record(Call{Method: "createChatInviteLink", ChatID: chatID, LinkParams: p, Link: link}); err != nil {
		return "", err
	}
	return link, nil
}

func (f *FakeAPI) RevokeChatInviteLink(_ context.Context, chatID int64, link string) error {
	return f.record(Call{Method: "revokeChatInviteLink", ChatID: chatID, Link: link})
}

func (f *FakeAPI) SendMessage(_ context.Context, msg telegram.OutgoingMessage) error {
	return f.record(Call{Method: "sendMessage", ChatID: msg.ChatID, Message: msg, Text: msg.Text})
}

func (f *FakeAPI) SendPhoto(_ context.Context, msg telegram.OutgoingMessage) error {
	return f.record(Call{Method: "sendPhoto", ChatID: msg.ChatID, Message: msg, Text: msg.Text})
}

func (f *FakeAPI) AnswerPreCheckoutQuery(_ context.Context, queryID string, ok bool, errorMessage string) error {
	return f.record(Call{Method: "answerPreCheckoutQuery", QueryID: queryID, OK: ok, Text: errorMessage})
}

func (f *FakeAPI) AnswerCallbackQuery(_ context.Context, queryID, text string) error {
	return f.record(Call{Method: "answerCallbackQuery", QueryID: queryID, Text: text})
}

// FastPolicy keeps the production kick sequence shape but without real waits.
func FastPolicy() telegram.Policy {
	return telegram.Policy{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
		CallTimeout: time.Second,
		BanDuration: 40 * time.Second,
		UnbanDelay:  0,
	}
}

// NewGateway wires a Gateway over f with FastPolicy, a nop logger and no metrics.
func NewGateway(f *FakeAPI) *telegram.Gateway {
	return telegram.NewGateway(f, FastPolicy(), zap.NewNop().Sugar(), nil)
}

// BadRequest mimics the error the bot library returns for a 400 answer.
func BadRequest(description string) error {
	return fmt.Errorf("%w, %s", bot.ErrorBadRequest, description)
}

// Forbidden mimics a 403 answer, e.g. a user who blocked the bot.
func Forbidden(description string) error {
	return fmt.Errorf("%w, %s", bot.ErrorForbidden, description)
}

// TooManyRequests mimics a 429 answer carrying retry_after.
func TooManyRequests(retryAfter int) error {
	return &bot.TooManyRequestsError{Message: "Too Many Requests: retry later", RetryAfter: retryAfter}
}

// MethodNotFound mimics a server that does not implement the called method.
func MethodNotFound() error {
	return fmt.Errorf("%w, %s", bot.ErrorNotFound, "Not Found: method not found")
}
