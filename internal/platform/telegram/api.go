package telegram

import (
	"context"
	"time"
)

// Button is a single inline URL button attached under a message.
type Button struct {
	Text string
	URL  string
}

// OutgoingMessage is a text message, or a photo with caption when ImageURL is set.
type OutgoingMessage struct {
	ChatID    int64
	Text      string
	ImageURL  string
	ParseMode string
	Button    *Button
}

// InviteLinkParams describes a link to create. Zero MemberLimit means unlimited.
type InviteLinkParams struct {
	Name        string
	ExpireAt    time.Time
	MemberLimit int
}

// API is the raw Bot API surface used by the engine. Implementations return the
// platform error unchanged; retries and classification live in Gateway.
type API interface {
	ApproveChatJoinRequest(ctx context.Context, chatID, userID int64) error
	DeclineChatJoinRequest(ctx context.Context, chatID, userID int64) error
	BanChatMember(ctx context.Context, chatID, userID int64, until time.Time) error
	UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error
	// KickChatMember is the pre-ban removal method, kept for servers without banChatMember.
	KickChatMember(ctx context.Context, chatID, userID int64) error
	CreateChatInviteLink(ctx context.Context, chatID int64, p InviteLinkParams) (string, error)
	RevokeChatInviteLink(ctx context.Context, chatID int64, link string) error
	SendMessage(ctx context.Context, msg OutgoingMessage) error
	SendPhoto(ctx context.Context, msg OutgoingMessage) error
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error
	AnswerCallbackQuery(ctx context.Context, queryID, text string) error
}
