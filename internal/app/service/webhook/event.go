package webhook

import (
	"encoding/json"

	"github.com/go-telegram/bot/models"

	"github.com/fatflowers/tollgate/internal/apperr"
)

type Kind string

const (
	KindSuccessfulPayment Kind = "successful_payment"
	KindMessage           Kind = "message"
	KindEditedMessage     Kind = "edited_message"
	KindChannelPost       Kind = "channel_post"
	KindChatMember        Kind = "chat_member"
	KindMyChatMember      Kind = "my_chat_member"
	KindChatJoinRequest   Kind = "chat_join_request"
	KindCallbackQuery     Kind = "callback_query"
	KindPreCheckoutQuery  Kind = "pre_checkout_query"
	KindUnclassified      Kind = "unclassified"
)

// Event is a classified update. The set of implementations is closed.
type Event interface {
	Kind() Kind
	// ChatID and UserID are the identifiers recorded in the audit log; zero when the shape has none.
	ChatID() int64
	UserID() int64
	sealed()
}

type SuccessfulPaymentEvent struct {
	Message *models.Message
}

type MessageEvent struct {
	Message *models.Message
}

type EditedMessageEvent struct {
	Message *models.Message
}

type ChannelPostEvent struct {
	Message *models.Message
}

type ChatMemberEvent struct {
	Update *models.ChatMemberUpdated
}

type MyChatMemberEvent struct {
	Update *models.ChatMemberUpdated
}

type JoinRequestEvent struct {
	Request *models.ChatJoinRequest
}

type CallbackQueryEvent struct {
	Query *models.CallbackQuery
}

type PreCheckoutEvent struct {
	Query *models.PreCheckoutQuery
}

// Unclassified is any update shape the router does not handle.
type Unclassified struct{}

func (SuccessfulPaymentEvent) Kind() Kind { return KindSuccessfulPayment }
func (MessageEvent) Kind() Kind           { return KindMessage }
func (EditedMessageEvent) Kind() Kind     { return KindEditedMessage }
func (ChannelPostEvent) Kind() Kind       { return KindChannelPost }
func (ChatMemberEvent) Kind() Kind        { return KindChatMember }
func (MyChatMemberEvent) Kind() Kind      { return KindMyChatMember }
func (JoinRequestEvent) Kind() Kind       { return KindChatJoinRequest }
func (CallbackQueryEvent) Kind() Kind     { return KindCallbackQuery }
func (PreCheckoutEvent) Kind() Kind       { return KindPreCheckoutQuery }
func (Unclassified) Kind() Kind           { return KindUnclassified }

func (e SuccessfulPaymentEvent) ChatID() int64 { return e.Message.Chat.ID }
func (e MessageEvent) ChatID() int64           { return e.Message.Chat.ID }
func (e EditedMessageEvent) ChatID() int64     { return e.Message.Chat.ID }
func (e ChannelPostEvent) ChatID() int64       { return e.Message.Chat.ID }
func (e ChatMemberEvent) ChatID() int64        { return e.Update.Chat.ID }
func (e MyChatMemberEvent) ChatID() int64      { return e.Update.Chat.ID }
func (e JoinRequestEvent) ChatID() int64       { return e.Request.Chat.ID }
func (e CallbackQueryEvent) ChatID() int64 {
	switch m := e.Query.Message; {
	case m.Message != nil:
		return m.Message.Chat.ID
	case m.InaccessibleMessage != nil:
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}
func (PreCheckoutEvent) ChatID() int64 { return 0 }
func (Unclassified) ChatID() int64     { return 0 }

func (e SuccessfulPaymentEvent) UserID() int64 { return e.Message.From.ID }
func (e MessageEvent) UserID() int64           { return userIDOf(e.Message.From) }
func (e EditedMessageEvent) UserID() int64     { return userIDOf(e.Message.From) }
func (e ChannelPostEvent) UserID() int64       { return 0 }
func (e ChatMemberEvent) UserID() int64        { return userIDOf(memberUser(e.Update.NewChatMember)) }
func (e MyChatMemberEvent) UserID() int64      { return userIDOf(memberUser(e.Update.NewChatMember)) }
func (e JoinRequestEvent) UserID() int64       { return e.Request.From.ID }
func (e CallbackQueryEvent) UserID() int64     { return e.Query.From.ID }
func (e PreCheckoutEvent) UserID() int64       { return e.Query.From.ID }
func (Unclassified) UserID() int64             { return 0 }

func (SuccessfulPaymentEvent) sealed() {}
func (MessageEvent) sealed()           {}
func (EditedMessageEvent) sealed()     {}
func (ChannelPostEvent) sealed()       {}
func (ChatMemberEvent) sealed()        {}
func (MyChatMemberEvent) sealed()      {}
func (JoinRequestEvent) sealed()       {}
func (CallbackQueryEvent) sealed()     {}
func (PreCheckoutEvent) sealed()       {}
func (Unclassified) sealed()           {}

func userIDOf(u *models.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func hasChat(c models.Chat) bool  { return c.ID != 0 }
func hasUser(u *models.User) bool { return u != nil && u.ID != 0 }

// memberUser returns the user of whichever status variant the library decoded.
func memberUser(m models.ChatMember) *models.User {
	switch m.Type {
	case models.ChatMemberTypeOwner:
		return m.Owner.User
	case models.ChatMemberTypeAdministrator:
		return &m.Administrator.User
	case models.ChatMemberTypeMember:
		return m.Member.User
	case models.ChatMemberTypeRestricted:
		return m.Restricted.User
	case models.ChatMemberTypeLeft:
		return m.Left.User
	case models.ChatMemberTypeBanned:
		return m.Banned.User
	}
	return nil
}

// present reports whether the member is inside the chat, counting restricted members that still belong to it.
func present(m models.ChatMember) bool {
	switch m.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator, models.ChatMemberTypeMember:
		return true
	case models.ChatMemberTypeRestricted:
		return m.Restricted.IsMember
	}
	return false
}

// Decode parses a webhook body. Undecodable JSON, including an unknown chat member status,
// is a validation error.
func Decode(raw []byte) (*models.Update, error) {
	var u models.Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, apperr.Validation("decode update", "invalid json: %v", err)
	}
	return &u, nil
}

// Classify maps an update onto exactly one Event. Shapes are probed in a fixed order and the
// first match wins; successful_payment is a refinement of message and is probed first.
// A recognised shape without its chat or user identifiers is a validation error.
func Classify(u *models.Update) (Event, error) {
	if u == nil {
		return nil, apperr.Validation("classify", "empty update")
	}
	switch {
	case u.Message != nil && u.Message.SuccessfulPayment != nil:
		if !hasChat(u.Message.Chat) || !hasUser(u.Message.From) {
			return nil, invalid(KindSuccessfulPayment, "chat or payer")
		}
		return SuccessfulPaymentEvent{Message: u.Message}, nil

	case u.Message != nil:
		if !hasChat(u.Message.Chat) {
			return nil, invalid(KindMessage, "chat")
		}
		return MessageEvent{Message: u.Message}, nil

	case u.EditedMessage != nil:
		if !hasChat(u.EditedMessage.Chat) {
			return nil, invalid(KindEditedMessage, "chat")
		}
		return EditedMessageEvent{Message: u.EditedMessage}, nil

	case u.ChannelPost != nil:
		if !hasChat(u.ChannelPost.Chat) {
			return nil, invalid(KindChannelPost, "chat")
		}
		return ChannelPostEvent{Message: u.ChannelPost}, nil

	case u.ChatMember != nil:
		if err := validMemberUpdate(KindChatMember, u.ChatMember); err != nil {
			return nil, err
		}
		return ChatMemberEvent{Update: u.ChatMember}, nil

	case u.MyChatMember != nil:
		if err := validMemberUpdate(KindMyChatMember, u.MyChatMember); err != nil {
			return nil, err
		}
		return MyChatMemberEvent{Update: u.MyChatMember}, nil

	case u.ChatJoinRequest != nil:
		if !hasChat(u.ChatJoinRequest.Chat) || !hasUser(&u.ChatJoinRequest.From) {
			return nil, invalid(KindChatJoinRequest, "chat or user")
		}
		return JoinRequestEvent{Request: u.ChatJoinRequest}, nil

	case u.CallbackQuery != nil:
		if u.CallbackQuery.ID == "" || !hasUser(&u.CallbackQuery.From) {
			return nil, invalid(KindCallbackQuery, "query id or user")
		}
		return CallbackQueryEvent{Query: u.CallbackQuery}, nil

	case u.PreCheckoutQuery != nil:
		if u.PreCheckoutQuery.ID == "" || !hasUser(u.PreCheckoutQuery.From) {
			return nil, invalid(KindPreCheckoutQuery, "query id or user")
		}
		return PreCheckoutEvent{Query: u.PreCheckoutQuery}, nil
	}
	return Unclassified{}, nil
}

func validMemberUpdate(kind Kind, m *models.ChatMemberUpdated) error {
	if !hasChat(m.Chat) || !hasUser(memberUser(m.NewChatMember)) {
		return invalid(kind, "chat or member user")
	}
	return nil
}

func invalid(kind Kind, missing string) error {
	return apperr.Validation("classify", "%s update without %s", kind, missing)
}
