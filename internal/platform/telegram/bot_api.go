package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fatflowers/tollgate/pkg/config"
)

const defaultServerURL = "https://api.telegram.org"

// BotAPI implements API on top of github.com/go-telegram/bot.
type BotAPI struct {
	b         *bot.Bot
	token     string
	serverURL string
	http      *http.Client
}

var _ API = (*BotAPI)(nil)

// NewBotAPI builds the client without calling getMe, so startup does not depend on Telegram.
func NewBotAPI(cfg *config.Config) (*BotAPI, error) {
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram.token is empty")
	}
	serverURL := cfg.Telegram.ServerURL
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	httpClient := &http.Client{Timeout: cfg.Platform.CallTimeout + 5*time.Second}
	b, err := bot.New(cfg.Telegram.Token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(serverURL),
		bot.WithHTTPClient(cfg.Platform.CallTimeout, httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot client: %w", err)
	}
	return &BotAPI{b: b, token: cfg.Telegram.Token, serverURL: serverURL, http: httpClient}, nil
}

func (a *BotAPI) ApproveChatJoinRequest(ctx context.Context, chatID, userID int64) error {
	_, err := a.b.ApproveChatJoinRequest(ctx, &bot.ApproveChatJoinRequestParams{ChatID: chatID, UserID: userID})
	return err
}

func (a *BotAPI) DeclineChatJoinRequest(ctx context.Context, chatID, userID int64) error {
	_, err := a.b.DeclineChatJoinRequest(ctx, &bot.DeclineChatJoinRequestParams{ChatID: chatID, UserID: userID})
	return err
}

func (a *BotAPI) BanChatMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	_, err := a.b.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID:    chatID,
		UserID:    userID,
		UntilDate: int(until.Unix()),
	})
	return err
}

func (a *BotAPI) UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error {
	_, err := a.b.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: onlyIfBanned,
	})
	return err
}

func (a *BotAPI) CreateChatInviteLink(ctx context.Context, chatID int64, p InviteLinkParams) (string, error) {
	params := &bot.CreateChatInviteLinkParams{
		ChatID:      chatID,
		Name:        p.Name,
		MemberLimit: p.MemberLimit,
	}
	if !p.ExpireAt.IsZero() {
		params.ExpireDate = int(p.ExpireAt.Unix())
	}
	link, err := a.b.CreateChatInviteLink(ctx, params)
	if err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

func (a *BotAPI) RevokeChatInviteLink(ctx context.Context, chatID int64, link string) error {
	_, err := a.b.RevokeChatInviteLink(ctx, &bot.RevokeChatInviteLinkParams{ChatID: chatID, InviteLink: link})
	return err
}

func (a *BotAPI) SendMessage(ctx context.Context, msg OutgoingMessage) error {
	params := &bot.SendMessageParams{
		ChatID:    msg.ChatID,
		Text:      msg.Text,
		ParseMode: models.ParseMode(msg.ParseMode),
	}
	if kb := keyboard(msg.Button); kb != nil {
		params.ReplyMarkup = kb
	}
	_, err := a.b.SendMessage(ctx, params)
	return err
}

func (a *BotAPI) SendPhoto(ctx context.Context, msg OutgoingMessage) error {
	params := &bot.SendPhotoParams{
		ChatID:    msg.ChatID,
		Photo:     &models.InputFileString{Data: msg.ImageURL},
		Caption:   msg.Text,
		ParseMode: models.ParseMode(msg.ParseMode),
	}
	if kb := keyboard(msg.Button); kb != nil {
		params.ReplyMarkup = kb
	}
	_, err := a.b.SendPhoto(ctx, params)
	return err
}

func (a *BotAPI) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	_, err := a.b.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	return err
}

func (a *BotAPI) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	_, err := a.b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	return err
}

func keyboard(b *Button) *models.InlineKeyboardMarkup {
	if b == nil || b.Text == "" || b.URL == "" {
		return nil
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{{Text: b.Text, URL: b.URL}}},
	}
}
