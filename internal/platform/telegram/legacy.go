package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a failed Bot API response decoded from the raw envelope.
// Only the legacy call produces it; the bot library reports its own error values.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Method, e.Code, e.Description)
}

type rawResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// KickChatMember calls the deprecated kickChatMember method, which the bot library does not expose.
func (a *BotAPI) KickChatMember(ctx context.Context, chatID, userID int64) error {
	return postMethod(ctx, a.http, a.serverURL, a.token, "kickChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	})
}

func postMethod(ctx context.Context, client *http.Client, serverURL, token, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", serverURL, token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var r rawResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return &APIError{Method: method, Code: resp.StatusCode, Description: string(raw)}
	}
	if r.OK {
		return nil
	}
	apiErr := &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
	if apiErr.Code == 0 {
		apiErr.Code = resp.StatusCode
	}
	if r.Parameters != nil && r.Parameters.RetryAfter > 0 {
		apiErr.RetryAfter = time.Duration(r.Parameters.RetryAfter) * time.Second
	}
	return apiErr
}
