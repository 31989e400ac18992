// Package telegram is a minimal Bot API client covering the two surfaces the
// watcher needs: sending Markdown messages and long-polling updates.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/hyperwatch/errs"
)

const venue = "telegram"

// DefaultBaseURL is the production Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Update is one inbound event from getUpdates. Only message text is consumed.
type Update struct {
	ID      int64
	ChatID  int64
	Text    string
	From    string
	Unix    int64
	IsReply bool
}

// Bot talks to the Telegram Bot API for a single bot token and target chat.
type Bot struct {
	token   string
	chatID  int64
	baseURL string
	http    *http.Client
}

// NewBot constructs a bot client. timeout bounds individual API calls except
// long polls, which extend it by the poll window.
func NewBot(token string, chatID int64, timeout time.Duration) *Bot {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := new(http.Client)
	client.Timeout = timeout
	return &Bot{
		token:   token,
		chatID:  chatID,
		baseURL: DefaultBaseURL,
		http:    client,
	}
}

// WithBaseURL overrides the API host, primarily for testing.
func (b *Bot) WithBaseURL(url string) *Bot {
	if url != "" {
		b.baseURL = url
	}
	return b
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send delivers one Markdown message to the configured chat. A non-zero
// replyTo threads the message under an earlier one. A 429 response surfaces
// as a rate-limited error carrying the advised retry delay.
func (b *Bot) Send(ctx context.Context, text string, replyTo int64) (int64, error) {
	payload := map[string]any{
		"chat_id":    b.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if replyTo != 0 {
		payload["reply_to_message_id"] = replyTo
	}

	result, err := b.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}

	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(result, &sent); err != nil {
		return 0, errs.New(venue, errs.CodeDecode, errs.WithCause(err))
	}
	return sent.MessageID, nil
}

// GetUpdates long-polls for inbound messages after offset. It returns an
// empty slice when the poll window elapses without traffic.
func (b *Bot) GetUpdates(ctx context.Context, offset int64, window time.Duration) ([]Update, error) {
	seconds := int(window / time.Second)
	if seconds <= 0 {
		seconds = 30
	}
	// The poll window must outlive the per-call timeout.
	poll := new(http.Client)
	poll.Timeout = b.http.Timeout + time.Duration(seconds)*time.Second
	result, err := b.callWith(ctx, poll, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         seconds,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		UpdateID int64 `json:"update_id"`
		Message  *struct {
			Text string `json:"text"`
			Date int64  `json:"date"`
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
			From *struct {
				Username string `json:"username"`
			} `json:"from"`
			ReplyTo *struct{} `json:"reply_to_message"`
		} `json:"message"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, errs.New(venue, errs.CodeDecode, errs.WithCause(err))
	}

	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		update := Update{ID: u.UpdateID}
		if u.Message != nil {
			update.ChatID = u.Message.Chat.ID
			update.Text = u.Message.Text
			update.Unix = u.Message.Date
			update.IsReply = u.Message.ReplyTo != nil
			if u.Message.From != nil {
				update.From = u.Message.From.Username
			}
		}
		updates = append(updates, update)
	}
	return updates, nil
}

func (b *Bot) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	return b.callWith(ctx, b.http, method, payload)
}

func (b *Bot) callWith(ctx context.Context, client *http.Client, method string, payload any) (json.RawMessage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.New(venue, errs.CodeInvalid, errs.WithCause(err))
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, errs.New(venue, errs.CodeInvalid, errs.WithCause(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.New(venue, errs.CodeNetwork, errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(venue, errs.CodeNetwork, errs.WithCause(err))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errs.New(venue, errs.CodeDecode, errs.WithCause(err))
	}
	if !envelope.OK {
		if envelope.ErrorCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTooManyRequests {
			delay := time.Second
			if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
				delay = time.Duration(envelope.Parameters.RetryAfter) * time.Second
			}
			return nil, errs.New(venue, errs.CodeRateLimited,
				errs.WithHTTP(resp.StatusCode),
				errs.WithRetryAfter(delay),
				errs.WithMessage(envelope.Description))
		}
		return nil, errs.New(venue, errs.CodeExchange,
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage(envelope.Description))
	}
	return envelope.Result, nil
}
