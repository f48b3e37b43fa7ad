// Package transport reaches the Telegram Bot API over plain HTTP:
// long-polled updates in, sendMessage replies out.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
)

// Message is one inbound text message, reduced to what the pipeline needs.
type Message struct {
	Sender     string
	Chat       string
	Text       string
	ReceivedAt time.Time
}

type Telegram struct {
	client      *http.Client
	baseURL     string
	token       string
	pollTimeout time.Duration
	offset      int64
}

func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("telegram base URL is required")
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Telegram{
		// The HTTP timeout must outlast the long-poll window or every
		// empty poll reports an error.
		client:      &http.Client{Timeout: pollTimeout + 10*time.Second},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.BotToken,
		pollTimeout: pollTimeout,
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
		Date int64  `json:"date"`
	} `json:"message"`
}

// CheckToken verifies the bot token against getMe. It is the transport
// half of the start-up readiness probe.
func (t *Telegram) CheckToken(ctx context.Context) error {
	var result struct {
		Username string `json:"username"`
	}
	if err := t.call(ctx, "getMe", nil, &result); err != nil {
		return fmt.Errorf("telegram token check: %w", err)
	}
	return nil
}

// Poll long-polls getUpdates and hands every text message to handle. It
// returns when ctx is canceled; transient poll errors are retried after a
// short pause so a network blip does not kill the run.
func (t *Telegram) Poll(ctx context.Context, handle func(Message)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := t.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-time.After(2 * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, u := range updates {
			if u.UpdateID >= t.offset {
				t.offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
				continue
			}
			handle(Message{
				Sender:     strconv.FormatInt(u.Message.From.ID, 10),
				Chat:       strconv.FormatInt(u.Message.Chat.ID, 10),
				Text:       u.Message.Text,
				ReceivedAt: time.Unix(u.Message.Date, 0).UTC(),
			})
		}
	}
}

// Reply sends one message to a chat.
func (t *Telegram) Reply(ctx context.Context, chat, text string) error {
	payload := map[string]any{"chat_id": chat, "text": text}
	if err := t.call(ctx, "sendMessage", payload, nil); err != nil {
		return fmt.Errorf("telegram reply: %w", err)
	}
	return nil
}

func (t *Telegram) fetchUpdates(ctx context.Context) ([]update, error) {
	query := url.Values{}
	query.Set("timeout", strconv.Itoa(int(t.pollTimeout.Seconds())))
	if t.offset > 0 {
		query.Set("offset", strconv.FormatInt(t.offset, 10))
	}
	var updates []update
	if err := t.call(ctx, "getUpdates?"+query.Encode(), nil, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (t *Telegram) call(ctx context.Context, method string, payload any, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)

	var body *bytes.Reader
	httpMethod := http.MethodGet
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
		httpMethod = http.MethodPost
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("call telegram: %s", observability.Mask(err.Error()))
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, api.Description)
	}
	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("decode telegram result: %w", err)
		}
	}
	return nil
}
