package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/config"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	tg, err := NewTelegram(config.TelegramConfig{
		BaseURL:     server.URL,
		BotToken:    "12345:TESTTOKEN",
		PollTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewTelegram() = %v", err)
	}
	return tg
}

func TestCheckToken(t *testing.T) {
	var path atomic.Value
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		fmt.Fprint(w, `{"ok":true,"result":{"username":"askdb_bot"}}`)
	})
	if err := tg.CheckToken(context.Background()); err != nil {
		t.Fatalf("CheckToken() = %v", err)
	}
	if got := path.Load().(string); got != "/bot12345:TESTTOKEN/getMe" {
		t.Fatalf("request path = %q, want getMe with token", got)
	}
}

func TestCheckTokenRejected(t *testing.T) {
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ok":false,"description":"Unauthorized"}`)
	})
	if err := tg.CheckToken(context.Background()); err == nil {
		t.Fatalf("CheckToken() = nil, want error for rejected token")
	}
}

func TestPollDeliversMessagesAndAdvancesOffset(t *testing.T) {
	var calls atomic.Int64
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		switch calls.Add(1) {
		case 1:
			if r.URL.Query().Get("offset") != "" {
				t.Errorf("first poll sent offset %q, want none", r.URL.Query().Get("offset"))
			}
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":7,"message":{"from":{"id":100},"chat":{"id":100},"text":"how many employees?","date":1700000000}},
				{"update_id":8,"message":{"from":{"id":200},"chat":{"id":200},"text":"/schema","date":1700000001}}
			]}`)
		default:
			if got := r.URL.Query().Get("offset"); got != "9" {
				t.Errorf("follow-up poll offset = %q, want %q", got, "9")
			}
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	var got []Message
	err := tg.Poll(ctx, func(m Message) {
		got = append(got, m)
		if len(got) == 2 {
			// One more poll happens to assert the offset, then the
			// context cancels on the following iteration.
			go func() {
				time.Sleep(50 * time.Millisecond)
				cancel()
			}()
		}
	})
	if err != context.Canceled {
		t.Fatalf("Poll() = %v, want context.Canceled", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Sender != "100" || got[0].Text != "how many employees?" {
		t.Fatalf("first message = %+v", got[0])
	}
	if got[1].Chat != "200" {
		t.Fatalf("second message chat = %q, want %q", got[1].Chat, "200")
	}
}

func TestPollSkipsNonTextUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var first atomic.Bool
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if first.CompareAndSwap(false, true) {
			fmt.Fprint(w, `{"ok":true,"result":[{"update_id":1},{"update_id":2,"message":{"chat":{"id":5},"text":""}}]}`)
			return
		}
		cancel()
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	})

	delivered := 0
	_ = tg.Poll(ctx, func(Message) { delivered++ })
	if delivered != 0 {
		t.Fatalf("delivered %d messages, want 0 for non-text updates", delivered)
	}
}

func TestReply(t *testing.T) {
	type sendPayload struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	var got atomic.Value
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var p sendPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		got.Store(p)
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	})

	if err := tg.Reply(context.Background(), "100", "Result: 2"); err != nil {
		t.Fatalf("Reply() = %v", err)
	}
	p := got.Load().(sendPayload)
	if p.ChatID != "100" || p.Text != "Result: 2" {
		t.Fatalf("sendMessage payload = %+v", p)
	}
}

func TestReplyAPIError(t *testing.T) {
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	})
	err := tg.Reply(context.Background(), "100", "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("Reply() = %v, want API error with description", err)
	}
}

func TestNewTelegramValidation(t *testing.T) {
	if _, err := NewTelegram(config.TelegramConfig{BaseURL: "https://api.telegram.org"}); err == nil {
		t.Fatalf("NewTelegram() without token = nil, want error")
	}
	if _, err := NewTelegram(config.TelegramConfig{BotToken: "12345:TOKEN"}); err == nil {
		t.Fatalf("NewTelegram() without base URL = nil, want error")
	}
}
