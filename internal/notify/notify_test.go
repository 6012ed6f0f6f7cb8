package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Krishna180104/cse-leave/internal/apperr"
)

func TestTemplates(t *testing.T) {
	e := LeaveApproved("Asha", "http://x/api/leave-requests/1/document")
	if e.Subject != "Your Leave Application Has Been Approved" || !strings.Contains(e.Body, "http://x/api/leave-requests/1/document") {
		t.Fatalf("approved = %+v", e)
	}
	r := LeaveRejected("Asha", "exams", "Department of Computer Science and Engineering")
	if !strings.Contains(r.Body, "Reason: exams") || !strings.HasPrefix(r.Body, "Dear Asha,") {
		t.Fatalf("rejected = %+v", r)
	}
	if !strings.Contains(AccountApproved("Ravi").Body, "Ravi") || SignupRejected("Ravi").Subject == "" {
		t.Fatal("account templates")
	}
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	if err := (LogSender{Log: zap.New(core)}).Send(context.Background(), "a@cse.edu", "Hi", "body"); err != nil {
		t.Fatal(err)
	}
	if logs.FilterField(zap.String("to", "a@cse.edu")).Len() != 1 {
		t.Fatal("email must be logged")
	}
}

func TestMailer_Message(t *testing.T) {
	m, err := NewMailer(SMTPOptions{Host: "smtp.example.com", Port: 587, User: "dept@cse.edu", Password: "x"})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := m.message("asha@cse.edu", "Subject line", "Dear Asha,\nhello")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Subject: Subject line", "<dept@cse.edu>", "<asha@cse.edu>", "Dear Asha,"} {
		if !strings.Contains(out, want) {
			t.Fatalf("message lacks %q:\n%s", want, out)
		}
	}
}

func TestMailer_BadAddressIsDeliveryError(t *testing.T) {
	m, err := NewMailer(SMTPOptions{Host: "smtp.example.com", Port: 587, From: "dept@cse.edu"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Send(context.Background(), "not an address", "s", "b"); !errors.Is(err, apperr.ErrDelivery) {
		t.Fatalf("want delivery error, got %v", err)
	}
}

// fakeTelegram отвечает на getMe и sendMessage как Bot API.
type fakeTelegram struct {
	mu    sync.Mutex
	sent  map[string]string
	failN string
}

func (f *fakeTelegram) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"leave","username":"leave_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		chat := r.Form.Get("chat_id")
		if chat == f.failN {
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		f.mu.Lock()
		f.sent[chat] = r.Form.Get("text")
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 1, "type": "private"}},
		})
	default:
		http.NotFound(w, r)
	}
}

func newFakeBot(t *testing.T, f *fakeTelegram) *tgbotapi.BotAPI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint("TOKEN", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatal(err)
	}
	return bot
}

func TestTelegramAlerter_OnePerChat(t *testing.T) {
	f := &fakeTelegram{sent: map[string]string{}}
	a := NewTelegramAlerterWithBot(newFakeBot(t, f), []int64{10, 20}, nil)

	if err := a.Alert(context.Background(), "New leave request from Asha"); err != nil {
		t.Fatal(err)
	}
	if len(f.sent) != 2 || f.sent["10"] != "New leave request from Asha" || f.sent["20"] == "" {
		t.Fatalf("sent = %v", f.sent)
	}
}

func TestTelegramAlerter_ContinuesPastFailures(t *testing.T) {
	f := &fakeTelegram{sent: map[string]string{}, failN: "10"}
	a := NewTelegramAlerterWithBot(newFakeBot(t, f), []int64{10, 20}, nil)

	err := a.Alert(context.Background(), "hi")
	if !errors.Is(err, apperr.ErrDelivery) {
		t.Fatalf("want delivery error, got %v", err)
	}
	if f.sent["20"] != "hi" {
		t.Fatal("second chat must still be notified")
	}
}

func TestIsSystemErr(t *testing.T) {
	if !isSystemErr(errors.New("Too Many Requests: 429")) || isSystemErr(errors.New("Bad Request: chat not found")) || isSystemErr(nil) {
		t.Fatal("classification")
	}
}

