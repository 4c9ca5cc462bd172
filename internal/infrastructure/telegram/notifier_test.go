package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"zenpress/internal/domain"
)

func TestSendDraft(t *testing.T) {
	t.Parallel()

	var gotChatID, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottoken-123/sendMessage") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChatID = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 777}}`))
	}))
	defer server.Close()

	notifier := NewNotifier("token-123", "chat-42")
	notifier.baseURL = server.URL
	notifier.client = server.Client()

	article := domain.Article{URL: "https://habr.com/ru/articles/100/"}
	draft := domain.Draft{Title: "Заголовок", Lead: "Вводка", Body: "Текст"}

	messageID, err := notifier.SendDraft(context.Background(), article, draft)
	if err != nil {
		t.Fatalf("SendDraft error: %v", err)
	}
	if messageID != "777" {
		t.Fatalf("unexpected message id: %s", messageID)
	}
	if gotChatID != "chat-42" {
		t.Fatalf("unexpected chat id: %s", gotChatID)
	}
	if !strings.Contains(gotText, "Заголовок") || !strings.Contains(gotText, "Источник: https://habr.com/ru/articles/100/") {
		t.Fatalf("unexpected message text: %q", gotText)
	}
}

func TestSendDraftDeliveryFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	notifier := NewNotifier("token", "chat")
	notifier.baseURL = server.URL
	notifier.client = server.Client()

	if _, err := notifier.SendDraft(context.Background(), domain.Article{}, domain.Draft{}); err == nil {
		t.Fatal("expected error for failed delivery")
	}
}

func TestSendDraftMisconfigured(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier("", "")
	if _, err := notifier.SendDraft(context.Background(), domain.Article{}, domain.Draft{}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestComposeMessage(t *testing.T) {
	t.Parallel()

	got := ComposeMessage("Title", "Lead", "Body", "https://example.org/a")
	want := "Title\n\nLead\n\nBody\n\nИсточник: https://example.org/a"
	if got != want {
		t.Fatalf("unexpected message: %q", got)
	}

	// Empty parts are dropped, the source link always stays.
	got = ComposeMessage("Title", "", "", "https://example.org/a")
	want = "Title\n\nИсточник: https://example.org/a"
	if got != want {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestComposeMessageTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ё", 5000)
	got := ComposeMessage("T", "", long, "https://example.org/a")
	if runes := []rune(got); len(runes) != messageLimit {
		t.Fatalf("expected %d runes, got %d", messageLimit, len(runes))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated message lacks ellipsis: %q", got[len(got)-12:])
	}
}
