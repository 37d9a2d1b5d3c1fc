package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alphahumanxyz/courier/internal/messenger"
	"github.com/alphahumanxyz/courier/internal/snapshot"
)

func newTestRegistry(api *fakeAPI) *Registry {
	snap := snapshot.New(api, nil)
	return NewRegistry(api, snap, nil)
}

func TestListIsSortedAndOmitsHandlers(t *testing.T) {
	r := newTestRegistry(&fakeAPI{})
	list := r.List()
	if len(list) != r.Len() {
		t.Fatalf("List() returned %d entries, registry has %d", len(list), r.Len())
	}
	for i := 1; i < len(list); i++ {
		if list[i-1]["name"].(string) >= list[i]["name"].(string) {
			t.Fatalf("List() not name-sorted at %d: %v >= %v", i, list[i-1]["name"], list[i]["name"])
		}
	}
	for _, d := range list {
		if d["name"] == "" || d["description"] == "" || d["inputSchema"] == nil {
			t.Fatalf("incomplete descriptor: %v", d)
		}
		for k := range d {
			if k != "name" && k != "description" && k != "inputSchema" {
				t.Fatalf("descriptor leaks field %q", k)
			}
		}
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	r := newTestRegistry(&fakeAPI{})
	defer func() {
		if recover() == nil {
			t.Fatal("duplicate Register did not panic")
		}
	}()
	r.Register(&Tool{Name: "get_chat"})
}

func TestGetUnknownReturnsNil(t *testing.T) {
	r := newTestRegistry(&fakeAPI{})
	if tl := r.Get("no_such_tool"); tl != nil {
		t.Fatalf("Get(unknown) = %v, want nil", tl)
	}
}

func TestGetChatResolvesUsername(t *testing.T) {
	api := &fakeAPI{
		resolveUsername: func(_ context.Context, username string) (int64, error) {
			if username != "dev_chat" {
				t.Fatalf("resolve %q", username)
			}
			return 99, nil
		},
		getChat: func(_ context.Context, chatID int64) (*messenger.Chat, error) {
			if chatID != 99 {
				t.Fatalf("getChat(%d)", chatID)
			}
			return &messenger.Chat{ID: 99, Kind: messenger.ChatGroup, Title: "Dev Chat", UnreadCount: 3}, nil
		},
	}
	r := newTestRegistry(api)

	out, err := r.Get("get_chat").Handler(context.Background(), map[string]any{"chat_id": "@dev_chat"})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !strings.Contains(out, "Dev Chat") || !strings.Contains(out, "Unread: 3") {
		t.Fatalf("output = %q", out)
	}
}

func TestSendMessagePassesOptions(t *testing.T) {
	var gotOpts messenger.SendOptions
	api := &fakeAPI{
		sendMessage: func(_ context.Context, chatID int64, text string, opts messenger.SendOptions) (*messenger.Message, error) {
			gotOpts = opts
			return &messenger.Message{ID: 7, ChatID: chatID, Text: text}, nil
		},
	}
	r := newTestRegistry(api)

	out, err := r.Get("send_message").Handler(context.Background(), map[string]any{
		"chat_id":  float64(5),
		"text":     "**hi**",
		"markdown": true,
		"reply_to": float64(3),
		"silent":   true,
	})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !gotOpts.Markdown || gotOpts.ReplyTo != 3 || !gotOpts.Silent {
		t.Fatalf("opts = %+v", gotOpts)
	}
	if !strings.Contains(out, "message 7") {
		t.Fatalf("output = %q", out)
	}
}

func TestGetMessagesFlattensFormattedContent(t *testing.T) {
	api := &fakeAPI{
		getMessages: func(_ context.Context, chatID int64, limit int) ([]messenger.Message, error) {
			if chatID != 7 || limit != 20 {
				t.Errorf("GetMessages(%d, %d), want (7, 20)", chatID, limit)
			}
			return []messenger.Message{
				{ID: 1, Sender: "Ada", Text: "<p>Hello <b>world</b></p>"},
				{ID: 2, Sender: "Grace", Text: "plain reply"},
			}, nil
		},
	}
	r := newTestRegistry(api)

	out, err := r.Get("get_messages").Handler(context.Background(), map[string]any{"chat_id": "7"})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !strings.Contains(out, "Hello world") {
		t.Fatalf("output = %q, want flattened markdown-rendered text", out)
	}
	if strings.Contains(out, "<p>") || strings.Contains(out, "<b>") {
		t.Fatalf("output still carries markup: %q", out)
	}
	if !strings.Contains(out, "plain reply") {
		t.Fatalf("output = %q, want plain message preserved", out)
	}
}

func TestHandlerValidationError(t *testing.T) {
	r := newTestRegistry(&fakeAPI{})

	_, err := r.Get("send_message").Handler(context.Background(), map[string]any{"chat_id": float64(5)})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if !strings.Contains(ve.Message, "text") {
		t.Fatalf("message %q does not name the missing argument", ve.Message)
	}
}

func TestSendPollOptionBounds(t *testing.T) {
	r := newTestRegistry(&fakeAPI{})
	_, err := r.Get("send_poll").Handler(context.Background(), map[string]any{
		"chat_id":  float64(1),
		"question": "q",
		"options":  []any{"only one"},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
}

func TestExportContactVCard(t *testing.T) {
	api := &fakeAPI{
		getContact: func(_ context.Context, userID int64) (*messenger.Contact, error) {
			return &messenger.Contact{UserID: userID, FirstName: "Ada", LastName: "Lovelace", Phone: "+44123"}, nil
		},
	}
	r := newTestRegistry(api)

	out, err := r.Get("export_contact_vcard").Handler(context.Background(), map[string]any{"user_id": float64(12)})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !strings.Contains(out, "BEGIN:VCARD") || !strings.Contains(out, "Ada Lovelace") {
		t.Fatalf("vcard = %q", out)
	}
}

func TestFindChatUsesSnapshot(t *testing.T) {
	api := &fakeAPI{}
	snap := snapshot.New(api, nil)
	snap.Seed(nil, []messenger.Chat{
		{ID: 1, Kind: messenger.ChatGroup, Title: "Dev Chat"},
		{ID: 2, Kind: messenger.ChatPrivate, Title: "Ada"},
	}, nil)
	r := NewRegistry(api, snap, nil)

	out, err := r.Get("find_chat").Handler(context.Background(), map[string]any{"title": "dev"})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !strings.Contains(out, "Dev Chat") {
		t.Fatalf("output = %q", out)
	}
}

func TestDiagnosticCodeStable(t *testing.T) {
	a := DiagnosticCode("send_message")
	b := DiagnosticCode("send_message")
	if a != b {
		t.Fatalf("codes differ: %q vs %q", a, b)
	}
	if a == DiagnosticCode("get_chat") {
		t.Fatal("distinct tools share a code")
	}
	if !strings.HasPrefix(a, "E") || len(a) != 5 {
		t.Fatalf("code shape = %q", a)
	}
}

func TestExecutionErrorMessageOmitsCause(t *testing.T) {
	e := &ExecutionError{Tool: "send_message", Err: errors.New("pq: connection refused on 10.0.0.3")}
	if strings.Contains(e.Message(), "10.0.0.3") {
		t.Fatalf("message leaks internals: %q", e.Message())
	}
	if !strings.Contains(e.Message(), DiagnosticCode("send_message")) {
		t.Fatalf("message lacks diagnostic code: %q", e.Message())
	}
}
