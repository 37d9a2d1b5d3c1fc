package threadstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alphahumanxyz/courier/internal/stream"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func msg(id, thread, sender, content string, at time.Time) stream.ThreadMessage {
	return stream.ThreadMessage{
		ID: id, ThreadID: thread, Sender: sender, Content: content, CreatedAt: at,
	}
}

func TestAppendAndMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, m := range []stream.ThreadMessage{
		msg("m1", "t1", "user", "hello", base),
		msg("m2", "t1", "agent", "hi there", base.Add(time.Second)),
		msg("m3", "t2", "user", "other thread", base.Add(2*time.Second)),
	} {
		if err := s.Append(ctx, m); err != nil {
			t.Fatalf("Append(#%d): %v", i, err)
		}
	}

	got, err := s.Messages(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("order = %q, %q, want m1, m2", got[0].ID, got[1].ID)
	}
	if got[1].Sender != "agent" || got[1].Content != "hi there" {
		t.Fatalf("round trip = %+v", got[1])
	}
}

func TestAppendIgnoresRedelivery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := msg("m1", "t1", "agent", "once", time.Now().UTC())

	if err := s.Append(ctx, m); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := s.Append(ctx, m); err != nil {
		t.Fatalf("redelivered Append: %v", err)
	}

	n, err := s.Count(ctx, "t1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestAppendFillsMissingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, stream.ThreadMessage{ThreadID: "t1", Sender: "agent", Content: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Messages(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID == "" {
		t.Fatal("id not generated")
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("created_at not filled")
	}
}

func TestMessagesLimitKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		m := msg("", "t1", "user", "msg", base.Add(time.Duration(i)*time.Second))
		m.ID = string(rune('a' + i))
		if err := s.Append(ctx, m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Messages(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "d" || got[1].ID != "e" {
		t.Fatalf("ids = %q, %q, want d, e", got[0].ID, got[1].ID)
	}
}

func TestThreadsOrderedByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s.Append(ctx, msg("m1", "old", "user", "x", base))
	s.Append(ctx, msg("m2", "new", "user", "y", base.Add(time.Hour)))

	ids, err := s.Threads(ctx)
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(ids) != 2 || ids[0] != "new" || ids[1] != "old" {
		t.Fatalf("threads = %v, want [new old]", ids)
	}
}
