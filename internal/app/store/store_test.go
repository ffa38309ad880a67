package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"chatrelay/internal/app/message"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	for _, dsn := range []string{"", "memory://", "MEMORY://local"} {
		s, err := Open(ctx, dsn, "chatrelay")
		if err != nil {
			t.Fatalf("Open(%q): %v", dsn, err)
		}
		if _, ok := s.(*Memory); !ok {
			t.Errorf("Open(%q) = %T, want *Memory", dsn, s)
		}
	}

	if _, err := Open(ctx, "mysql://localhost/db", "chatrelay"); err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Errorf("expected unsupported scheme error, got %v", err)
	}
}

func TestMemoryRecentBroadcastsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := message.New("alice", "", message.Body{Text: string(rune('a' + i))}, "", base.Add(time.Duration(i)*time.Minute))
		if err := m.SaveBroadcast(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	sys := message.NewSystem("alice joined", base.Add(time.Hour))
	_ = m.SaveBroadcast(ctx, sys)

	got, err := m.FindRecentBroadcasts(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"e", "d", "c"} {
		if got[i].Text != want {
			t.Errorf("got[%d].Text = %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestMemorySaveBroadcastIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := message.New("alice", "", message.Body{Text: "hi"}, "", time.Now())

	_ = m.SaveBroadcast(ctx, rec)
	_ = m.SaveBroadcast(ctx, rec)

	if n := len(m.Broadcasts()); n != 1 {
		t.Errorf("stored %d records, want 1", n)
	}
}

func TestMemoryEditAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := message.New("alice", "", message.Body{Text: "hi"}, "", time.Now())
	_ = m.SaveBroadcast(ctx, rec)

	_ = m.UpdateBroadcast(ctx, rec.ID, "hello")
	stored := m.Broadcasts()[0]
	if stored.Text != "hello" || !stored.IsEdited {
		t.Errorf("after update: %+v", stored)
	}

	_ = m.DeleteBroadcast(ctx, rec.ID)
	if n := len(m.Broadcasts()); n != 0 {
		t.Errorf("after delete: %d records", n)
	}
}

func TestMemoryDirectThreadsShareKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	_ = m.SaveDirect(ctx, message.NewConversationKey("Alice", "bob"), message.New("Alice", "bob", message.Body{Text: "1"}, "", now))
	_ = m.SaveDirect(ctx, message.NewConversationKey("bob", "alice"), message.New("bob", "Alice", message.Body{Text: "2"}, "", now))

	thread := m.DirectThread(message.NewConversationKey("ALICE", "Bob"))
	if len(thread) != 2 {
		t.Fatalf("thread has %d records, want 2", len(thread))
	}
	if thread[0].Kind != message.KindDirect {
		t.Errorf("kind = %q, want direct", thread[0].Kind)
	}
}

func TestMemoryUsersAndConfig(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seen := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	_ = m.UpsertUser(ctx, "Alice", "avatars/a.png", seen)
	_ = m.UpsertUser(ctx, "bob", "", seen)

	avatars, _ := m.LoadAvatars(ctx)
	if len(avatars) != 1 || avatars["Alice"] != "avatars/a.png" {
		t.Errorf("avatars = %v", avatars)
	}
	if got, ok := m.LastSeen("alice"); !ok || !got.Equal(seen) {
		t.Errorf("LastSeen = %v, %v", got, ok)
	}

	if _, found, _ := m.GetConfig(ctx, "motd"); found {
		t.Error("expected motd to be missing")
	}
	_ = m.UpsertConfig(ctx, "motd", "Hello")
	if v, found, _ := m.GetConfig(ctx, "motd"); !found || v != "Hello" {
		t.Errorf("GetConfig = %q, %v", v, found)
	}
}
