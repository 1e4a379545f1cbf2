package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		tmpDir := t.TempDir()

		store, err := NewStore(tmpDir)
		if err != nil {
			t.Fatalf("NewStore failed: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(filepath.Join(tmpDir, "conversations.db")); os.IsNotExist(err) {
			t.Error("database file not created")
		}
		if err := store.Health(); err != nil {
			t.Errorf("health check failed: %v", err)
		}
	})

	t.Run("idempotent schema", func(t *testing.T) {
		tmpDir := t.TempDir()

		store1, err := NewStore(tmpDir)
		if err != nil {
			t.Fatalf("first NewStore failed: %v", err)
		}
		store1.Close()

		store2, err := NewStore(tmpDir)
		if err != nil {
			t.Fatalf("second NewStore failed: %v", err)
		}
		store2.Close()
	})
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.AppendExchange(ctx, "user-1",
			fmt.Sprintf("question %d", i),
			fmt.Sprintf("answer %d", i),
			Metadata{Intent: "general", Provider: "gemini", Verified: i == 2, Confidence: 0.9},
		)
		if err != nil {
			t.Fatalf("AppendExchange failed: %v", err)
		}
	}

	exchanges, err := store.Recent(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(exchanges))
	}

	// Oldest first within the window: the last two appended.
	if exchanges[0].UserMessage != "question 1" {
		t.Errorf("expected question 1 first, got %q", exchanges[0].UserMessage)
	}
	if exchanges[1].UserMessage != "question 2" {
		t.Errorf("expected question 2 last, got %q", exchanges[1].UserMessage)
	}
	if !exchanges[1].Verified {
		t.Error("expected last exchange to be verified")
	}
	if exchanges[1].Provider != "gemini" {
		t.Errorf("unexpected provider %q", exchanges[1].Provider)
	}
}

func TestRecentIsolatesUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendExchange(ctx, "user-a", "hi", "hello", Metadata{}); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}
	if _, err := store.AppendExchange(ctx, "user-b", "hey", "namaste", Metadata{}); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	exchanges, err := store.Recent(ctx, "user-a", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(exchanges) != 1 {
		t.Fatalf("expected 1 exchange for user-a, got %d", len(exchanges))
	}
	if exchanges[0].AssistantMessage != "hello" {
		t.Errorf("unexpected assistant message %q", exchanges[0].AssistantMessage)
	}

	count, err := store.CountForUser(ctx, "user-b")
	if err != nil {
		t.Fatalf("CountForUser failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 exchange for user-b, got %d", count)
	}
}

func TestRecentMessagesAlternate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendExchange(ctx, "user-1", "how are you", "doing well", Metadata{}); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	msgs, err := store.RecentMessages(ctx, "user-1", 5)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "how are you" {
		t.Errorf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "doing well" {
		t.Errorf("unexpected second message %+v", msgs[1])
	}
}

func TestAppendExchangeRequiresUser(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.AppendExchange(context.Background(), "", "q", "a", Metadata{}); err == nil {
		t.Error("expected error for empty user id")
	}
}
