package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/akarpova/embra/internal/storage"
)

func TestSQLiteReconcileDropsPlaceholderAfterReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embra.db")

	db, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	seed := []Message{
		{ID: "u1", ConversationID: "conv1", Role: RoleUser, Content: "hello", CreatedAt: time.Now().UTC()},
		{ID: "a1", ConversationID: "conv1", Role: RoleAssistant, Content: "", CreatedAt: time.Now().UTC()},
	}
	for _, m := range seed {
		if err := store.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}
	// The process dies between the placeholder write and finalization.
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	store, err = NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore after reopen failed: %v", err)
	}

	n, err := store.DeleteEmptyAssistantMessages(ctx)
	if err != nil {
		t.Fatalf("DeleteEmptyAssistantMessages failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("reconciled %d messages, want 1", n)
	}
	msgs, err := store.ListMessages(ctx, "conv1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "u1" {
		t.Fatalf("msgs = %+v, want only the user message", msgs)
	}
}

func TestInMemoryDeleteEmptyAssistantMessages(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	seed := []Message{
		{ID: "u1", ConversationID: "conv1", Role: RoleUser, Content: "hi"},
		{ID: "a1", ConversationID: "conv1", Role: RoleAssistant, Content: ""},
		{ID: "a2", ConversationID: "conv1", Role: RoleAssistant, Content: "a real reply"},
		{ID: "a3", ConversationID: "conv2", Role: RoleAssistant, Content: ""},
	}
	for _, m := range seed {
		if err := store.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	n, err := store.DeleteEmptyAssistantMessages(ctx)
	if err != nil {
		t.Fatalf("DeleteEmptyAssistantMessages failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("reconciled %d messages, want 2", n)
	}
	msgs, _ := store.ListMessages(ctx, "conv1")
	if len(msgs) != 2 || msgs[0].ID != "u1" || msgs[1].ID != "a2" {
		t.Fatalf("conv1 msgs = %+v, want u1 and a2", msgs)
	}
	msgs, _ = store.ListMessages(ctx, "conv2")
	if len(msgs) != 0 {
		t.Fatalf("conv2 msgs = %+v, want empty", msgs)
	}
}
