package convo

import (
	"fmt"
	"testing"

	"github.com/gamepal-app/gamepal/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddAndRecent(t *testing.T) {
	s := openTestStore(t)

	base := int64(1700000000000)
	for i := 0; i < 5; i++ {
		_, err := s.Add(types.ChatMessage{
			GameID:    "celeste",
			Role:      "user",
			Content:   fmt.Sprintf("msg-%d", i),
			Timestamp: base + int64(i),
		})
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	got, err := s.Recent("celeste", 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"msg-2", "msg-3", "msg-4"} {
		if got[i].Content != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestStore_AddFillsIDAndTimestamp(t *testing.T) {
	s := openTestStore(t)

	msg, err := s.Add(types.ChatMessage{GameID: "celeste", Role: "assistant", Content: "hi"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if msg.ID == "" {
		t.Error("ID not assigned")
	}
	if msg.Timestamp == 0 {
		t.Error("Timestamp not assigned")
	}
}

func TestStore_AddRejectsMissingGame(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Add(types.ChatMessage{Content: "orphan"}); err == nil {
		t.Fatal("Add() error = nil for message without game id")
	}
}

func TestStore_GamesAreIsolated(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Add(types.ChatMessage{GameID: "celeste", Content: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(types.ChatMessage{GameID: "hades", Content: "b"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent("celeste", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "a" {
		t.Errorf("celeste messages = %+v", got)
	}
}

func TestStore_Clear(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.Add(types.ChatMessage{GameID: "celeste", Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear("celeste"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	got, err := s.Recent("celeste", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("messages after Clear = %d, want 0", len(got))
	}
}
