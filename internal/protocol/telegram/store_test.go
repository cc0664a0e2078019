package telegram

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), cacheFileName))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func chatIDs(chats []protocol.Chat) []protocol.ChatID {
	ids := make([]protocol.ChatID, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
	}
	return ids
}

func TestCache_ListChatsPaging(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	for i, id := range []protocol.ChatID{1, 2, 3} {
		msg := protocol.Message{ID: 1, ChatID: id, Text: "m", Time: time.Unix(int64(100*(i+1)), 0)}
		if err := c.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	page, err := c.ListChats(ctx, protocol.DefaultCursor(), 2)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if diff := cmp.Diff([]protocol.ChatID{3, 2}, chatIDs(page)); diff != "" {
		t.Errorf("first page mismatch (-want +got):\n%s", diff)
	}

	last := page[len(page)-1]
	next := protocol.Cursor{OffsetChat: last.ID, OffsetOrder: last.Order}
	page, err = c.ListChats(ctx, next, 2)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if diff := cmp.Diff([]protocol.ChatID{1}, chatIDs(page)); diff != "" {
		t.Errorf("second page mismatch (-want +got):\n%s", diff)
	}

	all, err := c.ListChats(ctx, protocol.DefaultCursor(), 0)
	if err != nil || len(all) != 3 {
		t.Errorf("unlimited ListChats = %d chats, %v", len(all), err)
	}
}

func TestCache_SameOrderTieBreak(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	ts := time.Unix(500, 0)
	for _, id := range []protocol.ChatID{10, 20} {
		if err := c.SaveMessage(ctx, protocol.Message{ID: 1, ChatID: id, Time: ts}); err != nil {
			t.Fatal(err)
		}
	}

	first, _ := c.ListChats(ctx, protocol.DefaultCursor(), 1)
	if len(first) != 1 || first[0].ID != 20 {
		t.Fatalf("first = %v, want chat 20", chatIDs(first))
	}
	second, _ := c.ListChats(ctx, protocol.Cursor{OffsetChat: 20, OffsetOrder: first[0].Order}, 1)
	if len(second) != 1 || second[0].ID != 10 {
		t.Errorf("second = %v, want chat 10", chatIDs(second))
	}
}

func TestCache_MessagesAndRead(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	for id := protocol.MessageID(1); id <= 5; id++ {
		msg := protocol.Message{ID: id, ChatID: 9, Text: "t", Time: time.Unix(int64(id), 0)}
		if err := c.SaveMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := c.Messages(ctx, 9, 4, 2)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != 3 || msgs[1].ID != 2 {
		t.Errorf("Messages before 4 = %+v, want ids [3 2]", msgs)
	}

	chat, err := c.GetChat(ctx, 9)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if chat.UnreadCount != 5 || chat.LastMessageID != 5 {
		t.Errorf("chat = %+v", chat)
	}

	if err := c.MarkRead(ctx, 9, []protocol.MessageID{4, 5}); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	chat, _ = c.GetChat(ctx, 9)
	if chat.UnreadCount != 3 {
		t.Errorf("UnreadCount after MarkRead = %d, want 3", chat.UnreadCount)
	}

	if _, err := c.GetChat(ctx, 404); !errors.Is(err, errors.ErrUnknownChat) {
		t.Errorf("GetChat unknown = %v, want ErrUnknownChat", err)
	}
}

func TestCache_FilesAndOffset(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	msg := protocol.Message{
		ID: 1, ChatID: 2, Time: time.Unix(1, 0),
		File: &protocol.File{ID: "fid", Name: "a.txt", Size: 3},
	}
	if err := c.SaveMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if err := c.SetLocalPath(ctx, 2, "fid", "/tmp/a.txt"); err != nil {
		t.Fatal(err)
	}
	got, err := c.FindFile(ctx, 2, "fid")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	want := &protocol.File{ID: "fid", Name: "a.txt", Size: 3, LocalPath: "/tmp/a.txt"}
	if diff := cmp.Diff(want, got.File); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}

	if off, err := c.Offset(ctx); err != nil || off != 0 {
		t.Errorf("initial Offset = %d, %v", off, err)
	}
	if err := c.SetOffset(ctx, 77); err != nil {
		t.Fatal(err)
	}
	if off, _ := c.Offset(ctx); off != 77 {
		t.Errorf("Offset = %d, want 77", off)
	}
}
