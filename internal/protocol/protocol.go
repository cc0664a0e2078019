// Package protocol defines the contract every chat backend implements and
// the types that travel between backends and the UI.
//
// Data operations are asynchronous: a call enqueues work and returns at
// once. Results, including failures, arrive later as [Event] values on the
// protocol's [Outbox]. Nothing on the data path returns an error
// synchronously and nothing is dropped: a backend that cannot take a request
// pushes a failure event for it.
package protocol

import (
	"context"
	"math"
	"time"
)

// ChatID identifies a chat within one protocol.
type ChatID int64

// MessageID identifies a message within one protocol.
type MessageID int64

// NoReply is the reply id of a message that does not reply to anything.
const NoReply MessageID = 0

// Newest, passed as fromMsg to RequestMessages, asks for the most recent
// messages of a chat.
const Newest MessageID = 0

// DefaultOffsetOrder is the chat ordering value meaning "start from the most
// recent chat".
const DefaultOffsetOrder int64 = math.MaxInt64 - 1

// Cursor is a pagination position for chat listing. It is opaque outside
// the protocol that produced it.
type Cursor struct {
	OffsetChat  ChatID
	OffsetOrder int64
}

// DefaultCursor returns the cursor for the first page, newest chats first.
func DefaultCursor() Cursor {
	return Cursor{OffsetChat: 0, OffsetOrder: DefaultOffsetOrder}
}

// IsDefault reports whether c is the first page cursor.
func (c Cursor) IsDefault() bool {
	return c == DefaultCursor()
}

// Chat is a conversation as listed in the chat list. Order is the
// backend's sort key; larger is more recent.
type Chat struct {
	ID            ChatID
	Name          string
	Order         int64
	UnreadCount   int
	LastMessageID MessageID
}

// File is an attachment of a message.
type File struct {
	ID        string
	Name      string
	Size      int64
	LocalPath string // set once downloaded
}

// Message is a single chat message.
type Message struct {
	ID         MessageID
	ChatID     ChatID
	SenderID   int64
	SenderName string
	Text       string
	Time       time.Time
	ReplyTo    MessageID
	Outgoing   bool
	Read       bool
	File       *File
}

// Protocol is a chat backend. Implementations must be safe for use from
// the UI goroutine and the orchestrator goroutine concurrently.
type Protocol interface {
	// Name returns the stable lowercase identifier, also the prefix of the
	// protocol's enablement key in main.conf.
	Name() string

	// Setup runs interactive first-time account configuration. It is only
	// called in setup mode and never together with Start.
	Setup(ctx context.Context) error

	// Start begins background work and returns without waiting for it.
	Start(ctx context.Context) error

	// Stop cancels and joins every goroutine started by Start, then closes
	// the outbox. No event is observable after Stop returns.
	Stop() error

	// Events returns the outbox results are delivered on.
	Events() *Outbox

	RequestChats(limit int, postInit bool, cursor Cursor)
	RequestChatUpdate(chatID ChatID)
	RequestMessages(chatID ChatID, fromMsg MessageID, limit int)
	SendMessage(chatID ChatID, text string, replyID MessageID)
	SendFile(chatID ChatID, path string)
	DownloadFile(chatID ChatID, fileID string)
	MarkRead(chatID ChatID, msgIDs []MessageID)
}
