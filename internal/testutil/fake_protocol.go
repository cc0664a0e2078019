package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

// FakeProtocol is an in-memory protocol backend. Requests are served by a
// background worker started in Start, so results arrive asynchronously as
// they do with a network backend.
type FakeProtocol struct {
	name   string
	outbox *protocol.Outbox

	// Errors returned by the lifecycle methods.
	SetupErr error
	StartErr error
	StopErr  error

	// OnSetup runs inside Setup when set.
	OnSetup func(ctx context.Context) error

	mu       sync.Mutex
	calls    []string
	chats    map[protocol.ChatID]*protocol.Chat
	messages map[protocol.ChatID][]protocol.Message
	nextMsg  protocol.MessageID
	requests chan func()
	cancel   context.CancelFunc
	wg       *conc.WaitGroup
	running  bool
}

// NewFakeProtocol returns a FakeProtocol named name with no chats.
func NewFakeProtocol(name string) *FakeProtocol {
	return &FakeProtocol{
		name:     name,
		outbox:   protocol.NewOutbox(),
		chats:    make(map[protocol.ChatID]*protocol.Chat),
		messages: make(map[protocol.ChatID][]protocol.Message),
		nextMsg:  1000,
	}
}

// AddChat seeds a chat with the given messages (oldest first).
func (f *FakeProtocol) AddChat(id protocol.ChatID, name string, order int64, texts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := &protocol.Chat{ID: id, Name: name, Order: order}
	for _, text := range texts {
		f.nextMsg++
		msg := protocol.Message{
			ID:         f.nextMsg,
			ChatID:     id,
			SenderName: name,
			Text:       text,
			Time:       time.Unix(order, 0),
		}
		f.messages[id] = append(f.messages[id], msg)
		c.LastMessageID = msg.ID
		c.UnreadCount++
	}
	f.chats[id] = c
}

// Calls returns the recorded method calls in order.
func (f *FakeProtocol) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many times method was called.
func (f *FakeProtocol) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *FakeProtocol) record(method string) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()
}

func (f *FakeProtocol) Name() string { return f.name }

func (f *FakeProtocol) Events() *protocol.Outbox { return f.outbox }

func (f *FakeProtocol) Setup(ctx context.Context) error {
	f.record("Setup")
	if f.OnSetup != nil {
		if err := f.OnSetup(ctx); err != nil {
			return err
		}
	}
	return f.SetupErr
}

func (f *FakeProtocol) Start(ctx context.Context) error {
	f.record("Start")
	if f.StartErr != nil {
		return f.StartErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	f.requests = make(chan func(), 64)
	f.cancel = cancel
	f.wg = conc.NewWaitGroup()
	f.running = true
	reqs := f.requests
	f.mu.Unlock()

	f.wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-reqs:
				fn()
			}
		}
	})
	return nil
}

func (f *FakeProtocol) Stop() error {
	f.record("Stop")
	f.mu.Lock()
	cancel, wg := f.cancel, f.wg
	f.running = false
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		wg.Wait()
	}
	f.outbox.Close()
	return f.StopErr
}

// submit hands fn to the worker, or pushes fail when the fake is not
// running or its queue is full.
func (f *FakeProtocol) submit(fn func(), fail func(error) protocol.Event) {
	f.mu.Lock()
	running, reqs := f.running, f.requests
	f.mu.Unlock()

	if !running {
		f.outbox.Push(fail(errors.ErrNotRunning))
		return
	}
	select {
	case reqs <- fn:
	default:
		f.outbox.Push(fail(errors.ErrQueueFull))
	}
}

func (f *FakeProtocol) result(err error) protocol.Result {
	return protocol.Result{Proto: f.name, Error: err}
}

func (f *FakeProtocol) RequestChats(limit int, postInit bool, cursor protocol.Cursor) {
	f.record("RequestChats")
	f.submit(func() {
		f.mu.Lock()
		all := make([]protocol.Chat, 0, len(f.chats))
		for _, c := range f.chats {
			all = append(all, *c)
		}
		f.mu.Unlock()

		sort.Slice(all, func(i, j int) bool {
			if all[i].Order != all[j].Order {
				return all[i].Order > all[j].Order
			}
			return all[i].ID > all[j].ID
		})

		var page []protocol.Chat
		for _, c := range all {
			if c.Order > cursor.OffsetOrder || (c.Order == cursor.OffsetOrder && c.ID >= cursor.OffsetChat) {
				continue
			}
			if limit > 0 && len(page) >= limit {
				break
			}
			page = append(page, c)
		}

		next := cursor
		if len(page) > 0 {
			last := page[len(page)-1]
			next = protocol.Cursor{OffsetChat: last.ID, OffsetOrder: last.Order}
		}
		f.outbox.Push(protocol.ChatsResult{Result: f.result(nil), Chats: page, Cursor: cursor, Next: next, PostInit: postInit})
	}, func(err error) protocol.Event {
		return protocol.ChatsResult{Result: f.result(err), Cursor: cursor, Next: cursor, PostInit: postInit}
	})
}

func (f *FakeProtocol) RequestChatUpdate(chatID protocol.ChatID) {
	f.record("RequestChatUpdate")
	f.submit(func() {
		f.mu.Lock()
		c, ok := f.chats[chatID]
		var chat protocol.Chat
		if ok {
			chat = *c
		}
		f.mu.Unlock()
		if !ok {
			f.outbox.Push(protocol.ChatUpdated{Result: f.result(errors.ErrUnknownChat), ChatID: chatID})
			return
		}
		f.outbox.Push(protocol.ChatUpdated{Result: f.result(nil), ChatID: chatID, Chat: chat})
	}, func(err error) protocol.Event {
		return protocol.ChatUpdated{Result: f.result(err), ChatID: chatID}
	})
}

func (f *FakeProtocol) RequestMessages(chatID protocol.ChatID, fromMsg protocol.MessageID, limit int) {
	f.record("RequestMessages")
	f.submit(func() {
		f.mu.Lock()
		msgs := f.messages[chatID]
		var out []protocol.Message
		for i := len(msgs) - 1; i >= 0; i-- {
			if fromMsg != protocol.Newest && msgs[i].ID >= fromMsg {
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, msgs[i])
		}
		f.mu.Unlock()
		f.outbox.Push(protocol.MessagesResult{Result: f.result(nil), ChatID: chatID, FromMsg: fromMsg, Messages: out})
	}, func(err error) protocol.Event {
		return protocol.MessagesResult{Result: f.result(err), ChatID: chatID, FromMsg: fromMsg}
	})
}

func (f *FakeProtocol) SendMessage(chatID protocol.ChatID, text string, replyID protocol.MessageID) {
	f.record("SendMessage")
	f.submit(func() {
		f.mu.Lock()
		c, ok := f.chats[chatID]
		if !ok {
			f.mu.Unlock()
			f.outbox.Push(protocol.SendResult{Result: f.result(errors.ErrUnknownChat), ChatID: chatID, Text: text, ReplyID: replyID})
			return
		}
		f.nextMsg++
		msg := protocol.Message{
			ID: f.nextMsg, ChatID: chatID, Text: text, ReplyTo: replyID,
			Outgoing: true, Read: true, Time: time.Now(), SenderName: "me",
		}
		f.messages[chatID] = append(f.messages[chatID], msg)
		c.LastMessageID = msg.ID
		c.Order = msg.Time.UnixMilli()
		f.mu.Unlock()
		f.outbox.Push(protocol.SendResult{Result: f.result(nil), ChatID: chatID, Text: text, ReplyID: replyID, Message: msg})
	}, func(err error) protocol.Event {
		return protocol.SendResult{Result: f.result(err), ChatID: chatID, Text: text, ReplyID: replyID}
	})
}

func (f *FakeProtocol) SendFile(chatID protocol.ChatID, path string) {
	f.record("SendFile")
	f.submit(func() {
		f.outbox.Push(protocol.FileSent{Result: f.result(nil), ChatID: chatID, Path: path})
	}, func(err error) protocol.Event {
		return protocol.FileSent{Result: f.result(err), ChatID: chatID, Path: path}
	})
}

func (f *FakeProtocol) DownloadFile(chatID protocol.ChatID, fileID string) {
	f.record("DownloadFile")
	f.submit(func() {
		f.outbox.Push(protocol.FileDownloaded{Result: f.result(nil), ChatID: chatID, FileID: fileID, Path: fmt.Sprintf("/tmp/%s", fileID)})
	}, func(err error) protocol.Event {
		return protocol.FileDownloaded{Result: f.result(err), ChatID: chatID, FileID: fileID}
	})
}

func (f *FakeProtocol) MarkRead(chatID protocol.ChatID, msgIDs []protocol.MessageID) {
	f.record("MarkRead")
	ids := append([]protocol.MessageID(nil), msgIDs...)
	f.submit(func() {
		f.mu.Lock()
		for i := range f.messages[chatID] {
			for _, id := range ids {
				if f.messages[chatID][i].ID == id {
					f.messages[chatID][i].Read = true
				}
			}
		}
		if c, ok := f.chats[chatID]; ok {
			c.UnreadCount = 0
		}
		f.mu.Unlock()
		f.outbox.Push(protocol.MarkReadResult{Result: f.result(nil), ChatID: chatID, IDs: ids})
	}, func(err error) protocol.Event {
		return protocol.MarkReadResult{Result: f.result(err), ChatID: chatID, IDs: ids}
	})
}

var _ protocol.Protocol = (*FakeProtocol)(nil)
