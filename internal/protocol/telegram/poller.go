package telegram

import (
	"context"
	"time"

	"github.com/Iron-Ham/nchat/internal/protocol"
)

// poll long-polls getUpdates until ctx is done. Connectivity changes are
// reported as StatusChanged events, and failures back off exponentially.
func (t *Telegram) poll(ctx context.Context) {
	client, cache, _ := t.deps()
	offset, err := cache.Offset(ctx)
	if err != nil {
		t.logger.Warn("failed to read update offset", "error", err)
	}

	online := false
	delay := t.retryDelay
	backoff := func(err error) bool {
		t.logger.Warn("telegram poll failed", "error", err, "retry_in", delay)
		if online {
			online = false
			t.outbox.Push(protocol.StatusChanged{Result: t.result("poll", nil), Online: false, Detail: err.Error()})
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
		return true
	}

	for ctx.Err() == nil {
		if _, _, self := t.deps(); self.ID == 0 {
			me, err := client.GetMe(ctx)
			if err != nil {
				if ctx.Err() != nil || !backoff(err) {
					return
				}
				continue
			}
			t.mu.Lock()
			t.self = me
			t.mu.Unlock()
			t.logger.Info("telegram authorized", "bot", me.Username)
		}

		updates, err := client.GetUpdates(ctx, offset, t.pollTimeout)
		if err != nil {
			if ctx.Err() != nil || !backoff(err) {
				return
			}
			continue
		}
		delay = t.retryDelay
		if !online {
			online = true
			t.outbox.Push(protocol.StatusChanged{Result: t.result("poll", nil), Online: true})
		}

		for _, u := range updates {
			if m := u.Msg(); m != nil {
				t.receive(ctx, m)
			}
			offset = u.UpdateID + 1
		}
		if len(updates) > 0 {
			if err := cache.SetOffset(ctx, offset); err != nil && ctx.Err() == nil {
				t.logger.Warn("failed to save update offset", "error", err)
			}
		}
	}
}

// receive caches an incoming message and announces it with the refreshed
// chat.
func (t *Telegram) receive(ctx context.Context, m *Message) {
	msg, err := t.store(ctx, m, false)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("failed to cache message", "chat", m.Chat.ID, "error", err)
		}
		return
	}
	t.outbox.Push(protocol.NewMessage{Result: t.result("poll", nil), Message: msg})

	_, cache, _ := t.deps()
	chat, err := cache.GetChat(ctx, msg.ChatID)
	if err != nil {
		return
	}
	t.outbox.Push(protocol.ChatUpdated{Result: t.result("poll", nil), ChatID: msg.ChatID, Chat: chat})
}
