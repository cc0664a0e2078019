package telegram

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id    INTEGER PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	ord   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	chat_id     INTEGER NOT NULL,
	id          INTEGER NOT NULL,
	sender_id   INTEGER NOT NULL DEFAULT 0,
	sender_name TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	time        INTEGER NOT NULL,
	reply_to    INTEGER NOT NULL DEFAULT 0,
	outgoing    INTEGER NOT NULL DEFAULT 0,
	is_read     INTEGER NOT NULL DEFAULT 0,
	file_id     TEXT NOT NULL DEFAULT '',
	file_name   TEXT NOT NULL DEFAULT '',
	file_size   INTEGER NOT NULL DEFAULT 0,
	local_path  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (chat_id, id)
);
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

const offsetKey = "update_offset"

// Cache persists chats and messages seen by the bot. The Bot API has no
// history endpoint, so listing and paging are served from here.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// The worker and poller share the handle; one connection serializes
	// writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// UpsertChat records chat metadata, keeping the existing order.
func (c *Cache) UpsertChat(ctx context.Context, id protocol.ChatID, name string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO chats (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		int64(id), name)
	if err != nil {
		return fmt.Errorf("upsert chat %d: %w", id, err)
	}
	return nil
}

// SaveMessage stores msg and moves its chat to the top of the list.
func (c *Cache) SaveMessage(ctx context.Context, msg protocol.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var fileID, fileName string
	var fileSize int64
	if msg.File != nil {
		fileID, fileName, fileSize = msg.File.ID, msg.File.Name, msg.File.Size
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (chat_id, id, sender_id, sender_name, text, time, reply_to, outgoing, is_read, file_id, file_name, file_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id, id) DO UPDATE SET text = excluded.text`,
		int64(msg.ChatID), int64(msg.ID), msg.SenderID, msg.SenderName, msg.Text,
		msg.Time.UnixMilli(), int64(msg.ReplyTo), boolInt(msg.Outgoing), boolInt(msg.Read),
		fileID, fileName, fileSize)
	if err != nil {
		return fmt.Errorf("save message %d: %w", msg.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chats (id, ord) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET ord = MAX(ord, excluded.ord)`,
		int64(msg.ChatID), msg.Time.UnixMilli())
	if err != nil {
		return fmt.Errorf("bump chat %d: %w", msg.ChatID, err)
	}
	return tx.Commit()
}

const chatColumns = `
	c.id, c.name, c.ord,
	(SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id AND m.is_read = 0 AND m.outgoing = 0),
	COALESCE((SELECT MAX(m.id) FROM messages m WHERE m.chat_id = c.id), 0)`

func scanChat(sc interface{ Scan(...any) error }) (protocol.Chat, error) {
	var ch protocol.Chat
	var id, last int64
	if err := sc.Scan(&id, &ch.Name, &ch.Order, &ch.UnreadCount, &last); err != nil {
		return protocol.Chat{}, err
	}
	ch.ID = protocol.ChatID(id)
	ch.LastMessageID = protocol.MessageID(last)
	return ch, nil
}

// ListChats returns up to limit chats strictly after cursor, most recent
// first. A limit of zero or less returns all remaining chats.
func (c *Cache) ListChats(ctx context.Context, cursor protocol.Cursor, limit int) ([]protocol.Chat, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT`+chatColumns+`
		 FROM chats c
		 WHERE c.ord < ? OR (c.ord = ? AND c.id < ?)
		 ORDER BY c.ord DESC, c.id DESC
		 LIMIT ?`,
		cursor.OffsetOrder, cursor.OffsetOrder, chatBound(cursor), limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []protocol.Chat
	for rows.Next() {
		ch, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, ch)
	}
	return chats, rows.Err()
}

// chatBound is the exclusive chat id bound for rows sharing the cursor's
// order. The default cursor has no chat bound.
func chatBound(cursor protocol.Cursor) int64 {
	if cursor.IsDefault() {
		return int64(^uint64(0) >> 1)
	}
	return int64(cursor.OffsetChat)
}

// GetChat returns one chat, or errors.ErrUnknownChat.
func (c *Cache) GetChat(ctx context.Context, id protocol.ChatID) (protocol.Chat, error) {
	row := c.db.QueryRowContext(ctx, `SELECT`+chatColumns+` FROM chats c WHERE c.id = ?`, int64(id))
	ch, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.Chat{}, fmt.Errorf("chat %d: %w", id, errors.ErrUnknownChat)
	}
	if err != nil {
		return protocol.Chat{}, fmt.Errorf("get chat %d: %w", id, err)
	}
	return ch, nil
}

const messageColumns = `id, chat_id, sender_id, sender_name, text, time, reply_to, outgoing, is_read, file_id, file_name, file_size, local_path`

func scanMessage(sc interface{ Scan(...any) error }) (protocol.Message, error) {
	var (
		id, chatID, ms, replyTo, fileSize int64
		outgoing, read                    int
		fileID, fileName, localPath       string
		m                                 protocol.Message
	)
	err := sc.Scan(&id, &chatID, &m.SenderID, &m.SenderName, &m.Text, &ms, &replyTo,
		&outgoing, &read, &fileID, &fileName, &fileSize, &localPath)
	if err != nil {
		return protocol.Message{}, err
	}
	m.ID = protocol.MessageID(id)
	m.ChatID = protocol.ChatID(chatID)
	m.Time = time.UnixMilli(ms)
	m.ReplyTo = protocol.MessageID(replyTo)
	m.Outgoing = outgoing != 0
	m.Read = read != 0
	if fileID != "" {
		m.File = &protocol.File{ID: fileID, Name: fileName, Size: fileSize, LocalPath: localPath}
	}
	return m, nil
}

// Messages returns up to limit messages of chatID older than fromMsg,
// newest first. protocol.Newest starts from the latest message.
func (c *Cache) Messages(ctx context.Context, chatID protocol.ChatID, fromMsg protocol.MessageID, limit int) ([]protocol.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	bound := int64(fromMsg)
	if fromMsg == protocol.Newest {
		bound = int64(^uint64(0) >> 1)
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = ? AND id < ?
		 ORDER BY id DESC
		 LIMIT ?`,
		int64(chatID), bound, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []protocol.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkRead flags the given messages as read.
func (c *Cache) MarkRead(ctx context.Context, chatID protocol.ChatID, ids []protocol.MessageID) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET is_read = 1 WHERE chat_id = ? AND id = ?`,
			int64(chatID), int64(id)); err != nil {
			return fmt.Errorf("mark read %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// FindFile returns the message in chatID carrying fileID.
func (c *Cache) FindFile(ctx context.Context, chatID protocol.ChatID, fileID string) (protocol.Message, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? AND file_id = ? LIMIT 1`,
		int64(chatID), fileID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.Message{}, fmt.Errorf("file %s: %w", fileID, errors.ErrNotFound)
	}
	if err != nil {
		return protocol.Message{}, fmt.Errorf("find file %s: %w", fileID, err)
	}
	return m, nil
}

// SetLocalPath records where fileID was downloaded.
func (c *Cache) SetLocalPath(ctx context.Context, chatID protocol.ChatID, fileID, path string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE messages SET local_path = ? WHERE chat_id = ? AND file_id = ?`,
		path, int64(chatID), fileID)
	if err != nil {
		return fmt.Errorf("set local path: %w", err)
	}
	return nil
}

// Offset returns the next getUpdates offset, zero when none was saved.
func (c *Cache) Offset(ctx context.Context) (int64, error) {
	var v int64
	err := c.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, offsetKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read offset: %w", err)
	}
	return v, nil
}

// SetOffset saves the next getUpdates offset.
func (c *Cache) SetOffset(ctx context.Context, offset int64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		offsetKey, offset)
	if err != nil {
		return fmt.Errorf("save offset: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
