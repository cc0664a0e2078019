// Package telegram implements the Telegram backend on top of the Bot API.
//
// The Bot API has no history or dialog list, so every message the bot sees
// is recorded in a SQLite cache under the protocol's config directory, and
// chat listing and message paging are answered from that cache. New
// messages arrive through long polling.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/nchat/internal/config"
	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/logging"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

// Name is the protocol identifier.
const Name = "telegram"

const (
	settingsFileName   = "telegram.conf"
	cacheFileName      = "cache.db"
	downloadDirName    = "downloads"
	requestQueueSize   = 256
	defaultPollTimeout = 25 * time.Second
	defaultRetryDelay  = time.Second
	maxRetryDelay      = 30 * time.Second
)

// Factory registers the backend with a protocol registry.
var Factory = protocol.Factory{Name: Name, New: New}

// Settings is the content of telegram.conf.
type Settings struct {
	BotToken string `toml:"bot_token"`
	APIURL   string `toml:"api_url,omitempty"`
}

// LoadSettings reads telegram.conf from dir. A missing file yields zero
// Settings.
func LoadSettings(dir string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(filepath.Join(dir, settingsFileName))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read %s: %w", settingsFileName, err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", settingsFileName, err)
	}
	return s, nil
}

// SaveSettings writes telegram.conf into dir with private permissions.
func SaveSettings(dir string, s Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", settingsFileName, err)
	}
	return config.WriteFileAtomic(filepath.Join(dir, settingsFileName), data)
}

// Option configures a Telegram backend.
type Option func(*Telegram)

// WithAPIURL overrides the Bot API endpoint from telegram.conf.
func WithAPIURL(u string) Option {
	return func(t *Telegram) { t.apiURL = u }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Telegram) { t.httpClient = c }
}

// WithPollTimeout sets the server side wait of each getUpdates call.
func WithPollTimeout(d time.Duration) Option {
	return func(t *Telegram) { t.pollTimeout = d }
}

// WithRetryDelay sets the initial delay after a failed poll.
func WithRetryDelay(d time.Duration) Option {
	return func(t *Telegram) { t.retryDelay = d }
}

// Telegram is the Bot API backend.
type Telegram struct {
	env    protocol.Env
	dir    string
	logger *logging.Logger
	outbox *protocol.Outbox

	apiURL      string
	httpClient  *http.Client
	pollTimeout time.Duration
	retryDelay  time.Duration

	mu       sync.Mutex
	running  bool
	requests chan func(context.Context)
	cancel   context.CancelFunc
	wg       *conc.WaitGroup
	client   *Client
	cache    *Cache
	self     User
}

// New constructs the backend for a session. It does no I/O.
func New(env protocol.Env) protocol.Protocol {
	return NewWithOptions(env)
}

// NewWithOptions constructs the backend with explicit options.
func NewWithOptions(env protocol.Env, opts ...Option) *Telegram {
	logger := env.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	t := &Telegram{
		env:         env,
		dir:         filepath.Join(env.ConfigDir, Name),
		logger:      logger,
		outbox:      protocol.NewOutbox(),
		pollTimeout: defaultPollTimeout,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Telegram) Name() string { return Name }

func (t *Telegram) Events() *protocol.Outbox { return t.outbox }

// Dir returns the backend's private directory.
func (t *Telegram) Dir() string { return t.dir }

func (t *Telegram) newClient(s Settings) *Client {
	apiURL := s.APIURL
	if t.apiURL != "" {
		apiURL = t.apiURL
	}
	return NewClient(apiURL, s.BotToken, t.httpClient)
}

// Start opens the cache and launches the request worker and the update
// poller. It fails when the account has not been set up.
func (t *Telegram) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("%w: telegram already running", errors.ErrInvalidTransition)
	}

	s, err := LoadSettings(t.dir)
	if err != nil {
		return err
	}
	if s.BotToken == "" {
		return fmt.Errorf("telegram: no bot token in %s, run nchat --setup", filepath.Join(t.dir, settingsFileName))
	}
	if err := os.MkdirAll(t.dir, 0o700); err != nil {
		return fmt.Errorf("create telegram directory: %w", err)
	}
	cache, err := OpenCache(filepath.Join(t.dir, cacheFileName))
	if err != nil {
		return err
	}

	// Background work outlives the Start call; Stop ends it.
	runCtx, cancel := context.WithCancel(context.Background())
	t.client = t.newClient(s)
	t.cache = cache
	t.cancel = cancel
	t.requests = make(chan func(context.Context), requestQueueSize)
	t.wg = conc.NewWaitGroup()
	t.running = true

	reqs := t.requests
	t.wg.Go(func() { t.work(runCtx, reqs) })
	t.wg.Go(func() { t.poll(runCtx) })

	t.logger.Info("telegram started", "dir", t.dir)
	return nil
}

// Stop ends background work, closes the cache and then the outbox.
func (t *Telegram) Stop() error {
	t.mu.Lock()
	running, cancel, wg, cache := t.running, t.cancel, t.wg, t.cache
	t.running = false
	t.mu.Unlock()

	var err error
	if running {
		cancel()
		wg.Wait()
		err = cache.Close()
	}
	if n := t.outbox.Close(); n > 0 {
		t.logger.Debug("discarded undelivered events", "count", n)
	}
	t.logger.Info("telegram stopped")
	return err
}

func (t *Telegram) work(ctx context.Context, reqs <-chan func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-reqs:
			fn(ctx)
		}
	}
}

func (t *Telegram) result(op string, err error) protocol.Result {
	if err != nil {
		err = errors.NewProtocolError(Name, op, err)
	}
	return protocol.Result{Proto: Name, Error: err}
}

// submit enqueues fn for the worker. When the backend is not running or the
// queue is full, the failure event built by fail is pushed instead.
func (t *Telegram) submit(op string, fn func(ctx context.Context), fail func(protocol.Result) protocol.Event) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		t.outbox.Push(fail(t.result(op, errors.ErrNotRunning)))
		return
	}
	select {
	case t.requests <- fn:
		t.mu.Unlock()
	default:
		t.mu.Unlock()
		t.logger.Warn("request queue full", "op", op)
		t.outbox.Push(fail(t.result(op, errors.ErrQueueFull)))
	}
}

func (t *Telegram) deps() (*Client, *Cache, User) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client, t.cache, t.self
}

// convert maps a Bot API message to a protocol message.
func convert(m *Message, self User) protocol.Message {
	pm := protocol.Message{
		ID:     protocol.MessageID(m.MessageID),
		ChatID: protocol.ChatID(m.Chat.ID),
		Text:   m.Text,
		Time:   time.Unix(m.Date, 0),
	}
	if pm.Text == "" {
		pm.Text = m.Caption
	}
	if m.From != nil {
		pm.SenderID = m.From.ID
		pm.SenderName = m.From.DisplayName()
		pm.Outgoing = self.ID != 0 && m.From.ID == self.ID
	}
	if m.ReplyToMessage != nil {
		pm.ReplyTo = protocol.MessageID(m.ReplyToMessage.MessageID)
	}
	if m.Document != nil {
		pm.File = &protocol.File{ID: m.Document.FileID, Name: m.Document.FileName, Size: m.Document.FileSize}
	}
	pm.Read = pm.Outgoing
	return pm
}

// store records a message and its chat, returning the protocol form.
// outgoing marks messages the bot itself sent.
func (t *Telegram) store(ctx context.Context, m *Message, outgoing bool) (protocol.Message, error) {
	_, cache, self := t.deps()
	pm := convert(m, self)
	if outgoing {
		pm.Outgoing, pm.Read = true, true
	}
	if err := cache.UpsertChat(ctx, pm.ChatID, m.Chat.DisplayName()); err != nil {
		return pm, err
	}
	if err := cache.SaveMessage(ctx, pm); err != nil {
		return pm, err
	}
	return pm, nil
}

func (t *Telegram) RequestChats(limit int, postInit bool, cursor protocol.Cursor) {
	const op = "RequestChats"
	fail := func(r protocol.Result) protocol.Event {
		return protocol.ChatsResult{Result: r, Cursor: cursor, Next: cursor, PostInit: postInit}
	}
	t.submit(op, func(ctx context.Context) {
		_, cache, _ := t.deps()
		chats, err := cache.ListChats(ctx, cursor, limit)
		if err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		next := cursor
		if len(chats) > 0 {
			last := chats[len(chats)-1]
			next = protocol.Cursor{OffsetChat: last.ID, OffsetOrder: last.Order}
		}
		t.outbox.Push(protocol.ChatsResult{
			Result: t.result(op, nil), Chats: chats, Cursor: cursor, Next: next, PostInit: postInit,
		})
	}, fail)
}

func (t *Telegram) RequestChatUpdate(chatID protocol.ChatID) {
	const op = "RequestChatUpdate"
	fail := func(r protocol.Result) protocol.Event {
		return protocol.ChatUpdated{Result: r, ChatID: chatID}
	}
	t.submit(op, func(ctx context.Context) {
		client, cache, _ := t.deps()
		remote, err := client.GetChat(ctx, int64(chatID))
		if err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		if err := cache.UpsertChat(ctx, chatID, remote.DisplayName()); err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		chat, err := cache.GetChat(ctx, chatID)
		if err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		t.outbox.Push(protocol.ChatUpdated{Result: t.result(op, nil), ChatID: chatID, Chat: chat})
	}, fail)
}

func (t *Telegram) RequestMessages(chatID protocol.ChatID, fromMsg protocol.MessageID, limit int) {
	const op = "RequestMessages"
	fail := func(r protocol.Result) protocol.Event {
		return protocol.MessagesResult{Result: r, ChatID: chatID, FromMsg: fromMsg}
	}
	t.submit(op, func(ctx context.Context) {
		_, cache, _ := t.deps()
		msgs, err := cache.Messages(ctx, chatID, fromMsg, limit)
		if err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		t.outbox.Push(protocol.MessagesResult{Result: t.result(op, nil), ChatID: chatID, FromMsg: fromMsg, Messages: msgs})
	}, fail)
}

func (t *Telegram) SendMessage(chatID protocol.ChatID, text string, replyID protocol.MessageID) {
	const op = "SendMessage"
	fail := func(r protocol.Result) protocol.Event {
		return protocol.SendResult{Result: r, ChatID: chatID, Text: text, ReplyID: replyID}
	}
	t.submit(op, func(ctx context.Context) {
		client, _, _ := t.deps()
		sent, err := client.SendMessage(ctx, int64(chatID), text, int64(replyID))
		if err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		msg, err := t.store(ctx, &sent, true)
		if err != nil {
			t.logger.Warn("failed to cache sent message", "chat", chatID, "error", err)
		}
		t.outbox.Push(protocol.SendResult{Result: t.result(op, nil), ChatID: chatID, Text: text, ReplyID: replyID, Message: msg})
	}, fail)
}

func (t *Telegram) SendFile(chatID protocol.ChatID, path string) {
	const op = "SendFile"
	fail := func(r protocol.Result) protocol.Event {
		return protocol.FileSent{Result: r, ChatID: chatID, Path: path}
	}
	t.submit(op, func(ctx context.Context) {
		client, _, _ := t.deps()
		sent, err := client.SendDocument(ctx, int64(chatID), path)
		if err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		msg, err := t.store(ctx, &sent, true)
		if err != nil {
			t.logger.Warn("failed to cache sent file", "chat", chatID, "error", err)
		}
		t.outbox.Push(protocol.FileSent{Result: t.result(op, nil), ChatID: chatID, Path: path, Message: msg})
	}, fail)
}

func (t *Telegram) DownloadFile(chatID protocol.ChatID, fileID string) {
	const op = "DownloadFile"
	fail := func(r protocol.Result) protocol.Event {
		return protocol.FileDownloaded{Result: r, ChatID: chatID, FileID: fileID}
	}
	t.submit(op, func(ctx context.Context) {
		path, err := t.download(ctx, chatID, fileID)
		if err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		t.outbox.Push(protocol.FileDownloaded{Result: t.result(op, nil), ChatID: chatID, FileID: fileID, Path: path})
	}, fail)
}

func (t *Telegram) download(ctx context.Context, chatID protocol.ChatID, fileID string) (string, error) {
	client, cache, _ := t.deps()
	msg, err := cache.FindFile(ctx, chatID, fileID)
	if err != nil {
		return "", err
	}
	if msg.File.LocalPath != "" {
		if _, err := os.Stat(msg.File.LocalPath); err == nil {
			return msg.File.LocalPath, nil
		}
	}

	remote, err := client.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	name := filepath.Base(msg.File.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = fileID
	}
	dir := filepath.Join(t.dir, downloadDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	dst := filepath.Join(dir, name)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	if err := client.Download(ctx, remote.FilePath, f); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dst, err)
	}
	if err := cache.SetLocalPath(ctx, chatID, fileID, dst); err != nil {
		t.logger.Warn("failed to record download path", "file", fileID, "error", err)
	}
	return dst, nil
}

// MarkRead updates the local cache only; bots cannot send read receipts.
func (t *Telegram) MarkRead(chatID protocol.ChatID, msgIDs []protocol.MessageID) {
	const op = "MarkRead"
	ids := append([]protocol.MessageID(nil), msgIDs...)
	fail := func(r protocol.Result) protocol.Event {
		return protocol.MarkReadResult{Result: r, ChatID: chatID, IDs: ids}
	}
	t.submit(op, func(ctx context.Context) {
		_, cache, _ := t.deps()
		if err := cache.MarkRead(ctx, chatID, ids); err != nil {
			t.outbox.Push(fail(t.result(op, err)))
			return
		}
		t.outbox.Push(protocol.MarkReadResult{Result: t.result(op, nil), ChatID: chatID, IDs: ids})
	}, fail)
}

var _ protocol.Protocol = (*Telegram)(nil)
