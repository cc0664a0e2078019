package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client is a minimal Telegram Bot API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a client for apiURL authenticating with token. A nil
// httpClient uses a client with a timeout suited to long polling.
func NewClient(apiURL, token string, httpClient *http.Client) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// DisplayName returns the user's full name, or username when unnamed.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Chat is a Telegram chat.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName returns the chat title, or the peer's name for private chats.
func (c Chat) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	if name := strings.TrimSpace(c.FirstName + " " + c.LastName); name != "" {
		return name
	}
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// Document is a file attached to a message.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// Message is a Telegram message.
type Message struct {
	MessageID      int64     `json:"message_id"`
	From           *User     `json:"from"`
	Chat           Chat      `json:"chat"`
	Date           int64     `json:"date"`
	Text           string    `json:"text"`
	Caption        string    `json:"caption"`
	ReplyToMessage *Message  `json:"reply_to_message"`
	Document       *Document `json:"document"`
}

// Update is one element of a getUpdates result.
type Update struct {
	UpdateID          int64    `json:"update_id"`
	Message           *Message `json:"message"`
	EditedMessage     *Message `json:"edited_message"`
	ChannelPost       *Message `json:"channel_post"`
	EditedChannelPost *Message `json:"edited_channel_post"`
}

// Msg returns whichever message the update carries, or nil.
func (u Update) Msg() *Message {
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.ChannelPost != nil:
		return u.ChannelPost
	default:
		return u.EditedChannelPost
	}
}

// File is a getFile result.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// call posts params as a form and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, redact(err, c.token))
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if !ar.OK {
		return &APIError{Method: method, Code: ar.ErrorCode, Description: ar.Description}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(ar.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// redact strips the bot token from transport errors, which embed the URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}

// GetMe returns the bot's own user. It is used to verify a token.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	err := c.call(ctx, "getMe", url.Values{}, &u)
	return u, err
}

// GetUpdates long-polls for updates with id >= offset. timeout is the
// server side wait; ctx cancels the request.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	params.Set("allowed_updates", `["message","edited_message","channel_post","edited_channel_post"]`)

	var updates []Update
	err := c.call(ctx, "getUpdates", params, &updates)
	return updates, err
}

// GetChat returns current chat metadata.
func (c *Client) GetChat(ctx context.Context, chatID int64) (Chat, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))

	var chat Chat
	err := c.call(ctx, "getChat", params, &chat)
	return chat, err
}

// SendMessage posts text to chatID, as a reply when replyTo is non-zero.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (Message, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	if replyTo != 0 {
		params.Set("reply_to_message_id", strconv.FormatInt(replyTo, 10))
	}

	var msg Message
	err := c.call(ctx, "sendMessage", params, &msg)
	return msg, err
}

// SendDocument uploads the file at path to chatID.
func (c *Client) SendDocument(ctx context.Context, chatID int64, path string) (Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return Message{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return Message{}, fmt.Errorf("write chat_id field: %w", err)
	}
	fw, err := mw.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return Message{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Message{}, fmt.Errorf("write file data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Message{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if err != nil {
		return Message{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var msg Message
	err = c.do(req, "sendDocument", &msg)
	return msg, err
}

// GetFile resolves fileID to a downloadable file path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	params := url.Values{}
	params.Set("file_id", fileID)

	var f File
	err := c.call(ctx, "getFile", params, &f)
	return f, err
}

// Download fetches a file path returned by GetFile into dst.
func (c *Client) Download(ctx context.Context, filePath string, dst io.Writer) error {
	u := c.baseURL + "/file/bot" + c.token + "/" + strings.TrimLeft(filePath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram download: %w", redact(err, c.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram download: status %d", resp.StatusCode)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("telegram download: %w", err)
	}
	return nil
}
