package protocol

// Event is a result delivered by a protocol. Err is non-nil when the
// request failed; the remaining fields then describe the request.
type Event interface {
	Protocol() string
	Err() error
}

// Result carries the fields common to every event. Embed it in concrete
// event types.
type Result struct {
	Proto string
	Error error
}

// Protocol returns the name of the protocol that produced the event.
func (r Result) Protocol() string { return r.Proto }

// Err returns the failure, or nil on success.
func (r Result) Err() error { return r.Error }

// ChatsResult answers RequestChats. Next is the cursor for the following
// page; it equals the request cursor when no more chats exist.
type ChatsResult struct {
	Result
	Chats    []Chat
	Cursor   Cursor
	Next     Cursor
	PostInit bool
}

// ChatUpdated answers RequestChatUpdate and is also pushed unsolicited when a
// chat changes.
type ChatUpdated struct {
	Result
	ChatID ChatID
	Chat   Chat
}

// MessagesResult answers RequestMessages. Messages are newest first.
type MessagesResult struct {
	Result
	ChatID   ChatID
	FromMsg  MessageID
	Messages []Message
}

// NewMessage is pushed when a message arrives outside of any request.
type NewMessage struct {
	Result
	Message Message
}

// SendResult answers SendMessage. Message is the stored outgoing message on
// success.
type SendResult struct {
	Result
	ChatID  ChatID
	Text    string
	ReplyID MessageID
	Message Message
}

// FileSent answers SendFile.
type FileSent struct {
	Result
	ChatID  ChatID
	Path    string
	Message Message
}

// FileDownloaded answers DownloadFile. Path is the local file on success.
type FileDownloaded struct {
	Result
	ChatID ChatID
	FileID string
	Path   string
}

// MarkReadResult answers MarkRead.
type MarkReadResult struct {
	Result
	ChatID ChatID
	IDs    []MessageID
}

// StatusChanged reports connectivity of the backend.
type StatusChanged struct {
	Result
	Online bool
	Detail string
}
