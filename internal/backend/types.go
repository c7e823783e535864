package backend

// Sender identifies which side of the conversation produced a message.
type Sender string

// Valid senders. The value is immutable once a message exists.
const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// DefaultLastMessage labels a session that has no conversation yet.
const DefaultLastMessage = "New conversation"

// Session represents one conversation thread as the client sees it.
//
// Invariants: ID is immutable once created; HTMLFiles only ever grows within
// a session's lifetime (the backend appends generated artifacts, the client
// never removes them).
type Session struct {
	ID           string
	UserID       string
	LastMessage  string
	Timestamp    string // ISO 8601, as reported by the backend
	HTMLFiles    []string
	OutputFolder string
}

// Message is a single chat turn. Session affiliation is implicit: a message
// belongs to the session whose list it was loaded into.
type Message struct {
	ID           string
	UserID       string
	Content      string
	Sender       Sender
	HTMLFiles    []string
	OutputFolder string
	Timestamp    string
}

// AskResponse is the agent's answer to a question, including any HTML
// visualizations it generated.
type AskResponse struct {
	Answer       string
	HTMLFiles    []string
	OutputFolder string
}

// Wire representations. The backend speaks snake_case; the client types
// above use Go field names. Conversion happens at the service boundary.

type wireSession struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id,omitempty"`
	LastMessage  string   `json:"last_message,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
	HTMLFiles    []string `json:"html_files,omitempty"`
	OutputFolder string   `json:"output_folder,omitempty"`
}

type wireMessage struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id,omitempty"`
	Content      string   `json:"content"`
	Sender       string   `json:"sender"`
	HTMLFiles    []string `json:"html_files,omitempty"`
	OutputFolder string   `json:"output_folder,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
}

type updateSessionRequest struct {
	HTMLFiles    []string `json:"html_files"`
	OutputFolder string   `json:"output_folder"`
	LastMessage  string   `json:"last_message"`
}

type addMessageRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	Answer       string   `json:"answer"`
	OutputFolder string   `json:"output_folder"`
	HTMLFiles    []string `json:"html_files"`
}

func (w wireSession) toSession(now func() string) Session {
	s := Session{
		ID:           w.ID,
		UserID:       w.UserID,
		LastMessage:  w.LastMessage,
		Timestamp:    w.Timestamp,
		HTMLFiles:    w.HTMLFiles,
		OutputFolder: w.OutputFolder,
	}
	if s.LastMessage == "" {
		s.LastMessage = DefaultLastMessage
	}
	if s.Timestamp == "" {
		s.Timestamp = now()
	}
	if s.HTMLFiles == nil {
		s.HTMLFiles = []string{}
	}
	return s
}

func (w wireMessage) toMessage() Message {
	m := Message{
		ID:           w.ID,
		UserID:       w.UserID,
		Content:      w.Content,
		Sender:       Sender(w.Sender),
		HTMLFiles:    w.HTMLFiles,
		OutputFolder: w.OutputFolder,
		Timestamp:    w.Timestamp,
	}
	if m.HTMLFiles == nil {
		m.HTMLFiles = []string{}
	}
	return m
}
