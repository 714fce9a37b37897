package model

import (
	"context"
	"time"
)

// Level is a Dutch secondary-school track. It determines which question
// pool a user practices with.
type Level string

const (
	LevelMavo Level = "mavo"
	LevelHavo Level = "havo"
	LevelVwo  Level = "vwo"
)

// Levels lists all valid tracks in display order.
var Levels = []Level{LevelMavo, LevelHavo, LevelVwo}

// Valid reports whether l is a known track.
func (l Level) Valid() bool {
	switch l {
	case LevelMavo, LevelHavo, LevelVwo:
		return true
	}
	return false
}

// HashScheme identifies the password-hash code path a user record was
// created under. The scheme is fixed per record; verification dispatches
// on it and never inspects the schema.
type HashScheme string

const (
	// SchemeSHA256 is the legacy unsalted scheme (sha256 of the password).
	SchemeSHA256 HashScheme = "sha256"
	// SchemeSHA256Salt is the legacy salted scheme (sha256 of password+salt).
	SchemeSHA256Salt HashScheme = "sha256-salt"
	// SchemePBKDF2 is the current scheme for newly created users.
	SchemePBKDF2 HashScheme = "pbkdf2"
)

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Salt         string
	Scheme       HashScheme
	Level        Level
}

// Question represents one imported exam question. Questions are
// immutable once imported; a re-import replaces the whole set.
type Question struct {
	ID            int64    `json:"id"`
	Subject       string   `json:"subject"`
	Level         Level    `json:"level"`
	Year          int      `json:"year"`
	Text          string   `json:"question"`
	Options       []string `json:"options,omitempty"` // nil for open-answer questions
	CorrectAnswer string   `json:"correct_answer"`
	Image         string   `json:"image,omitempty"` // filename relative to the assets dir
	Context       string   `json:"context,omitempty"`
	Topic         string   `json:"topic,omitempty"`
}

// Open reports whether the question has no fixed option list.
func (q Question) Open() bool {
	return len(q.Options) == 0
}

// QuestionImport is one record of a question-bank JSON file.
// Level overrides the level derived from the filename when set.
type QuestionImport struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Level         string   `json:"level"`
	Context       string   `json:"context"`
	Image         string   `json:"image"`
	Topic         string   `json:"topic"`
}

// Session is one traversal of a question list for a subject/level pair.
type Session struct {
	ID         int64
	UserID     int64
	Subject    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Answer is one recorded answer within a session. Feedback starts empty
// and is attached once after the exam completes.
type Answer struct {
	ID         int64
	SessionID  int64
	QuestionID int64
	UserAnswer string
	IsCorrect  bool
	Feedback   string
}

// SessionScore is one row of a user's exam history.
type SessionScore struct {
	SessionID      int64
	Subject        string
	StartedAt      time.Time
	TotalQuestions int
	CorrectAnswers int
}

// TopicProgress aggregates a user's results per (subject, topic).
type TopicProgress struct {
	Subject        string
	Topic          string
	TotalQuestions int
	CorrectAnswers int
	Percentage     int
}

// ChatRole is a tutor-chat message role.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the tutor chat. The gateway is stateless;
// the full history is passed on every call.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// AuthSession represents a web login token.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	DataDir       string // question-bank JSON directory
	AssetsDir     string // image assets directory
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
