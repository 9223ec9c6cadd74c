package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentwire/agentwire/internal/logger"
	"github.com/agentwire/agentwire/internal/protocol"
)

const (
	// DefaultHistoryLimit caps how many messages a session keeps. Older
	// messages are dropped first; order among survivors is preserved.
	DefaultHistoryLimit = 50

	// maxTitleLen is how much of the first message becomes the title.
	maxTitleLen = 50

	sessionsKey = "agentwire.sessions"
	currentKey  = "agentwire.current_session"
)

// Session is one persisted conversation thread. Its ID never changes;
// switching sessions moves the store's current pointer, not session contents.
type Session struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Messages  []protocol.Message `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store owns all persisted sessions and the current-session pointer. It is
// the only component that touches the KeyValueStore port.
type Store struct {
	mu           sync.Mutex
	kv           KeyValueStore
	sessions     map[string]*Session
	currentID    string
	historyLimit int
	newID        func() string
	log          *logger.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithHistoryLimit overrides the per-session message cap.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithIDGenerator overrides session id generation, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store over the given persistence port and loads whatever
// state it holds. Corrupt or missing entries are treated as empty state.
func New(kv KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:           kv,
		sessions:     make(map[string]*Session),
		historyLimit: DefaultHistoryLimit,
		newID:        func() string { return uuid.New().String() },
		log:          logger.Global().WithPrefix("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load()

	if s.currentID == "" {
		s.currentID = s.newID()
		s.persistCurrent()
	}
	return s
}

// load reads persisted sessions and the current pointer from the port.
func (s *Store) load() {
	if data, err := s.kv.Get(sessionsKey); err != nil {
		s.log.Warn("failed to read sessions: %v", err)
	} else if len(data) > 0 {
		var sessions map[string]*Session
		if err := json.Unmarshal(data, &sessions); err != nil {
			s.log.Warn("discarding corrupt session state: %v", err)
		} else {
			s.sessions = sessions
		}
	}
	if s.sessions == nil {
		s.sessions = make(map[string]*Session)
	}

	if data, err := s.kv.Get(currentKey); err != nil {
		s.log.Warn("failed to read current session pointer: %v", err)
	} else if len(data) > 0 {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			s.log.Warn("discarding corrupt session pointer: %v", err)
		} else {
			s.currentID = id
		}
	}
}

func (s *Store) persistSessions() {
	data, err := json.Marshal(s.sessions)
	if err != nil {
		s.log.Error("failed to encode sessions: %v", err)
		return
	}
	if err := s.kv.Set(sessionsKey, data); err != nil {
		s.log.Error("failed to persist sessions: %v", err)
	}
}

func (s *Store) persistCurrent() {
	data, _ := json.Marshal(s.currentID)
	if err := s.kv.Set(currentKey, data); err != nil {
		s.log.Error("failed to persist current session pointer: %v", err)
	}
}

// List returns all persisted sessions, most recently created first.
func (s *Store) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, snapshotSession(sess))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions
}

// Get returns the session with the given id, or false if it does not exist.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return snapshotSession(sess), true
}

// CurrentID returns the id of the current session. The session record itself
// is created lazily on the first append.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// SetCurrent redirects the current-session pointer. It never touches session
// contents.
func (s *Store) SetCurrent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" || id == s.currentID {
		return
	}
	s.currentID = id
	s.persistCurrent()
}

// History returns the current session's messages, oldest first.
func (s *Store) History() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[s.currentID]
	if !ok {
		return nil
	}
	return append([]protocol.Message(nil), sess.Messages...)
}

// Append merges messages into the session's history, derives the title on
// the session's first message, applies the history cap and persists the
// result in a single write.
func (s *Store) Append(id string, msgs ...protocol.Message) {
	if len(msgs) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, CreatedAt: time.Now()}
		s.sessions[id] = sess
	}

	// The title is derived once from the very first message and stays
	// stable even after that message is truncated away.
	if sess.Title == "" && len(sess.Messages) == 0 {
		sess.Title = deriveTitle(msgs[0].Content)
	}

	sess.Messages = append(sess.Messages, msgs...)
	if over := len(sess.Messages) - s.historyLimit; over > 0 {
		sess.Messages = append([]protocol.Message(nil), sess.Messages[over:]...)
	}

	s.persistSessions()
}

// NewSession allocates a fresh session id and makes it current. The session
// record is created lazily on its first append.
func (s *Store) NewSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID = s.newID()
	s.persistCurrent()
	return s.currentID
}

// Delete removes a session. Deleting the current session also switches the
// pointer to a freshly allocated id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.persistSessions()
	}

	if id == s.currentID {
		s.currentID = s.newID()
		s.persistCurrent()
	}
}

// deriveTitle builds a session title from its first message.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen]) + "..."
	}
	return content
}

// snapshotSession copies a session so callers cannot mutate stored state.
func snapshotSession(sess *Session) *Session {
	copied := *sess
	copied.Messages = append([]protocol.Message(nil), sess.Messages...)
	return &copied
}
