package chat

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
	"github.com/zhouzirui/speaco/backend/internal/protocol"
)

// Session is the runtime state of one transport connection.
type Session struct {
	ID       string
	nickname string
	chatter  *chat.ChatterRecord
}

// Authorized reports whether the session completed a join.
func (s *Session) Authorized() bool {
	return s.chatter != nil
}

// Nickname returns the bound nickname, empty before join.
func (s *Session) Nickname() string {
	return s.nickname
}

// Registry tracks live sessions, nickname reservations and chatter records.
// It is not safe for concurrent use; the Engine serializes access.
type Registry struct {
	nicknameLength int
	sessions       map[string]*Session
	nicknames      map[string]*Session
	chatters       map[string]*chat.ChatterRecord
}

// NewRegistry returns an empty registry limiting nicknames to nicknameLength code points.
func NewRegistry(nicknameLength int) *Registry {
	return &Registry{
		nicknameLength: nicknameLength,
		sessions:       make(map[string]*Session),
		nicknames:      make(map[string]*Session),
		chatters:       make(map[string]*chat.ChatterRecord),
	}
}

// Connect registers an unauthenticated session.
func (r *Registry) Connect(id string) *Session {
	session := &Session{ID: id}
	r.sessions[id] = session
	return session
}

// Get returns the live session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	session, ok := r.sessions[id]
	return session, ok
}

// Join binds nickname to session and creates its chatter record on first use.
func (r *Registry) Join(session *Session, nickname string) error {
	if session.Authorized() {
		return protocol.ErrAlreadyAuthorized
	}
	if nickname == "" || strings.Contains(nickname, "\n") {
		return protocol.ErrInvalidNickname
	}
	if utf8.RuneCountInString(nickname) > r.nicknameLength {
		return protocol.ErrNicknameTooLong
	}
	if _, taken := r.nicknames[nickname]; taken {
		return protocol.ErrNicknameTaken
	}

	chatter, ok := r.chatters[nickname]
	if !ok {
		chatter = &chat.ChatterRecord{}
		r.chatters[nickname] = chatter
	}

	session.nickname = nickname
	session.chatter = chatter
	r.nicknames[nickname] = session
	return nil
}

// Leave forgets the session and releases its nickname.
// It returns the released nickname, or false if the session never joined.
func (r *Registry) Leave(id string) (string, bool) {
	session, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	delete(r.sessions, id)

	if !session.Authorized() {
		return "", false
	}
	if r.nicknames[session.nickname] == session {
		delete(r.nicknames, session.nickname)
	}
	return session.nickname, true
}

// Authorized returns every joined session ordered by nickname.
func (r *Registry) Authorized() []*Session {
	sessions := lo.Values(r.nicknames)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].nickname < sessions[j].nickname
	})
	return sessions
}

// All returns every live session, joined or not.
func (r *Registry) All() []*Session {
	return lo.Values(r.sessions)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// ChatterCount returns the number of nicknames that ever joined.
func (r *Registry) ChatterCount() int {
	return len(r.chatters)
}

// Chatters copies every chatter record keyed by nickname.
func (r *Registry) Chatters() map[string]chat.ChatterRecord {
	return lo.MapValues(r.chatters, func(c *chat.ChatterRecord, _ string) chat.ChatterRecord {
		return *c
	})
}

// RestoreChatters replaces the chatter records. Live sessions keep the record they were bound to.
func (r *Registry) RestoreChatters(records map[string]chat.ChatterRecord) {
	r.chatters = lo.MapValues(records, func(c chat.ChatterRecord, _ string) *chat.ChatterRecord {
		return &c
	})
}
