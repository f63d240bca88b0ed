// Package session holds the emulated browser sessions, the handshake and
// fetch sequence that runs on them, and the bounded pool that lends them
// out to concurrent workers.
package session

import (
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/google/uuid"

	"github.com/yourneighborhoodchef/asinfetch/internal/headers"
)

// Doer is the transport a session rides on. *client.ProxiedClient satisfies
// it in production; tests substitute scripted responders.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// State is a session's lifecycle position. Transitions only move forward
// except for the Ready/Busy lease cycle; Failed is terminal.
type State int

const (
	Uninitialized State = iota
	Handshaking
	Ready
	Busy
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Session is one emulated browser: the TLS client carrying its cookie jar,
// the browser profile its headers render from, the proxy it was created
// with, the two handshake tokens, and its lifecycle state.
//
// A session is owned by at most one caller at a time. The pool enforces
// that by only handing out sessions it holds; the state checks here catch
// misuse rather than provide the exclusion.
type Session struct {
	ID       string
	ProxyURL string

	client    Doer
	profile   headers.Profile
	ephemeral bool

	mu       sync.Mutex
	state    State
	token1   string
	token2   string
	lastUsed time.Time
}

// New wraps a transport in an Uninitialized session with a fresh browser
// profile. The proxy, if any, stays bound for the session's lifetime.
func New(client Doer, proxyURL string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		ProxyURL: proxyURL,
		client:   client,
		profile:  headers.NewProfile(),
		state:    Uninitialized,
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastUsed reports when the session last completed a request.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) transition(op string, from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return &StateError{Op: op, State: s.state}
	}
	s.state = to
	return nil
}

func (s *Session) beginHandshake() error {
	return s.transition("handshake", Uninitialized, Handshaking)
}

func (s *Session) ready() error {
	return s.transition("ready", Handshaking, Ready)
}

func (s *Session) acquire() error {
	return s.transition("acquire", Ready, Busy)
}

func (s *Session) release() error {
	return s.transition("release", Busy, Ready)
}

// fail moves the session to its terminal state. Idempotent.
func (s *Session) fail() {
	s.mu.Lock()
	s.state = Failed
	s.mu.Unlock()
}

func (s *Session) setTokens(token1, token2 string) {
	s.mu.Lock()
	if token1 != "" {
		s.token1 = token1
	}
	if token2 != "" {
		s.token2 = token2
	}
	s.mu.Unlock()
}

// Tokens returns the page and modal tokens captured by the last handshake.
func (s *Session) Tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token1, s.token2
}
