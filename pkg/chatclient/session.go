package chatclient

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MaxOpenChats caps how many chat windows poll at once. Opening another chat
// past the cap closes the oldest one, regardless of kind.
const MaxOpenChats = 3

// WindowKind tags what a chat window is showing.
type WindowKind string

const (
	WindowDirect WindowKind = "direct"
	WindowGroup  WindowKind = "group"
)

// WindowRef identifies one open window: the other participant for a direct
// chat, the group for a group chat.
type WindowRef struct {
	Kind WindowKind
	ID   uuid.UUID
}

// ChatFetcher is the slice of Client the chat windows need. It exists so
// tests can drive the session manager without a server.
type ChatFetcher interface {
	GetOrCreateConversation(ctx context.Context, otherID uuid.UUID) (*Conversation, error)
	GetGroup(ctx context.Context, groupID uuid.UUID) (*Group, error)
}

type chatWindow struct {
	ref    WindowRef
	poller *Poller
}

// SessionManager tracks the open chat windows, each backed by its own
// poller. Direct and group windows share the one capped, FIFO-ordered list.
type SessionManager struct {
	fetcher ChatFetcher

	mu      sync.Mutex
	windows []*chatWindow
}

func NewSessionManager(fetcher ChatFetcher) *SessionManager {
	return &SessionManager{fetcher: fetcher}
}

// Open starts a polling window for a direct chat with peerID, delivering
// every refreshed conversation to onUpdate. Opening an already-open chat is
// a no-op. When the cap is hit, the first-opened window is evicted first.
func (m *SessionManager) Open(ctx context.Context, peerID uuid.UUID, onUpdate func(*Conversation)) {
	ref := WindowRef{Kind: WindowDirect, ID: peerID}
	m.open(ctx, ref, func(ctx context.Context) error {
		conv, err := m.fetcher.GetOrCreateConversation(ctx, peerID)
		if err != nil {
			return err
		}
		// A window closed mid-fetch must not repaint.
		if ctx.Err() != nil {
			return nil
		}
		onUpdate(conv)
		return nil
	})
}

// OpenGroup starts a polling window for groupID. Same list, same cap and
// eviction order as direct windows.
func (m *SessionManager) OpenGroup(ctx context.Context, groupID uuid.UUID, onUpdate func(*Group)) {
	ref := WindowRef{Kind: WindowGroup, ID: groupID}
	m.open(ctx, ref, func(ctx context.Context) error {
		group, err := m.fetcher.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		onUpdate(group)
		return nil
	})
}

func (m *SessionManager) open(ctx context.Context, ref WindowRef, fetch func(ctx context.Context) error) {
	m.mu.Lock()

	for _, w := range m.windows {
		if w.ref == ref {
			m.mu.Unlock()
			return
		}
	}

	var evicted *chatWindow
	if len(m.windows) >= MaxOpenChats {
		evicted = m.windows[0]
		m.windows = m.windows[1:]
	}

	window := &chatWindow{ref: ref, poller: NewPoller(ConversationPollInterval, fetch)}
	m.windows = append(m.windows, window)
	m.mu.Unlock()

	// Stop the evicted poller outside the lock; Stop blocks on the
	// in-flight fetch. If this window itself loses a race against Close,
	// Start below is a no-op on the already-stopped poller.
	if evicted != nil {
		evicted.poller.Stop()
	}

	window.poller.Start(ctx)
}

// Close stops the direct-chat window for peerID, if open.
func (m *SessionManager) Close(peerID uuid.UUID) {
	m.close(WindowRef{Kind: WindowDirect, ID: peerID})
}

// CloseGroup stops the group window for groupID, if open.
func (m *SessionManager) CloseGroup(groupID uuid.UUID) {
	m.close(WindowRef{Kind: WindowGroup, ID: groupID})
}

func (m *SessionManager) close(ref WindowRef) {
	m.mu.Lock()
	var closed *chatWindow
	for i, w := range m.windows {
		if w.ref == ref {
			closed = w
			m.windows = append(m.windows[:i], m.windows[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if closed != nil {
		closed.poller.Stop()
	}
}

// CloseAll stops every open window.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	windows := m.windows
	m.windows = nil
	m.mu.Unlock()

	for _, w := range windows {
		w.poller.Stop()
	}
}

// OpenChats returns the open windows, oldest first.
func (m *SessionManager) OpenChats() []WindowRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make([]WindowRef, len(m.windows))
	for i, w := range m.windows {
		refs[i] = w.ref
	}
	return refs
}
