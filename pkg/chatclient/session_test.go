package chatclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeFetcher struct {
	mu           sync.Mutex
	fetches      map[uuid.UUID]int
	groupFetches map[uuid.UUID]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fetches:      make(map[uuid.UUID]int),
		groupFetches: make(map[uuid.UUID]int),
	}
}

func (f *fakeFetcher) GetOrCreateConversation(ctx context.Context, otherID uuid.UUID) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[otherID]++
	return &Conversation{ID: uuid.New()}, nil
}

func (f *fakeFetcher) GetGroup(ctx context.Context, groupID uuid.UUID) (*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupFetches[groupID]++
	return &Group{ID: groupID}, nil
}

func (f *fakeFetcher) count(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

func (f *fakeFetcher) groupCount(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupFetches[id]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestOpenFetchesImmediately(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	peer := uuid.New()
	var mu sync.Mutex
	updates := 0
	m.Open(context.Background(), peer, func(*Conversation) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return updates >= 1
	})
}

func TestOpenGroupFetchesImmediately(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	group := uuid.New()
	var mu sync.Mutex
	updates := 0
	m.OpenGroup(context.Background(), group, func(g *Group) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return updates >= 1
	})
	if fetcher.groupCount(group) < 1 {
		t.Fatal("group window should poll GetGroup")
	}
}

func TestOpenSamePeerIsNoOp(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	peer := uuid.New()
	onUpdate := func(*Conversation) {}
	m.Open(context.Background(), peer, onUpdate)
	m.Open(context.Background(), peer, onUpdate)

	if got := len(m.OpenChats()); got != 1 {
		t.Fatalf("expected 1 open chat, got %d", got)
	}
}

func TestDirectAndGroupWindowsAreDistinct(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	// Same uuid as peer and as group id: two different windows.
	id := uuid.New()
	m.Open(context.Background(), id, func(*Conversation) {})
	m.OpenGroup(context.Background(), id, func(*Group) {})

	if got := len(m.OpenChats()); got != 2 {
		t.Fatalf("expected 2 open windows, got %d", got)
	}
}

func TestOpeningFourthChatEvictsFirst(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	peers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	onUpdate := func(*Conversation) {}
	for _, p := range peers {
		m.Open(context.Background(), p, onUpdate)
	}

	open := m.OpenChats()
	if len(open) != MaxOpenChats {
		t.Fatalf("expected %d open chats, got %d", MaxOpenChats, len(open))
	}
	for _, w := range open {
		if w.ID == peers[0] {
			t.Fatal("first-opened chat should have been evicted")
		}
	}
	if open[0].ID != peers[1] || open[2].ID != peers[3] {
		t.Fatalf("expected FIFO order %v, got %v", peers[1:], open)
	}
}

func TestMixedKindEvictionIsFIFO(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	ctx := context.Background()
	group := uuid.New()
	peerA := uuid.New()
	peerB := uuid.New()
	peerC := uuid.New()

	// Group window opened first, so it is the one a fourth window evicts.
	m.OpenGroup(ctx, group, func(*Group) {})
	m.Open(ctx, peerA, func(*Conversation) {})
	m.Open(ctx, peerB, func(*Conversation) {})
	waitFor(t, func() bool { return fetcher.groupCount(group) >= 1 })

	m.Open(ctx, peerC, func(*Conversation) {})

	open := m.OpenChats()
	if len(open) != MaxOpenChats {
		t.Fatalf("expected %d open windows, got %d", MaxOpenChats, len(open))
	}
	want := []WindowRef{
		{Kind: WindowDirect, ID: peerA},
		{Kind: WindowDirect, ID: peerB},
		{Kind: WindowDirect, ID: peerC},
	}
	for i, ref := range want {
		if open[i] != ref {
			t.Fatalf("expected FIFO order %v, got %v", want, open)
		}
	}

	// The evicted group window must not keep polling.
	after := fetcher.groupCount(group)
	time.Sleep(50 * time.Millisecond)
	if fetcher.groupCount(group) != after {
		t.Fatal("evicted group window kept fetching")
	}
}

func TestCloseStopsPolling(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	peer := uuid.New()
	m.Open(context.Background(), peer, func(*Conversation) {})
	waitFor(t, func() bool { return fetcher.count(peer) >= 1 })

	m.Close(peer)
	if got := len(m.OpenChats()); got != 0 {
		t.Fatalf("expected no open chats, got %d", got)
	}

	// No further fetches after the window is closed.
	after := fetcher.count(peer)
	time.Sleep(50 * time.Millisecond)
	if fetcher.count(peer) != after {
		t.Fatal("poller kept fetching after Close")
	}
}

func TestCloseGroupStopsPolling(t *testing.T) {
	fetcher := newFakeFetcher()
	m := NewSessionManager(fetcher)
	defer m.CloseAll()

	group := uuid.New()
	m.OpenGroup(context.Background(), group, func(*Group) {})
	waitFor(t, func() bool { return fetcher.groupCount(group) >= 1 })

	m.CloseGroup(group)
	if got := len(m.OpenChats()); got != 0 {
		t.Fatalf("expected no open windows, got %d", got)
	}

	after := fetcher.groupCount(group)
	time.Sleep(50 * time.Millisecond)
	if fetcher.groupCount(group) != after {
		t.Fatal("poller kept fetching after CloseGroup")
	}
}

func TestCloseUnknownPeerIsNoOp(t *testing.T) {
	m := NewSessionManager(newFakeFetcher())
	m.Close(uuid.New())
	m.CloseGroup(uuid.New())
}

func TestPollerRetriesAfterError(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	p := NewPoller(10*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})

	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	})
}

func TestPollerStopWaitsForLoop(t *testing.T) {
	p := NewPoller(10*time.Millisecond, func(ctx context.Context) error {
		return nil
	})
	p.Start(context.Background())
	p.Stop()

	select {
	case <-p.done:
	default:
		t.Fatal("Stop returned before the loop exited")
	}
}

func TestPollerStartAfterStopIsNoOp(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	p := NewPoller(10*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	// A window can be closed by a racing eviction before its poller ever
	// started; the later Start must not bring it back to life.
	p.Stop()
	p.Start(context.Background())

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("stopped poller should never fetch, got %d fetches", calls)
	}
}

func TestWatchersDeliverFirstTick(t *testing.T) {
	client := &fakeWatchSource{unread: 7}

	var mu sync.Mutex
	var lists, groups int
	var badge int64

	lp := WatchConversations(context.Background(), client, func([]ConversationSummary) {
		mu.Lock()
		lists++
		mu.Unlock()
	})
	defer lp.Stop()
	gp := WatchGroups(context.Background(), client, func([]GroupSummary) {
		mu.Lock()
		groups++
		mu.Unlock()
	})
	defer gp.Stop()
	up := WatchUnreadCount(context.Background(), client, func(count int64) {
		mu.Lock()
		badge = count
		mu.Unlock()
	})
	defer up.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lists >= 1 && groups >= 1 && badge == 7
	})
}

type fakeWatchSource struct {
	unread int64
}

func (f *fakeWatchSource) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	return []ConversationSummary{}, nil
}

func (f *fakeWatchSource) ListGroups(ctx context.Context) ([]GroupSummary, error) {
	return []GroupSummary{}, nil
}

func (f *fakeWatchSource) UnreadNotificationCount(ctx context.Context) (int64, error) {
	return f.unread, nil
}
