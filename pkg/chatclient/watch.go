package chatclient

import (
	"context"
	"time"
)

// The sidebar and badge loops, one constructor per interval tier. Each
// returns its started Poller; the caller owns Stop.

// ConversationLister is the Client slice the sidebar watcher needs.
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]ConversationSummary, error)
}

// GroupLister is the Client slice the group sidebar watcher needs.
type GroupLister interface {
	ListGroups(ctx context.Context) ([]GroupSummary, error)
}

// UnreadCounter is the Client slice the badge watcher needs.
type UnreadCounter interface {
	UnreadNotificationCount(ctx context.Context) (int64, error)
}

// WatchConversations refreshes the conversation sidebar at ListPollInterval.
func WatchConversations(ctx context.Context, lister ConversationLister, onUpdate func([]ConversationSummary)) *Poller {
	return watch(ctx, ListPollInterval, func(ctx context.Context) error {
		items, err := lister.ListConversations(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		onUpdate(items)
		return nil
	})
}

// WatchGroups refreshes the group sidebar at ListPollInterval.
func WatchGroups(ctx context.Context, lister GroupLister, onUpdate func([]GroupSummary)) *Poller {
	return watch(ctx, ListPollInterval, func(ctx context.Context) error {
		items, err := lister.ListGroups(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		onUpdate(items)
		return nil
	})
}

// WatchUnreadCount refreshes the notification badge at UnreadPollInterval.
func WatchUnreadCount(ctx context.Context, counter UnreadCounter, onUpdate func(int64)) *Poller {
	return watch(ctx, UnreadPollInterval, func(ctx context.Context) error {
		count, err := counter.UnreadNotificationCount(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		onUpdate(count)
		return nil
	})
}

func watch(ctx context.Context, interval time.Duration, fetch func(ctx context.Context) error) *Poller {
	p := NewPoller(interval, fetch)
	p.Start(ctx)
	return p
}
