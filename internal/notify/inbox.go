package notify

import (
	"context"
	"fmt"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/model"
)

type InboxStore interface {
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	DeleteNotification(ctx context.Context, id, recipientID string) (bool, error)
}

// Inbox is the owner-scoped read side of notifications.
type Inbox struct {
	store InboxStore
}

func NewInbox(store InboxStore) *Inbox {
	return &Inbox{store: store}
}

type Page struct {
	Items  []*model.Notification `json:"items"`
	Unread int64                 `json:"unread"`
}

func (i *Inbox) List(ctx context.Context, recipientID string, unreadOnly bool, limit int) (*Page, error) {
	items, err := i.store.ListNotifications(ctx, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := i.store.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	if items == nil {
		items = []*model.Notification{}
	}
	return &Page{Items: items, Unread: unread}, nil
}

func (i *Inbox) MarkRead(ctx context.Context, recipientID, id string) error {
	ok, err := i.store.MarkRead(ctx, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if !ok {
		return apperr.NotFound("notification %s not found", id)
	}
	return nil
}

func (i *Inbox) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	n, err := i.store.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

func (i *Inbox) Delete(ctx context.Context, recipientID, id string) error {
	ok, err := i.store.DeleteNotification(ctx, id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if !ok {
		return apperr.NotFound("notification %s not found", id)
	}
	return nil
}
