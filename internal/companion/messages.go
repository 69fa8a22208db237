package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/phonelink/internal/util"
)

// ScheduledMessage is a text message the phone should send at a future
// time. The desktop only manages the records; the phone executes them.
type ScheduledMessage struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	SendAt    int64  `json:"sendAt"` // unix millis
	CreatedAt int64  `json:"createdAt"`
}

// MessageBook manages scheduled messages for one user against the store.
type MessageBook struct {
	store  Store
	userID string
}

// NewMessageBook creates a message book for the given user.
func NewMessageBook(st Store, userID string) *MessageBook {
	return &MessageBook{store: st, userID: userID}
}

func (b *MessageBook) path(id string) string {
	return userPath(b.userID, leafScheduled) + "/" + id
}

// Create stores a new scheduled message and returns its id.
func (b *MessageBook) Create(recipient, body string, sendAt time.Time) (string, error) {
	if recipient == "" || body == "" {
		return "", fmt.Errorf("scheduled message needs a recipient and a body")
	}

	msg := ScheduledMessage{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Body:      body,
		SendAt:    sendAt.UnixMilli(),
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := b.store.Publish(b.path(msg.ID), msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Update overwrites an existing scheduled message, keeping its id.
func (b *MessageBook) Update(msg ScheduledMessage) error {
	if msg.ID == "" {
		return fmt.Errorf("scheduled message update needs an id")
	}
	return b.store.Publish(b.path(msg.ID), msg)
}

// Delete removes a scheduled message.
func (b *MessageBook) Delete(id string) error {
	return b.store.Delete(b.path(id))
}

// Watch streams every scheduled message ever added for the user, existing
// records first, until ctx is done. Malformed records are skipped.
func (b *MessageBook) Watch(ctx context.Context) (<-chan ScheduledMessage, error) {
	sub, err := b.store.SubscribeChildAdded(userPath(b.userID, leafScheduled))
	if err != nil {
		return nil, err
	}

	out := make(chan ScheduledMessage)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				var msg ScheduledMessage
				if err := json.Unmarshal(ev.Data, &msg); err != nil {
					util.LogWarning("malformed scheduled message %s: %v", ev.Key, err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
