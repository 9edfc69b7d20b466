// Package signals dispatches the comment_will_be_posted and
// comment_was_posted notifications to registered receivers.
package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/emilythestrangee/wikicomments/backend/internal/models"
)

// Event is passed to every receiver. Receivers must not retain it.
type Event struct {
	Comment    *models.Comment
	UserID     int
	RemoteAddr string
}

// PreSaveFunc returns false to veto the save. A non-nil error aborts the save
// as a fault rather than a veto.
type PreSaveFunc func(ctx context.Context, ev *Event) (bool, error)

type PostSaveFunc func(ctx context.Context, ev *Event)

// VetoError names the receiver that rejected a comment.
type VetoError struct {
	Receiver string
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("comment_will_be_posted receiver %q killed the comment", e.Receiver)
}

type preReceiver struct {
	name string
	fn   PreSaveFunc
}

type postReceiver struct {
	name string
	fn   PostSaveFunc
}

// Bus is safe for concurrent use; receivers are normally registered at startup.
type Bus struct {
	mu   sync.RWMutex
	pre  []preReceiver
	post []postReceiver
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnWillBePosted(name string, fn PreSaveFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pre = append(b.pre, preReceiver{name: name, fn: fn})
}

func (b *Bus) OnWasPosted(name string, fn PostSaveFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.post = append(b.post, postReceiver{name: name, fn: fn})
}

// WillBePosted runs pre-save receivers in registration order and stops at the
// first veto or error.
func (b *Bus) WillBePosted(ctx context.Context, ev *Event) error {
	b.mu.RLock()
	receivers := b.pre
	b.mu.RUnlock()

	for _, r := range receivers {
		ok, err := r.fn(ctx, ev)
		if err != nil {
			return fmt.Errorf("comment_will_be_posted receiver %q: %w", r.name, err)
		}
		if !ok {
			return &VetoError{Receiver: r.name}
		}
	}
	return nil
}

// WasPosted runs every post-save receiver in registration order.
func (b *Bus) WasPosted(ctx context.Context, ev *Event) {
	b.mu.RLock()
	receivers := b.post
	b.mu.RUnlock()

	for _, r := range receivers {
		r.fn(ctx, ev)
	}
}

// Receivers lists registered receiver names, pre-save first.
func (b *Bus) Receivers() (pre, post []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, r := range b.pre {
		pre = append(pre, r.name)
	}
	for _, r := range b.post {
		post = append(post, r.name)
	}
	return pre, post
}
