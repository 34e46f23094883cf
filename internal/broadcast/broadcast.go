package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel completions are published on.
const Channel = "console:workorder:completed"

// Completion is announced after a work order was accepted by the backend.
type Completion struct {
	CallID  string `json:"callId"`
	Success bool   `json:"success"`
}

type Broadcaster interface {
	PublishCompletion(ctx context.Context, c Completion) error
}

// RedisBroadcaster publishes completions for listeners outside the process.
type RedisBroadcaster struct {
	rdb     redis.Cmdable
	channel string
}

func NewRedis(rdb redis.Cmdable) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: Channel}
}

func (r *RedisBroadcaster) PublishCompletion(ctx context.Context, c Completion) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("broadcast: publish: %w", err)
	}
	return nil
}

// Local fans completions out to in-process listeners.
type Local struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]func(Completion)
}

func NewLocal() *Local {
	return &Local{listeners: map[int]func(Completion){}}
}

// Listen registers fn and returns a function that removes it.
func (l *Local) Listen(fn func(Completion)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.listeners[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners, id)
			l.mu.Unlock()
		})
	}
}

func (l *Local) PublishCompletion(_ context.Context, c Completion) error {
	l.mu.RLock()
	fns := make([]func(Completion), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
	return nil
}
