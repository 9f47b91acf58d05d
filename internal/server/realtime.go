package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventNoteChanged = "note-change"
	realtimeEventHeartbeat   = "heartbeat"
)

// RealtimeMessage announces a change to a subreddit's notes document so
// other open sessions can invalidate their caches.
type RealtimeMessage struct {
	Subreddit string
	EventType string
	User      string
	Moderator string
	Timestamp time.Time
}

// RealtimeDispatcher fans note-change events out to the sessions subscribed
// to each subreddit.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, subreddit string) (<-chan RealtimeMessage, func()) {
	if subreddit == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(subreddit, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(subreddit, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.Subreddit == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.Subreddit]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(subreddit string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[subreddit]; !ok {
		d.subscribers[subreddit] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[subreddit][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subreddit string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[subreddit]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, subreddit)
		}
	}
	d.mu.Unlock()
}
