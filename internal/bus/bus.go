// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bus provides the in-process event bus connecting the run
// pipeline to its observers. Publishers never block: each subscriber
// owns a bounded queue, and when a queue overflows the oldest
// non-terminal event is dropped and replaced by a single lag marker.
// Every topic retains a tail of recent events so a late subscriber can
// resume from a cursor without missing anything still retained.
package bus

import (
	"context"
	"sync"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

const (
	// DefaultQueueSize bounds each subscriber's queue.
	DefaultQueueSize = 256

	// DefaultRetention is how many events a topic keeps for replay.
	DefaultRetention = 1024
)

// ErrClosed is returned by Next once a subscription's queue is closed
// and drained.
var ErrClosed = errors.New("bus: subscription closed")

// Options configures a Bus. Zero values take the package defaults.
type Options struct {
	// QueueSize is the per-subscriber queue capacity.
	QueueSize int

	// Retention is the number of events retained per topic for
	// cursor-based replay.
	Retention int
}

// Bus is a topic-addressed publish/subscribe hub. All methods are safe
// for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topic
	opts   Options
	nextID int
	closed bool
}

// New creates a Bus with the given options.
func New(opts Options) *Bus {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Bus{
		topics: make(map[string]*topic),
		opts:   opts,
	}
}

type topic struct {
	mu       sync.Mutex
	name     string
	sequence uint64
	ring     []Event
	capacity int
	subs     map[int]*Subscription
}

// lookup returns the named topic, creating it when create is set.
func (b *Bus) lookup(name string, create bool) *topic {
	b.mu.RLock()
	t := b.topics[name]
	b.mu.RUnlock()
	if t != nil || !create {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if t = b.topics[name]; t == nil {
		t = &topic{
			name:     name,
			capacity: b.opts.Retention,
			subs:     make(map[int]*Subscription),
		}
		b.topics[name] = t
	}
	return t
}

// Publish delivers an event to every subscriber of the topic and adds
// it to the topic's replay tail. It assigns the event's topic name and
// sequence number and returns the sequence. Publish never blocks on
// slow subscribers.
func (b *Bus) Publish(topicName string, ev Event) uint64 {
	t := b.lookup(topicName, true)
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sequence++
	ev.Topic = topicName
	ev.Sequence = t.sequence

	t.ring = append(t.ring, ev)
	if len(t.ring) > t.capacity {
		t.ring = t.ring[len(t.ring)-t.capacity:]
	}

	for _, sub := range t.subs {
		sub.push(ev)
	}

	recordPublished(string(ev.Kind))
	return ev.Sequence
}

// Subscribe attaches a subscriber to a topic. Events retained with a
// sequence greater than cursor are queued immediately, then live
// events follow with no gap; pass LastSequence(topic) as the cursor to
// tail only. If the cursor predates the retained window a lag marker
// is queued first so the caller knows to refetch a snapshot.
func (b *Bus) Subscribe(topicName string, cursor uint64) *Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	closed := b.closed
	b.mu.Unlock()

	sub := &Subscription{
		bus:      b,
		topic:    topicName,
		id:       id,
		capacity: b.opts.QueueSize,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	recordSubscribed(topicClass(topicName))
	if closed {
		sub.close()
		return sub
	}

	t := b.lookup(topicName, true)
	if t == nil {
		sub.close()
		return sub
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Replay bypasses the queue bound: the backlog is at most the
	// topic's retention and the caller asked for it. A marker ahead
	// of the replay flags events already evicted from the tail.
	if len(t.ring) > 0 && cursor+1 < t.ring[0].Sequence {
		sub.queue = append(sub.queue, Event{
			Kind:     KindLag,
			Topic:    topicName,
			Sequence: cursor + 1,
			Time:     t.ring[0].Time,
		})
		sub.lag = true
	}
	for _, ev := range t.ring {
		if ev.Sequence > cursor {
			sub.queue = append(sub.queue, ev)
		}
	}
	if len(sub.queue) > 0 {
		sub.signal <- struct{}{}
	}

	t.subs[id] = sub
	return sub
}

// LastSequence returns the sequence of the most recent event published
// on the topic, or zero if nothing has been published.
func (b *Bus) LastSequence(topicName string) uint64 {
	t := b.lookup(topicName, false)
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sequence
}

// DropTopic discards a topic's retained events and closes its
// subscriptions. Subscribers still drain anything already queued.
// Used when a run is garbage-collected.
func (b *Bus) DropTopic(topicName string) {
	b.mu.Lock()
	t := b.topics[topicName]
	delete(b.topics, topicName)
	b.mu.Unlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	subs := make([]*Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.subs = make(map[int]*Subscription)
	t.ring = nil
	t.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Close shuts the bus down. Every subscription is closed; queued
// events remain readable until drained.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := make([]*topic, 0, len(b.topics))
	for _, t := range b.topics {
		topics = append(topics, t)
	}
	b.topics = make(map[string]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.mu.Lock()
		subs := make([]*Subscription, 0, len(t.subs))
		for _, sub := range t.subs {
			subs = append(subs, sub)
		}
		t.subs = make(map[int]*Subscription)
		t.mu.Unlock()
		for _, sub := range subs {
			sub.close()
		}
	}
}

// unsubscribe detaches a subscription from its topic.
func (b *Bus) unsubscribe(sub *Subscription) {
	t := b.lookup(sub.topic, false)
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.subs, sub.id)
	t.mu.Unlock()
}

// Subscription is one subscriber's view of a topic. Events are
// delivered in publication order through Next.
type Subscription struct {
	bus      *Bus
	topic    string
	id       int
	capacity int

	mu     sync.Mutex
	queue  []Event
	lag    bool
	closed bool

	signal chan struct{}
	done   chan struct{}
}

// Topic returns the topic this subscription is attached to.
func (s *Subscription) Topic() string {
	return s.topic
}

// Next blocks until an event is available and returns it. Once the
// subscription is closed and its queue drained, Next returns
// ErrClosed.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			if ev.Kind == KindLag {
				s.lag = false
			}
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Event{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.done:
			// Closed; loop to drain anything pushed before close.
		case <-s.signal:
		}
	}
}

// Pending returns the number of events waiting in the queue.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Unsubscribe detaches the subscription. Queued events remain readable
// until drained; afterwards Next returns ErrClosed.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s)
	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	recordUnsubscribed(topicClass(s.topic))
}

// push enqueues an event, evicting the oldest non-terminal entries
// when the queue is full. The first eviction in a lag episode is
// replaced in place by a marker; terminal events are never evicted and
// are appended even when nothing can be dropped.
func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for len(s.queue) >= s.capacity {
		i := s.oldestEvictable()
		if i < 0 {
			break
		}
		if s.lag {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
		} else {
			s.queue[i] = lagMarker(s.queue[i])
			s.lag = true
		}
		recordDropped(topicClass(s.topic))
	}

	s.queue = append(s.queue, ev)
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// oldestEvictable returns the index of the oldest queued event that
// may be dropped, or -1 when only terminal events and lag markers
// remain.
func (s *Subscription) oldestEvictable() int {
	for i, ev := range s.queue {
		if ev.Kind == KindLag || ev.Kind.Terminal() {
			continue
		}
		return i
	}
	return -1
}

// lagMarker builds the marker standing in for dropped events. It
// carries the sequence of the first event lost so consumers can size
// the gap.
func lagMarker(dropped Event) Event {
	return Event{
		Kind:     KindLag,
		Topic:    dropped.Topic,
		RunID:    dropped.RunID,
		Sequence: dropped.Sequence,
		Time:     dropped.Time,
	}
}
