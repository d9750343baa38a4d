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

package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain pops every queued event without blocking on new ones.
func drain(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var out []Event
	for sub.Pending() > 0 {
		ev, err := sub.Next(context.Background())
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func sequences(events []Event) []uint64 {
	out := make([]uint64, len(events))
	for i, ev := range events {
		out[i] = ev.Sequence
	}
	return out
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := New(Options{})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	b.Publish(topic, Event{Kind: KindRunStarted, RunID: "run-1"})
	b.Publish(topic, Event{Kind: KindBatchStarted, RunID: "run-1", Batch: 1})
	b.Publish(topic, Event{Kind: KindBatchCompleted, RunID: "run-1", Batch: 1})

	got := drain(t, sub)
	require.Len(t, got, 3)
	assert.Equal(t, []Kind{KindRunStarted, KindBatchStarted, KindBatchCompleted}, kinds(got))
	assert.Equal(t, []uint64{1, 2, 3}, sequences(got))
	for _, ev := range got {
		assert.Equal(t, topic, ev.Topic)
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	b := New(Options{})
	subA := b.Subscribe(RunTopic("a"), 0)
	subB := b.Subscribe(RunTopic("b"), 0)
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	b.Publish(RunTopic("a"), Event{Kind: KindRunStarted, RunID: "a"})
	b.Publish(RunTopic("b"), Event{Kind: KindRunStarted, RunID: "b"})
	b.Publish(RunTopic("b"), Event{Kind: KindRunCompleted, RunID: "b"})

	assert.Equal(t, 1, subA.Pending())
	assert.Equal(t, 2, subB.Pending())
	assert.Equal(t, uint64(1), b.LastSequence(RunTopic("a")))
	assert.Equal(t, uint64(2), b.LastSequence(RunTopic("b")))
}

func TestSubscribeReplaysFromCursor(t *testing.T) {
	b := New(Options{})
	topic := RunTopic("run-1")
	for i := 1; i <= 5; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1", Batch: i})
	}

	tests := []struct {
		name   string
		cursor uint64
		want   []uint64
	}{
		{name: "from start", cursor: 0, want: []uint64{1, 2, 3, 4, 5}},
		{name: "mid stream", cursor: 3, want: []uint64{4, 5}},
		{name: "tail only", cursor: b.LastSequence(topic), want: []uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := b.Subscribe(topic, tt.cursor)
			defer sub.Unsubscribe()
			assert.Equal(t, tt.want, sequences(drain(t, sub)))
		})
	}
}

func TestSubscribeTailsAfterReplay(t *testing.T) {
	b := New(Options{})
	topic := RunTopic("run-1")
	b.Publish(topic, Event{Kind: KindRunStarted, RunID: "run-1"})
	b.Publish(topic, Event{Kind: KindBatchStarted, RunID: "run-1", Batch: 1})

	sub := b.Subscribe(topic, 1)
	defer sub.Unsubscribe()
	b.Publish(topic, Event{Kind: KindBatchCompleted, RunID: "run-1", Batch: 1})

	got := drain(t, sub)
	assert.Equal(t, []uint64{2, 3}, sequences(got))
	assert.Equal(t, []Kind{KindBatchStarted, KindBatchCompleted}, kinds(got))
}

func TestSubscribeFlagsEvictedHistory(t *testing.T) {
	b := New(Options{Retention: 4})
	topic := RunTopic("run-1")
	for i := 1; i <= 10; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
	}

	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	got := drain(t, sub)
	require.Len(t, got, 5)
	assert.Equal(t, KindLag, got[0].Kind)
	assert.Equal(t, uint64(1), got[0].Sequence)
	assert.Equal(t, []uint64{7, 8, 9, 10}, sequences(got[1:]))
}

func TestOverflowDropsOldestAndMarksLag(t *testing.T) {
	b := New(Options{QueueSize: 4})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	for i := 1; i <= 10; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
	}

	got := drain(t, sub)
	require.Len(t, got, 4)
	assert.Equal(t, KindLag, got[0].Kind)
	assert.Equal(t, uint64(1), got[0].Sequence, "marker names the first lost event")
	assert.Equal(t, []uint64{8, 9, 10}, sequences(got[1:]), "newest events survive")
}

func TestOverflowInsertsSingleLagMarker(t *testing.T) {
	b := New(Options{QueueSize: 3})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	for i := 1; i <= 20; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
	}

	markers := 0
	for _, ev := range drain(t, sub) {
		if ev.Kind == KindLag {
			markers++
		}
	}
	assert.Equal(t, 1, markers)
}

func TestLagClearsAfterDrain(t *testing.T) {
	b := New(Options{QueueSize: 2})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	for i := 1; i <= 4; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
	}
	first := drain(t, sub)
	require.Equal(t, KindLag, first[0].Kind)

	// A second overflow after recovery earns a fresh marker.
	for i := 1; i <= 4; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
	}
	second := drain(t, sub)
	require.NotEmpty(t, second)
	assert.Equal(t, KindLag, second[0].Kind)
}

func TestTerminalEventsSurviveOverflow(t *testing.T) {
	b := New(Options{QueueSize: 4})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	for i := 1; i <= 4; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
	}
	b.Publish(topic, Event{Kind: KindRunCompleted, RunID: "run-1"})
	for i := 1; i <= 5; i++ {
		b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
	}

	terminals := 0
	for _, ev := range drain(t, sub) {
		if ev.Kind == KindRunCompleted {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "terminal event must not be evicted")
}

func TestQueueGrowsWhenOnlyTerminalsRemain(t *testing.T) {
	b := New(Options{QueueSize: 2})
	sub := b.Subscribe(GlobalTopic, 0)
	defer sub.Unsubscribe()

	for i := 1; i <= 3; i++ {
		b.Publish(GlobalTopic, Event{Kind: KindRunCompleted, RunID: "run"})
	}

	got := drain(t, sub)
	require.Len(t, got, 3)
	for _, ev := range got {
		assert.Equal(t, KindRunCompleted, ev.Kind)
	}
}

func TestNextBlocksUntilPublish(t *testing.T) {
	b := New(Options{})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	got := make(chan Event, 1)
	go func() {
		ev, err := sub.Next(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	time.Sleep(20 * time.Millisecond)
	b.Publish(topic, Event{Kind: KindBatchStarted, RunID: "run-1", Batch: 2})

	select {
	case ev := <-got:
		assert.Equal(t, KindBatchStarted, ev.Kind)
		assert.Equal(t, 2, ev.Batch)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never woke after publish")
	}
}

func TestNextHonorsContext(t *testing.T) {
	b := New(Options{})
	sub := b.Subscribe(GlobalTopic, 0)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnsubscribeDrainsThenCloses(t *testing.T) {
	b := New(Options{})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)

	b.Publish(topic, Event{Kind: KindRunStarted, RunID: "run-1"})
	b.Publish(topic, Event{Kind: KindRunCompleted, RunID: "run-1"})
	sub.Unsubscribe()

	ctx := context.Background()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindRunStarted, ev.Kind)
	ev, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindRunCompleted, ev.Kind)

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	// Publishes after unsubscribe never reach the queue.
	b.Publish(topic, Event{Kind: KindBatchStarted, RunID: "run-1"})
	assert.Equal(t, 0, sub.Pending())
}

func TestDropTopicClosesSubscribers(t *testing.T) {
	b := New(Options{})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)

	b.Publish(topic, Event{Kind: KindRunCompleted, RunID: "run-1"})
	b.DropTopic(topic)

	ev, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindRunCompleted, ev.Kind)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, uint64(0), b.LastSequence(topic))
}

func TestCloseWakesBlockedSubscribers(t *testing.T) {
	b := New(Options{})
	sub := b.Subscribe(GlobalTopic, 0)

	errs := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never woke after close")
	}

	closedSub := b.Subscribe(GlobalTopic, 0)
	_, err := closedSub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentPublishersKeepSubscriberOrder(t *testing.T) {
	b := New(Options{QueueSize: 512})
	topic := RunTopic("run-1")
	sub := b.Subscribe(topic, 0)
	defer sub.Unsubscribe()

	const publishers = 4
	const perPublisher = 50

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				b.Publish(topic, Event{Kind: KindBatchProgress, RunID: "run-1"})
			}
		}()
	}
	wg.Wait()

	got := drain(t, sub)
	require.Len(t, got, publishers*perPublisher)
	for i := 1; i < len(got); i++ {
		require.Greater(t, got[i].Sequence, got[i-1].Sequence,
			"per-subscriber delivery must follow publication order")
	}
	assert.Equal(t, uint64(publishers*perPublisher), b.LastSequence(topic))
}

func TestTerminalKinds(t *testing.T) {
	assert.True(t, KindRunCompleted.Terminal())
	assert.True(t, KindRunFailed.Terminal())
	assert.True(t, KindRunCancelled.Terminal())
	assert.False(t, KindBatchCompleted.Terminal())
	assert.False(t, KindBatchFailed.Terminal())
	assert.False(t, KindLag.Terminal())
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "run/abc", RunTopic("abc"))
	assert.Equal(t, "batch_rerun/abc", BatchRerunTopic("abc"))
	assert.Equal(t, "run", topicClass("run/abc"))
	assert.Equal(t, "batch_rerun", topicClass("batch_rerun/abc"))
	assert.Equal(t, "global", topicClass(GlobalTopic))
}
