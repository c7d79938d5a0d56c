package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/wlanscan/pkg/plugin"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

func TestPublishDispatchesToTopicAndAll(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var topic, all int
	bus.Subscribe("wlan.scan.started", func(context.Context, plugin.Event) { topic++ })
	bus.SubscribeAll(func(context.Context, plugin.Event) { all++ })

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "wlan.scan.started"})
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "wlan.scan.progress"})

	if topic != 1 {
		t.Errorf("topic handler calls = %d, want 1", topic)
	}
	if all != 2 {
		t.Errorf("wildcard handler calls = %d, want 2", all)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())
	calls := 0
	unsub := bus.Subscribe("t", func(context.Context, plugin.Event) { calls++ })
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "t"})
	unsub()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "t"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPanickingHandlerIsContained(t *testing.T) {
	bus := NewBus(zap.NewNop())
	reached := false
	bus.Subscribe("t", func(context.Context, plugin.Event) { panic("boom") })
	bus.Subscribe("t", func(context.Context, plugin.Event) { reached = true })
	if err := bus.Publish(context.Background(), plugin.Event{Topic: "t"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !reached {
		t.Error("second handler did not run after a panic")
	}
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var wg sync.WaitGroup
	wg.Add(2)
	bus.Subscribe("t", func(context.Context, plugin.Event) { wg.Done() })
	bus.SubscribeAll(func(context.Context, plugin.Event) { wg.Done() })
	bus.PublishAsync(context.Background(), plugin.Event{Topic: "t"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run")
	}
}

func TestPublishCountsTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())
	before := published(t, "count.me")
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "count.me"})
	bus.PublishAsync(context.Background(), plugin.Event{Topic: "count.me"})
	if got := published(t, "count.me") - before; got != 2 {
		t.Errorf("events counted = %v, want 2", got)
	}
}

func published(t *testing.T, topic string) float64 {
	t.Helper()
	var m dto.Metric
	if err := eventsPublished.WithLabelValues(topic).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
