package bus

import (
	"sync"
	"time"
)

// Topic names the event streams the engine publishes.
type Topic string

const (
	TopicSignal           Topic = "signal"
	TopicSignalLive       Topic = "signal-live"
	TopicSignalBacktest   Topic = "signal-backtest"
	TopicDoneLive         Topic = "done-live"
	TopicDoneBacktest     Topic = "done-backtest"
	TopicDoneWalker       Topic = "done-walker"
	TopicProgressBacktest Topic = "progress-backtest"
	TopicProgressWalker   Topic = "progress-walker"
	TopicPartialProfit    Topic = "partial-profit"
	TopicPartialLoss      Topic = "partial-loss"
	TopicBreakeven        Topic = "breakeven"
	TopicRiskRejection    Topic = "risk-rejection"
	TopicPingScheduled    Topic = "ping-scheduled"
	TopicPingActive       Topic = "ping-active"
	TopicPerformance      Topic = "performance"
	TopicError            Topic = "error"
	TopicExit             Topic = "exit"
	TopicValidationError  Topic = "validation-error"
)

// Event is one published item.
type Event struct {
	Topic Topic
	At    time.Time
	Data  any
}

// Handler consumes events. Handlers for one subscription run sequentially;
// a slow handler delays only its own subscription.
type Handler func(Event)

// Bus is an in-process publish/subscribe hub. Every subscription owns a
// FIFO queue drained by a single goroutine, so each subscriber sees events
// in publication order regardless of handler latency. There is no ordering
// guarantee across subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[Topic][]*subscription
	all    []*subscription
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[Topic][]*subscription)}
}

// Subscribe registers h for one topic. The returned func cancels the
// subscription after its queue drains.
func (b *Bus) Subscribe(topic Topic, h Handler) (cancel func()) {
	return b.add(func(s *subscription) {
		b.subs[topic] = append(b.subs[topic], s)
	}, h)
}

// SubscribeAll registers h for every topic.
func (b *Bus) SubscribeAll(h Handler) (cancel func()) {
	return b.add(func(s *subscription) {
		b.all = append(b.all, s)
	}, h)
}

func (b *Bus) add(attach func(*subscription), h Handler) func() {
	s := newSubscription(h)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.stop()
		return func() {}
	}
	attach(s)
	b.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.detach(s)
			s.stop()
		})
	}
}

func (b *Bus) detach(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, list := range b.subs {
		b.subs[topic] = remove(list, target)
	}
	b.all = remove(b.all, target)
}

func remove(list []*subscription, target *subscription) []*subscription {
	for i, s := range list {
		if s == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Publish enqueues the event for every matching subscription. It never
// blocks on subscriber handlers.
func (b *Bus) Publish(topic Topic, data any) {
	ev := Event{Topic: topic, At: time.Now().UTC(), Data: data}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	targets := make([]*subscription, 0, len(b.subs[topic])+len(b.all))
	targets = append(targets, b.subs[topic]...)
	targets = append(targets, b.all...)
	b.mu.Unlock()

	for _, s := range targets {
		s.push(ev)
	}
}

// Close stops delivery. Queued events are drained before the subscriber
// goroutines exit; Close waits for the drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var targets []*subscription
	for _, list := range b.subs {
		targets = append(targets, list...)
	}
	targets = append(targets, b.all...)
	b.subs = make(map[Topic][]*subscription)
	b.all = nil
	b.mu.Unlock()

	for _, s := range targets {
		s.stop()
	}
	for _, s := range targets {
		<-s.done
	}
}

// subscription is a one-goroutine serial executor with an unbounded FIFO.
type subscription struct {
	handler Handler

	mu      sync.Mutex
	queue   []Event
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

func newSubscription(h Handler) *subscription {
	return &subscription{
		handler: h,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *subscription) push(ev Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.notify()
}

func (s *subscription) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	s.notify()
}

func (s *subscription) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.wake
			continue
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handler(ev)
	}
}
