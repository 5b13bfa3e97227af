package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/gallery/internal/gallery"
)

// eventQueue moves store events from whichever goroutine caused them onto
// the Bubble Tea loop. push never blocks; wait delivers everything queued
// since the last delivery as one message.
type eventQueue struct {
	mu      sync.Mutex
	pending []gallery.Event
	signal  chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *eventQueue) push(ev gallery.Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []gallery.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.pending
	q.pending = nil
	return evs
}

// wait returns a command that resolves with the next batch of events.
// It must be re-issued after every storeEventsMsg.
func (q *eventQueue) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-q.done:
				return nil
			case <-q.signal:
				if evs := q.drain(); len(evs) > 0 {
					return storeEventsMsg{events: evs}
				}
			}
		}
	}
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}
