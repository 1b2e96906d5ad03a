package syncer

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type EventKind int

const (
	EventScanDone EventKind = iota
	EventPlan
	EventAction
	EventProgress
	EventWarning
)

// Event reports progress of a sync operation. Fields not relevant to the
// kind are zero.
type Event struct {
	Kind     EventKind
	Project  string
	Side     string
	Action   Action
	Path     string
	Items    int
	Pending  int
	Done     int
	Total    int
	Duration time.Duration
	Message  string
	Err      error
}

// Sink receives events. Actions run concurrently, so a Sink must be safe
// for concurrent use.
type Sink func(Event)

func Discard(Event) {}

// Tee fans every event out to each sink in turn.
func Tee(sinks ...Sink) Sink {
	return func(e Event) {
		for _, s := range sinks {
			s(e)
		}
	}
}

func LogSink(log *zap.Logger) Sink {
	return func(e Event) {
		l := log.With(zap.String("project", e.Project))

		switch e.Kind {
		case EventScanDone:
			l.Info("scan finished",
				zap.String("side", e.Side),
				zap.Int("items", e.Items),
				zap.Duration("took", e.Duration))

		case EventPlan:
			l.Info("sync plan ready",
				zap.Int("items", e.Items),
				zap.Int("pending", e.Pending))

		case EventAction:
			if e.Err != nil {
				l.Error("action failed",
					zap.String("action", string(e.Action)),
					zap.String("path", e.Path),
					zap.Error(e.Err))
				return
			}
			l.Info(string(e.Action), zap.String("path", e.Path))

		case EventProgress:
			l.Info("progress",
				zap.String("action", string(e.Action)),
				zap.Int("done", e.Done),
				zap.Int("total", e.Total))

		case EventWarning:
			l.Warn(e.Message, zap.String("path", e.Path), zap.Error(e.Err))
		}
	}
}

// Recorder collects events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Sink(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}
