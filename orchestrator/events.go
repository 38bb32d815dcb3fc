package orchestrator

import (
	"sync"
	"time"
)

// Event types emitted by the orchestrator.
const (
	EventWorkflowStarted   = "workflow_started"
	EventStepStarted       = "step_started"
	EventStepCompleted     = "step_completed"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowFailed    = "workflow_failed"
	EventWorkflowCancelled = "workflow_cancelled"
)

// Event describes one observable state change of a workflow instance.
type Event struct {
	Type       string         `json:"type"`
	InstanceID string         `json:"instance_id"`
	WorkflowID string         `json:"workflow_id"`
	StepID     string         `json:"step_id,omitempty"`
	Status     string         `json:"status,omitempty"`
	Error      string         `json:"error,omitempty"`
	Time       time.Time      `json:"time"`
	Data       map[string]any `json:"data,omitempty"`
}

// Listener receives orchestrator events on a bounded queue. When the queue is
// full new events are dropped, never blocking workflow execution.
type Listener struct {
	types map[string]struct{} // empty means all types
	ch    chan Event

	closeOnce sync.Once
	remove    func(*Listener)
}

// C returns the event channel. It is closed when the listener is closed.
func (l *Listener) C() <-chan Event { return l.ch }

// Close detaches the listener and closes its channel. Safe to call more than once.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		l.remove(l)
		close(l.ch)
	})
}

func (l *Listener) wants(eventType string) bool {
	if len(l.types) == 0 {
		return true
	}

	_, ok := l.types[eventType]

	return ok
}

// Listen subscribes to orchestrator events. Without arguments the listener
// receives every event type; otherwise only the named types.
func (o *Orchestrator) Listen(types ...string) *Listener {
	l := &Listener{
		types:  map[string]struct{}{},
		ch:     make(chan Event, o.cfg.EventBufferSize),
		remove: o.removeListener,
	}

	for _, t := range types {
		l.types[t] = struct{}{}
	}

	o.lmu.Lock()
	o.listeners = append(o.listeners, l)
	o.lmu.Unlock()

	return l
}

func (o *Orchestrator) removeListener(l *Listener) {
	o.lmu.Lock()
	defer o.lmu.Unlock()

	for i, cur := range o.listeners {
		if cur == l {
			o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
			return
		}
	}
}

// emit fans an event out to the matching listeners. Emission never blocks:
// a full listener queue drops the event with a warning.
func (o *Orchestrator) emit(ev Event) {
	ev.Time = time.Now()

	o.lmu.Lock()
	defer o.lmu.Unlock()

	for _, l := range o.listeners {
		if !l.wants(ev.Type) {
			continue
		}

		select {
		case l.ch <- ev:
		default:
			o.logger.Warn("event dropped, listener queue full",
				"type", ev.Type, "instance_id", ev.InstanceID)
		}
	}

	o.logger.Info("workflow event", "type", ev.Type, "instance_id", ev.InstanceID, "step_id", ev.StepID)
}
