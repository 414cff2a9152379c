package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents different types of events
type EventType string

const (
	EventCodeGenerated         EventType = "code.generated"
	EventScanAccepted          EventType = "scan.accepted"
	EventScanRejected          EventType = "scan.rejected"
	EventAttendanceCheckedIn   EventType = "attendance.checked_in"
	EventAttendanceCheckedOut  EventType = "attendance.checked_out"
	EventTrainingStarted       EventType = "training.started"
	EventTrainingCompleted     EventType = "training.completed"
	EventParticipationRecorded EventType = "participation.recorded"
	EventCompetencyAssessed    EventType = "competency.assessed"
	EventCertificateIssued     EventType = "certificate.issued"
)

// AllEventTypes lists every event the check-in system publishes
func AllEventTypes() []EventType {
	return []EventType{
		EventCodeGenerated,
		EventScanAccepted,
		EventScanRejected,
		EventAttendanceCheckedIn,
		EventAttendanceCheckedOut,
		EventTrainingStarted,
		EventTrainingCompleted,
		EventParticipationRecorded,
		EventCompetencyAssessed,
		EventCertificateIssued,
	}
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType EventType, userID string, data map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		UserID:    userID,
	}
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event) error

// Publisher is the subset of PubSub that producers depend on
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PubSub provides simple in-memory publish/subscribe functionality
type PubSub struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	logger   *logrus.Logger
	inflight sync.WaitGroup
}

// NewPubSub creates a new PubSub instance
func NewPubSub(logger *logrus.Logger) *PubSub {
	if logger == nil {
		logger = logrus.New()
	}

	return &PubSub{
		handlers: make(map[EventType][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type
func (ps *PubSub) Subscribe(eventType EventType, handler Handler) {
	if handler == nil {
		ps.logger.WithField("event_type", eventType).Warn("attempted to subscribe nil handler")
		return
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.handlers[eventType] = append(ps.handlers[eventType], handler)

	ps.logger.WithFields(logrus.Fields{
		"event_type":    eventType,
		"handler_count": len(ps.handlers[eventType]),
	}).Debug("handler subscribed to event")
}

// SubscribeAll registers a handler for every known event type
func (ps *PubSub) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		ps.Subscribe(eventType, handler)
	}
}

// Publish sends an event to all registered handlers without blocking the caller
func (ps *PubSub) Publish(ctx context.Context, event Event) {
	if event.Type == "" {
		ps.logger.Warn("attempted to publish event with empty type")
		return
	}

	ps.mu.RLock()
	handlers := append([]Handler(nil), ps.handlers[event.Type]...)
	ps.mu.RUnlock()

	if len(handlers) == 0 {
		ps.logger.WithField("event_type", event.Type).Debug("no handlers for event type")
		return
	}

	ps.logger.WithFields(logrus.Fields{
		"event_type":    event.Type,
		"handler_count": len(handlers),
		"user_id":       event.UserID,
	}).Debug("publishing event")

	for _, handler := range handlers {
		ps.inflight.Add(1)
		go func(h Handler) {
			defer ps.inflight.Done()
			if err := h(ctx, event); err != nil {
				ps.logger.WithFields(logrus.Fields{
					"event_type": event.Type,
					"user_id":    event.UserID,
					"error":      err.Error(),
				}).Error("handler failed to process event")
			}
		}(handler)
	}
}

// Wait blocks until every handler started by Publish has returned
func (ps *PubSub) Wait() {
	ps.inflight.Wait()
}

// GetHandlerCount returns the number of handlers for an event type
func (ps *PubSub) GetHandlerCount(eventType EventType) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.handlers[eventType])
}

// Clear removes all handlers for an event type, or all handlers if eventType is empty
func (ps *PubSub) Clear(eventType EventType) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if eventType == "" {
		ps.handlers = make(map[EventType][]Handler)
		ps.logger.Info("cleared all event handlers")
	} else {
		delete(ps.handlers, eventType)
		ps.logger.WithField("event_type", eventType).Debug("cleared handlers for event type")
	}
}

// AuditHandler logs every event it receives at info level
func AuditHandler(logger *logrus.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		fields := logrus.Fields{
			"event_type": event.Type,
			"user_id":    event.UserID,
			"timestamp":  event.Timestamp,
		}
		for k, v := range event.Data {
			fields[k] = v
		}
		logger.WithFields(fields).Info("audit")
		return nil
	}
}

// Discard is a Publisher that drops every event
type Discard struct{}

// Publish implements Publisher
func (Discard) Publish(context.Context, Event) {}
