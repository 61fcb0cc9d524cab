package events

import (
	"encoding/json"
	"sync"
	"time"

	"unispace/internal/models"
)

const (
	EventBookingCreated    = "booking_created"
	EventBookingApproved   = "booking_approved"
	EventBookingRejected   = "booking_rejected"
	EventBookingCanceled   = "booking_canceled"
	EventBookingCheckedIn  = "booking_checked_in"
	EventBookingCheckedOut = "booking_checked_out"
	EventBookingNoShow     = "booking_no_show"
)

// BookingEventPayload is the booking snapshot handed to event consumers
// (metrics, notification outbox, audit).
type BookingEventPayload struct {
	BookingID    string            `json:"booking_id"`
	FacilityID   string            `json:"facility_id"`
	RequesterID  string            `json:"requester_id"`
	Status       models.Status     `json:"status"`
	Attendance   models.Attendance `json:"attendance,omitempty"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	TicketCode   string            `json:"ticket_code,omitempty"`
	DecidedBy    string            `json:"decided_by,omitempty"`
	ChangedBy    string            `json:"changed_by,omitempty"`
	TriggeredVia string            `json:"triggered_via,omitempty"`
}

// Marshal serializes the payload for outbox storage.
func (p BookingEventPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// Snapshot builds the event payload for a booking.
func Snapshot(b *models.Booking, changedBy string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:   b.ID,
		FacilityID:  b.FacilityID,
		RequesterID: b.RequesterID,
		Status:      b.Status,
		Attendance:  b.Attendance,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		TicketCode:  b.TicketCode,
		DecidedBy:   b.DecidedBy,
		ChangedBy:   changedBy,
	}
}
