package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventEvaluation       EventType = "EVALUATION"
	EventStopMoved        EventType = "STOP_MOVED"
	EventBreakevenSet     EventType = "BREAKEVEN_SET"
	EventTrailingAdvanced EventType = "TRAILING_ADVANCED"
	EventExitSignal       EventType = "EXIT_SIGNAL"
	EventEmergencyExit    EventType = "EMERGENCY_EXIT"
	EventPartialClose     EventType = "PARTIAL_CLOSE"
	EventPositionRejected EventType = "POSITION_REJECTED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishEvaluation publishes a per-tick evaluation summary
func (eb *EventBus) PublishEvaluation(decisionID, positionID, symbol string, price float64, actionCount int, shouldClose bool) {
	eb.Publish(Event{
		Type: EventEvaluation,
		Data: map[string]interface{}{
			"decision_id":  decisionID,
			"position_id":  positionID,
			"symbol":       symbol,
			"price":        price,
			"action_count": actionCount,
			"should_close": shouldClose,
		},
	})
}

// PublishStopMoved publishes a stop-loss movement event
func (eb *EventBus) PublishStopMoved(positionID, symbol string, oldStop, newStop float64) {
	eb.Publish(Event{
		Type: EventStopMoved,
		Data: map[string]interface{}{
			"position_id": positionID,
			"symbol":      symbol,
			"old_stop":    oldStop,
			"new_stop":    newStop,
		},
	})
}

// PublishBreakevenSet publishes a breakeven activation event
func (eb *EventBus) PublishBreakevenSet(positionID, symbol string, stopLoss float64) {
	eb.Publish(Event{
		Type: EventBreakevenSet,
		Data: map[string]interface{}{
			"position_id": positionID,
			"symbol":      symbol,
			"stop_loss":   stopLoss,
		},
	})
}

// PublishTrailingAdvanced publishes a stepped trailing advance event
func (eb *EventBus) PublishTrailingAdvanced(positionID, symbol string, step int, stopLoss float64) {
	eb.Publish(Event{
		Type: EventTrailingAdvanced,
		Data: map[string]interface{}{
			"position_id": positionID,
			"symbol":      symbol,
			"step":        step,
			"stop_loss":   stopLoss,
		},
	})
}

// PublishExitSignal publishes a close recommendation
func (eb *EventBus) PublishExitSignal(positionID, symbol, reason string, price float64) {
	eb.Publish(Event{
		Type: EventExitSignal,
		Data: map[string]interface{}{
			"position_id": positionID,
			"symbol":      symbol,
			"reason":      reason,
			"price":       price,
		},
	})
}

// PublishEmergencyExit publishes an emergency exit event
func (eb *EventBus) PublishEmergencyExit(positionID, symbol, trigger string) {
	eb.Publish(Event{
		Type: EventEmergencyExit,
		Data: map[string]interface{}{
			"position_id": positionID,
			"symbol":      symbol,
			"trigger":     trigger,
		},
	})
}

// PublishPartialClose publishes a partial close fill event
func (eb *EventBus) PublishPartialClose(positionID, symbol string, level int, quantity, price, realizedPnL float64) {
	eb.Publish(Event{
		Type: EventPartialClose,
		Data: map[string]interface{}{
			"position_id":  positionID,
			"symbol":       symbol,
			"level":        level,
			"quantity":     quantity,
			"price":        price,
			"realized_pnl": realizedPnL,
		},
	})
}

// PublishPositionRejected publishes an admission rejection
func (eb *EventBus) PublishPositionRejected(symbol, reason string) {
	eb.Publish(Event{
		Type: EventPositionRejected,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
