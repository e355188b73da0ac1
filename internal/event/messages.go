package event

import (
	"encoding/json"
	"fmt"
	"time"

	"darky/internal/core"
)

// GiftEvent carries the full gift payload so consumers do not need read
// access to the local store. For deletes only the ID and year matter; the
// rest of the gift is included for logging.
type GiftEvent struct {
	Action    string    `json:"action"`
	Gift      core.Gift `json:"gift"`
	Timestamp time.Time `json:"timestamp"`
}

// NewGiftEvent creates an event for a committed gift change
func NewGiftEvent(action string, g core.Gift) *GiftEvent {
	return &GiftEvent{
		Action:    action,
		Gift:      g,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *GiftEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GiftEventFromJSON creates an event from JSON bytes
func GiftEventFromJSON(data []byte) (*GiftEvent, error) {
	var e GiftEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Action == "" {
		return nil, fmt.Errorf("event missing action")
	}
	return &e, nil
}
