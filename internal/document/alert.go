package document

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Alert is a short-lived record stored under AlertPrefix+ID.
type Alert struct {
	ID                 string  `json:"-"`
	Timestamp          string  `json:"timestamp"`
	Message            string  `json:"message"`
	Priority           int     `json:"priority"`
	DisplayDuration    float64 `json:"display_duration"`
	DeleteAfterDisplay bool    `json:"delete_after_display"`
}

// ParseAlert decodes the body stored at key. The id always comes from the key.
func ParseAlert(key string, data []byte) (Alert, error) {
	a := Alert{
		ID:              AlertID(key),
		DisplayDuration: 5.0,
	}
	var body struct {
		Timestamp          *string  `json:"timestamp"`
		Message            *string  `json:"message"`
		Priority           *int     `json:"priority"`
		DisplayDuration    *float64 `json:"display_duration"`
		DeleteAfterDisplay *bool    `json:"delete_after_display"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return Alert{}, fmt.Errorf("%w: alert %s: %v", ErrInvalid, key, err)
	}
	if body.Timestamp == nil {
		return Alert{}, fmt.Errorf("%w: alert %s: timestamp is required", ErrInvalid, key)
	}
	if body.Message == nil {
		return Alert{}, fmt.Errorf("%w: alert %s: message is required", ErrInvalid, key)
	}
	a.Timestamp = *body.Timestamp
	a.Message = *body.Message
	if body.Priority != nil {
		a.Priority = *body.Priority
	}
	if body.DisplayDuration != nil {
		a.DisplayDuration = *body.DisplayDuration
	}
	if body.DeleteAfterDisplay != nil {
		a.DeleteAfterDisplay = *body.DeleteAfterDisplay
	}
	return a, nil
}

// Key returns the store key of a.
func (a Alert) Key() string {
	return AlertKey(a.ID)
}

// SortAlerts orders alerts by ascending priority, then timestamp.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Priority != alerts[j].Priority {
			return alerts[i].Priority < alerts[j].Priority
		}
		return alerts[i].Timestamp < alerts[j].Timestamp
	})
}
