package document

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time within one day, in seconds since midnight.
type TimeOfDay int

// Clock returns a TimeOfDay from hour, minute and second.
func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	var err error
	switch len(s) {
	case 5:
		_, err = fmt.Sscanf(s, "%02d:%02d", &h, &m)
	case 8:
		_, err = fmt.Sscanf(s, "%02d:%02d:%02d", &h, &m, &sec)
	default:
		return 0, fmt.Errorf("time of day %q: want HH:MM or HH:MM:SS", s)
	}
	if err != nil {
		return 0, fmt.Errorf("time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("time of day %q: out of range", s)
	}
	return Clock(h, m, sec), nil
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	return Clock(t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) String() string {
	h, m, s := int(t)/3600, int(t)%3600/60, int(t)%60
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
