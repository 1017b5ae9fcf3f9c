// Package document models the JSON documents kept in the store: the
// display configuration and alert records.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Kind is the widget_type discriminator.
type Kind string

const (
	KindClock     Kind = "clock"
	KindMessage   Kind = "message"
	KindAlert     Kind = "alert"
	KindAnimation Kind = "animation"
)

// DefaultDuration is the run time of a widget that does not set one.
const DefaultDuration = 5.0

// Widget is one entry of the widgets list. The concrete types are
// *ClockConfig, *MessageConfig, *AlertConfig and *AnimationConfig.
type Widget interface {
	Common() *Base
}

// Base holds the fields shared by every widget kind.
type Base struct {
	Type    Kind `json:"widget_type"`
	Enabled bool `json:"enabled"`
	// Duration caps the run time in seconds; zero or negative means no cap.
	Duration float64 `json:"duration"`
}

func (b *Base) Common() *Base { return b }

// BlinkPhase is one step of the clock colon cadence.
type BlinkPhase struct {
	Colon   bool    `json:"colon"`
	Seconds float64 `json:"seconds" validate:"gt=0"`
}

type ClockConfig struct {
	Base
	Use24Hour bool `json:"use_24_hour_format"`
	// Optional cadence overrides; empty means the built-in defaults.
	Blink24h   []BlinkPhase `json:"blink_24h,omitempty" validate:"omitempty,dive"`
	Blink12hPM []BlinkPhase `json:"blink_12h_pm,omitempty" validate:"omitempty,dive"`
}

// Scroll holds the scrolling parameters shared by text and animation widgets.
type Scroll struct {
	ScrollSpeed       float64 `json:"scroll_speed" validate:"gte=0"`
	Repeat            bool    `json:"repeat"`
	SleepBeforeRepeat float64 `json:"sleep_before_repeat" validate:"gte=0"`
}

type MessageConfig struct {
	Base
	Message       string `json:"message"`
	DynamicSource string `json:"dynamic_source,omitempty"`
	Scroll
}

type AlertConfig struct {
	Base
	Scroll
}

// Frame is one animation step.
type Frame struct {
	Segments []int `json:"segments" validate:"len=4,dive,gte=0,lte=255"`
	// Duration overrides the widget scroll speed for this frame when set.
	Duration *float64 `json:"duration,omitempty" validate:"omitempty,gte=0"`
}

type AnimationConfig struct {
	Base
	Frames        []Frame `json:"frames" validate:"dive"`
	DynamicSource string  `json:"dynamic_source,omitempty"`
	Scroll
	CronMinute string `json:"cron_minute,omitempty"`
}

// Config is the document stored under ConfigKey.
type Config struct {
	Widgets    []Widget   `json:"widgets"`
	Brightness Brightness `json:"brightness"`
}

// ErrInvalid wraps every decode or validation failure.
var ErrInvalid = errors.New("invalid document")

// NewWidget returns a widget of kind k populated with its defaults.
func NewWidget(k Kind) (Widget, error) {
	base := Base{Type: k, Enabled: true, Duration: DefaultDuration}
	switch k {
	case KindClock:
		return &ClockConfig{Base: base, Use24Hour: true}, nil
	case KindMessage:
		return &MessageConfig{
			Base:    base,
			Message: "LED Kurokku",
			Scroll:  Scroll{ScrollSpeed: 0.1, Repeat: false, SleepBeforeRepeat: 1.0},
		}, nil
	case KindAlert:
		base.Duration = 0
		return &AlertConfig{
			Base:   base,
			Scroll: Scroll{ScrollSpeed: 0.1, Repeat: true, SleepBeforeRepeat: 1.0},
		}, nil
	case KindAnimation:
		return &AnimationConfig{
			Base:   base,
			Frames: []Frame{},
			Scroll: Scroll{ScrollSpeed: 0.1, Repeat: true, SleepBeforeRepeat: 0},
		}, nil
	default:
		return nil, fmt.Errorf("unknown widget_type %q", k)
	}
}

// ParseConfig decodes and validates a configuration document. Unknown
// fields are rejected; missing optional fields take their defaults.
func ParseConfig(data []byte) (*Config, error) {
	var raw struct {
		Widgets    *[]json.RawMessage `json:"widgets"`
		Brightness json.RawMessage    `json:"brightness"`
	}
	if err := decodeStrict(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: config: %v", ErrInvalid, err)
	}
	if raw.Widgets == nil {
		return nil, fmt.Errorf("%w: config: widgets is required", ErrInvalid)
	}

	cfg := &Config{
		Widgets:    make([]Widget, 0, len(*raw.Widgets)),
		Brightness: DefaultBrightness(),
	}
	for i, elem := range *raw.Widgets {
		w, err := parseWidget(elem)
		if err != nil {
			return nil, fmt.Errorf("%w: widgets[%d]: %v", ErrInvalid, i, err)
		}
		cfg.Widgets = append(cfg.Widgets, w)
	}
	if len(raw.Brightness) > 0 && !bytes.Equal(raw.Brightness, []byte("null")) {
		if err := decodeStrict(raw.Brightness, &cfg.Brightness); err != nil {
			return nil, fmt.Errorf("%w: brightness: %v", ErrInvalid, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseWidget(data []byte) (Widget, error) {
	var tag struct {
		Type Kind `json:"widget_type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	if tag.Type == "" {
		return nil, errors.New("widget_type is required")
	}
	w, err := NewWidget(tag.Type)
	if err != nil {
		return nil, err
	}
	if err := decodeStrict(data, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate checks value ranges on the decoded document.
func (c *Config) Validate() error {
	var errs []error
	v := validate()
	for i, w := range c.Widgets {
		if w == nil {
			errs = append(errs, fmt.Errorf("widgets[%d]: missing", i))
			continue
		}
		if err := v.Struct(w); err != nil {
			errs = append(errs, fmt.Errorf("widgets[%d]: %w", i, err))
		}
	}
	if err := v.Struct(&c.Brightness); err != nil {
		errs = append(errs, fmt.Errorf("brightness: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// MarshalIndent renders the document as indented JSON.
func (c *Config) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

func validate() *validator.Validate {
	validateOnce.Do(func() {
		validateInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validateInst
}

// ParseFrames decodes a JSON list of frames as stored in an animation's
// dynamic source. Frames that fail to decode or validate are dropped and
// reported in errs. frames is nil only when the list itself is unreadable.
func ParseFrames(data []byte) (frames []Frame, errs []error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []error{fmt.Errorf("%w: frames: %v", ErrInvalid, err)}
	}
	frames = make([]Frame, 0, len(raw))
	v := validate()
	for i, elem := range raw {
		var f Frame
		if err := decodeStrict(elem, &f); err != nil {
			errs = append(errs, fmt.Errorf("%w: frames[%d]: %v", ErrInvalid, i, err))
			continue
		}
		if err := v.Struct(&f); err != nil {
			errs = append(errs, fmt.Errorf("%w: frames[%d]: %v", ErrInvalid, i, err))
			continue
		}
		frames = append(frames, f)
	}
	return frames, errs
}
