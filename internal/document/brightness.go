package document

import "time"

// Brightness is the daily schedule: High applies strictly between Begin and
// End, Low otherwise.
type Brightness struct {
	Begin TimeOfDay `json:"begin"`
	End   TimeOfDay `json:"end"`
	High  int       `json:"high" validate:"gte=0,lte=7"`
	Low   int       `json:"low" validate:"gte=0,lte=7"`
}

// DefaultBrightness returns the 08:00 to 20:00 schedule at levels 7 and 2.
func DefaultBrightness() Brightness {
	return Brightness{
		Begin: Clock(8, 0, 0),
		End:   Clock(20, 0, 0),
		High:  7,
		Low:   2,
	}
}

// Level returns the level that applies at now. A schedule whose Begin is not
// before End never selects High.
func (b Brightness) Level(now time.Time) int {
	t := Of(now)
	if b.Begin < t && t < b.End {
		return b.High
	}
	return b.Low
}
