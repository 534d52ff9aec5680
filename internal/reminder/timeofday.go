package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/en"
)

var strictTime = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// TimeOfDay is an hour and minute on the 24h clock.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// lenient only knows rules that fix an hour. Date, weekday and relative
// rules would borrow the time of day from now.
var lenient = func() *when.Parser {
	w := when.New(nil)
	w.Add(
		en.Hour(rules.Override),
		en.HourMinute(rules.Override),
		en.CasualTime(rules.Override),
	)
	return w
}()

// ParseTime accepts "HH:MM" and, failing that, natural phrases such as "9pm"
// or "noon". Only the time of day of a phrase is kept.
func ParseTime(raw string, now time.Time) (TimeOfDay, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TimeOfDay{}, false
	}
	if m := strictTime.FindStringSubmatch(raw); m != nil {
		h, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return TimeOfDay{Hour: h, Minute: minute}, true
	}

	r, err := lenient.Parse(raw, now)
	if err != nil || r == nil {
		return TimeOfDay{}, false
	}
	// Reject phrases where only part of the input was understood ("9pm-ish later").
	if strings.TrimSpace(r.Text) != strings.ToLower(raw) && strings.TrimSpace(r.Text) != raw {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: r.Time.Hour(), Minute: r.Time.Minute()}, true
}

// NextOccurrence returns today at t:00 in now's location, or the same time
// tomorrow when that instant is not strictly after now.
func NextOccurrence(now time.Time, t TimeOfDay) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if !at.After(now) {
		at = time.Date(now.Year(), now.Month(), now.Day()+1, t.Hour, t.Minute, 0, 0, now.Location())
	}
	return at
}
