package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

// Cadence is a parsed schedule.
type Cadence struct {
	Kind   Kind
	Every  time.Duration // KindInterval only
	Cron   string        // KindCron only
	Source string        // "seconds" | "duration" | "hhmm" | "cron"

	sched cron.Schedule
}

var (
	reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

	parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Every returns an interval cadence. Sub-second parts are dropped and the
// minimum is one second.
func Every(d time.Duration) Cadence {
	s := cron.Every(d)
	return Cadence{Kind: KindInterval, Every: s.Delay, Source: "duration", sched: s}
}

// Parse accepts:
//   - integer seconds: "3600"
//   - Go duration: "55m", "2h30m"
//   - HH:MM interval: "01:30"
//   - cron: "0 * * * *", "*/30 * * * * *", "@hourly", "@every 1h"
//
// "cron:" and "interval:"/"every:" prefixes force the kind. Cron expressions
// are evaluated in loc (UTC when nil).
func Parse(raw string, loc *time.Location) (Cadence, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Cadence{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]), loc)
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	}

	// Whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s, loc)
	}
	return parseInterval(s)
}

// MustParse is Parse for constants; it panics on error.
func MustParse(raw string) Cadence {
	c, err := Parse(raw, nil)
	if err != nil {
		panic(err)
	}
	return c
}

func parseCron(expr string, loc *time.Location) (Cadence, error) {
	if expr == "" {
		return Cadence{}, fmt.Errorf("cron schedule required")
	}
	if loc == nil {
		loc = time.UTC
	}
	full := expr
	if !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
		full = "CRON_TZ=" + loc.String() + " " + expr
	}
	sched, err := parser.Parse(full)
	if err != nil {
		return Cadence{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Cadence{Kind: KindCron, Cron: expr, Source: "cron", sched: sched}, nil
}

func parseInterval(v string) (Cadence, error) {
	if v == "" {
		return Cadence{}, fmt.Errorf("interval required")
	}
	var (
		d   time.Duration
		src string
	)
	switch {
	case isDigits(v):
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Cadence{}, fmt.Errorf("invalid seconds %q: %w", v, err)
		}
		d, src = time.Duration(n)*time.Second, "seconds"
	case reHHMM.MatchString(v):
		m := reHHMM.FindStringSubmatch(v)
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Cadence{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d, src = time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute, "hhmm"
	default:
		pd, err := time.ParseDuration(v)
		if err != nil {
			return Cadence{}, fmt.Errorf("invalid interval %q (use seconds like '3600', HH:MM like '01:00', duration like '1h' or a cron expression)", v)
		}
		d, src = pd, "duration"
	}
	if d < time.Second {
		return Cadence{}, fmt.Errorf("interval must be >= 1s")
	}
	c := Every(d)
	c.Source = src
	return c, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Next returns the first activation strictly after t.
func (c Cadence) Next(t time.Time) time.Time {
	if c.sched == nil {
		return time.Time{}
	}
	return c.sched.Next(t)
}

// Due reports whether an activation scheduled after last has been reached
// by now. For an interval this is now-last >= Every.
func (c Cadence) Due(last, now time.Time) bool {
	next := c.Next(last)
	if next.IsZero() {
		return false
	}
	return !now.Before(next)
}

func (c Cadence) IsZero() bool { return c.sched == nil }

func (c Cadence) String() string {
	switch {
	case c.sched == nil:
		return ""
	case c.Kind == KindCron:
		return c.Cron
	default:
		return c.Every.String()
	}
}
