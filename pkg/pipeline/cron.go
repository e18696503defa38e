package pipeline

import (
	"strings"
	"time"

	cron "gopkg.in/robfig/cron.v2" // using v2 api, doc at https://godoc.org/gopkg.in/robfig/cron.v2
)

// DefaultNextRuns is how many upcoming runs a schedule lists.
const DefaultNextRuns = 5

// cronSpec turns a pipeline's cron expression into one for the cron
// library. Five-field expressions are standard crontab (the library
// reads five fields as starting with seconds), and schedules are in
// UTC unless they say otherwise.
func cronSpec(expr string) string {
	expr = strings.TrimSpace(expr)
	tz := "TZ=UTC"
	if strings.HasPrefix(expr, "TZ=") {
		i := strings.Index(expr, " ")
		if i < 0 {
			return expr
		}
		tz, expr = expr[:i], strings.TrimSpace(expr[i:])
	}
	if !strings.HasPrefix(expr, "@") && len(strings.Fields(expr)) == 5 {
		expr = "0 " + expr
	}
	return tz + " " + expr
}

func ParseSchedule(expr string) (cron.Schedule, error) {
	return cron.Parse(cronSpec(expr))
}

// NextRuns gives the next n times expr fires after from.
func NextRuns(expr string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	runs := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = schedule.Next(t)
		if t.IsZero() {
			break
		}
		runs = append(runs, t)
	}
	return runs, nil
}
