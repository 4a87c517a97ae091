package ratelimit

import "context"

type Check struct {
	Limiter *Limiter
	Entity  string
}

// Composite disallows when any of its checks reports an exhausted window. Every
// check is counted, even after one has already failed.
type Composite struct {
	checks []Check
}

func Compose(checks ...Check) Composite {
	return Composite{checks: checks}
}

func (c Composite) CheckLimit(ctx context.Context) (Result, error) {
	combined := Result{Allowed: true}
	for _, check := range c.checks {
		r, err := check.Limiter.CheckLimit(ctx, check.Entity)
		if err != nil {
			return Result{}, err
		}
		combined.Allowed = combined.Allowed && r.Allowed
		combined.HourLimitReached = combined.HourLimitReached || r.HourLimitReached
		combined.DayLimitReached = combined.DayLimitReached || r.DayLimitReached
		combined.WeekLimitReached = combined.WeekLimitReached || r.WeekLimitReached
	}
	return combined, nil
}
