package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/store"
)

// fixed windows; a burst of up to twice the limit across a window boundary is accepted
const (
	HOUR = time.Hour
	DAY  = 24 * time.Hour
	WEEK = 7 * 24 * time.Hour
)

type Config struct {
	Prefix string `yaml:"prefix"`
	Hourly int64  `yaml:"hourly"`
	Daily  int64  `yaml:"daily"`
	Weekly int64  `yaml:"weekly"`
}

type Result struct {
	Allowed          bool
	HourLimitReached bool
	DayLimitReached  bool
	WeekLimitReached bool
}

type Limiter struct {
	kv     store.KV
	prefix string
	m      *sync.RWMutex
	hourly int64
	daily  int64
	weekly int64
}

func New(kv store.KV, config Config) *Limiter {
	return &Limiter{
		kv:     kv,
		prefix: config.Prefix,
		m:      &sync.RWMutex{},
		hourly: config.Hourly,
		daily:  config.Daily,
		weekly: config.Weekly,
	}
}

func (l *Limiter) Prefix() string {
	return l.prefix
}

// SetLimits changes the limits of all three windows; counters already in the store are kept.
func (l *Limiter) SetLimits(hourly, daily, weekly int64) {
	l.m.Lock()
	l.hourly = hourly
	l.daily = daily
	l.weekly = weekly
	l.m.Unlock()
}

func (l *Limiter) limits() (hourly, daily, weekly int64) {
	l.m.RLock()
	defer l.m.RUnlock()
	return l.hourly, l.daily, l.weekly
}

func (l *Limiter) key(entity string, window string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, entity, window)
}

// CheckLimit counts one more call for entity in every window.
func (l *Limiter) CheckLimit(ctx context.Context, entity string) (Result, error) {
	hourly, daily, weekly := l.limits()
	var err error
	result := Result{}

	result.HourLimitReached, err = l.increment(ctx, l.key(entity, "hour"), HOUR, hourly)
	if err != nil {
		return result, err
	}
	result.DayLimitReached, err = l.increment(ctx, l.key(entity, "day"), DAY, daily)
	if err != nil {
		return result, err
	}
	result.WeekLimitReached, err = l.increment(ctx, l.key(entity, "week"), WEEK, weekly)
	if err != nil {
		return result, err
	}
	result.Allowed = !(result.HourLimitReached || result.DayLimitReached || result.WeekLimitReached)
	if !result.Allowed {
		log.Debugf("rate limit prefix=%s entity=%s result=%+v", l.prefix, entity, result)
	}
	return result, nil
}

// the increment and the expiry are two calls; two concurrent first hits may both set the expiry
func (l *Limiter) increment(ctx context.Context, key string, window time.Duration, limit int64) (bool, error) {
	count, err := l.kv.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	if count == 1 {
		if err = l.kv.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	return limit < count, nil
}
