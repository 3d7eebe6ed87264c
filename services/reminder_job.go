package services

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultReminderHour = 7

// StartDailyLoop runs one reminder pass per calendar day at or after
// the configured local hour, until ctx is canceled. The loop wakes
// hourly; a failed run is retried on the next wake, and the dedup log
// keeps retries from resending what already went out. A run skipped
// because another process holds the lock counts as done for the day.
func (s *ReminderService) StartDailyLoop(ctx context.Context) {
	hour := ReminderHour()
	log.Printf("reminders: daily loop started, sending at %02d:00", hour)

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	var lastRun string
	for {
		now := time.Now()
		if now.Hour() >= hour && dateKey(now) != lastRun {
			if _, err := s.ProcessAll(ctx, now); err != nil {
				if errors.Is(err, ErrReminderRunBusy) {
					log.Printf("reminders: another run in progress, leaving it to finish")
					lastRun = dateKey(now)
				} else {
					log.Printf("reminders: daily run failed, will retry next hour: %v", err)
				}
			} else {
				lastRun = dateKey(now)
			}
		}
		select {
		case <-ctx.Done():
			log.Printf("reminders: daily loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// ReminderHour is the local hour the daily loop targets, from
// REMINDER_HOUR.
func ReminderHour() int {
	raw := strings.TrimSpace(os.Getenv("REMINDER_HOUR"))
	if raw == "" {
		return defaultReminderHour
	}
	hour, err := strconv.Atoi(raw)
	if err != nil || hour < 0 || hour > 23 {
		log.Printf("reminders: invalid REMINDER_HOUR %q, using %d", raw, defaultReminderHour)
		return defaultReminderHour
	}
	return hour
}
