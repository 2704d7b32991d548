package retention

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер расписаний: 5 полей или дескрипторы (@every 1m, @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule проверяет валидность расписания.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// NextRun вычисляет следующее время запуска после from (в UTC).
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return schedule.Next(from).UTC(), nil
}
