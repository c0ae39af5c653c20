// Package month содержит календарные расчёты для биллинга:
// возраст пакета в днях и сдвиг даты списания на месяц вперёд.
package month

import (
	"time"
)

// ElapsedDays возвращает число полных суток между start и now.
// Если now раньше start, возвращает 0.
func ElapsedDays(now, start time.Time) int {
	if now.Before(start) {
		return 0
	}
	return int(now.Sub(start) / (24 * time.Hour))
}

// AddMonths сдвигает дату на n месяцев, прижимая день к концу месяца:
// 31 января + 1 месяц = 29 февраля в високосном году.
func AddMonths(t time.Time, n int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()

	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
