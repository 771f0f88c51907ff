// Package timesys реализует представление времени с фиксированной точкой:
// целые секунды от эпохи Unix плюс дробная часть секунды.
// Шкала непрерывная, високосные секунды не учитываются.
package timesys

import (
	"fmt"
	"math"
	"time"
)

// Константы шкалы времени.
const (
	SecondsPerMinute = 60
	SecondsPerHour   = 3600
	SecondsPerDay    = 86400
	SecondsPerWeek   = 604800

	// halfWeek порог перехода недели GPS.
	halfWeek = SecondsPerWeek / 2

	// gpsEpochUnix начало шкалы GPS (1980-01-06T00:00:00) в секундах Unix.
	gpsEpochUnix = 315964800
)

// GPSEpoch начало шкалы GPS.
var GPSEpoch = Time{sec: gpsEpochUnix}

// Time момент времени: sec целых секунд и frac долей секунды.
// После любой операции |frac| < 1.
type Time struct {
	sec  int64
	frac float64
}

// normalize переносит целые секунды из дробной части с отбрасыванием к нулю.
func normalize(sec int64, frac float64) Time {
	if math.Abs(frac) >= 1 {
		whole := math.Trunc(frac)
		sec += int64(whole)
		frac -= whole
	}
	return Time{sec: sec, frac: frac}
}

// canonical возвращает представление с дробной частью в [0, 1).
func (t Time) canonical() (int64, float64) {
	sec, frac := t.sec, t.frac
	if frac < 0 {
		sec--
		frac++
	}
	if frac >= 1 {
		sec++
		frac--
	}
	return sec, frac
}

// FromCalendar возвращает момент по календарной дате (пролептический григорианский календарь).
func FromCalendar(year, month, day, hour, minute, sec int) Time {
	days := daysFromCivil(int64(year), int64(month), int64(day))
	return Time{
		sec: days*SecondsPerDay + int64(hour)*SecondsPerHour + int64(minute)*SecondsPerMinute + int64(sec),
	}
}

// FromGPS возвращает момент по номеру недели GPS и времени от начала недели.
func FromGPS(week int, tow float64) Time {
	whole := math.Floor(tow)
	return normalize(gpsEpochUnix+int64(week)*SecondsPerWeek+int64(whole), tow-whole)
}

// FromSeconds возвращает момент, отстоящий от эпохи Unix на total секунд.
func FromSeconds(total float64) Time {
	whole := math.Floor(total)
	return Time{sec: int64(whole), frac: total - whole}
}

// FromUnix возвращает момент из целой и дробной частей секунд Unix.
func FromUnix(sec int64, frac float64) Time {
	return normalize(sec, frac)
}

// FromStd преобразует time.Time.
func FromStd(t time.Time) Time {
	return Time{sec: t.Unix(), frac: float64(t.Nanosecond()) / 1e9}
}

// Std преобразует в time.Time (UTC), с округлением до наносекунды.
func (t Time) Std() time.Time {
	sec, frac := t.canonical()
	return time.Unix(sec, int64(math.Round(frac*1e9))).UTC()
}

// Seconds целая часть.
func (t Time) Seconds() int64 { return t.sec }

// Fraction дробная часть, |Fraction()| < 1.
func (t Time) Fraction() float64 { return t.frac }

// UnixSeconds секунды от эпохи Unix одним числом.
// Точность падает при больших значениях, для разностей используйте Sub.
func (t Time) UnixSeconds() float64 {
	return float64(t.sec) + t.frac
}

// IsZero сообщает, равен ли момент эпохе Unix с нулевой дробной частью.
func (t Time) IsZero() bool {
	return t.sec == 0 && t.frac == 0
}

// GPSWeek номер недели GPS.
func (t Time) GPSWeek() int {
	sec, _ := t.canonical()
	return int(floorDiv(sec-gpsEpochUnix, SecondsPerWeek))
}

// GPSTimeOfWeek время от начала недели GPS в секундах, [0, 604800).
func (t Time) GPSTimeOfWeek() float64 {
	sec, frac := t.canonical()
	dt := sec - gpsEpochUnix
	return float64(dt-floorDiv(dt, SecondsPerWeek)*SecondsPerWeek) + frac
}

// Add сдвигает момент на d секунд.
func (t Time) Add(d float64) Time {
	whole := math.Trunc(d)
	return normalize(t.sec+int64(whole), t.frac+(d-whole))
}

// AddTime складывает два значения как интервалы.
func (t Time) AddTime(u Time) Time {
	return normalize(t.sec+u.sec, t.frac+u.frac)
}

// Sub возвращает t-u в секундах.
func (t Time) Sub(u Time) float64 {
	return float64(t.sec-u.sec) + (t.frac - u.frac)
}

// Diff возвращает t-u в представлении с фиксированной точкой.
func (t Time) Diff(u Time) Time {
	return normalize(t.sec-u.sec, t.frac-u.frac)
}

// Compare возвращает -1, 0 или +1.
func (t Time) Compare(u Time) int {
	ts, tf := t.canonical()
	us, uf := u.canonical()

	switch {
	case ts < us:
		return -1
	case ts > us:
		return 1
	case tf < uf:
		return -1
	case tf > uf:
		return 1
	}
	return 0
}

// Before сообщает, что t раньше u.
func (t Time) Before(u Time) bool { return t.Compare(u) < 0 }

// After сообщает, что t позже u.
func (t Time) After(u Time) bool { return t.Compare(u) > 0 }

// Equal сообщает, что t и u обозначают один момент.
func (t Time) Equal(u Time) bool { return t.Compare(u) == 0 }

// AdjustWeek переносит t на неделю к ref, если они расходятся больше чем на полнедели.
// toe и ttr эфемерид несут только время недели, поэтому выравниваются по toc.
func (t Time) AdjustWeek(ref Time) Time {
	dt := t.Sub(ref)
	switch {
	case dt > halfWeek:
		return t.Add(-SecondsPerWeek)
	case dt < -halfWeek:
		return t.Add(SecondsPerWeek)
	}
	return t
}

// Calendar возвращает календарные поля момента (UTC без високосных секунд).
func (t Time) Calendar() (year, month, day, hour, minute int, sec float64) {
	s, frac := t.canonical()
	days := floorDiv(s, SecondsPerDay)
	rem := s - days*SecondsPerDay

	y, m, d := civilFromDays(days)

	return int(y), int(m), int(d),
		int(rem / SecondsPerHour),
		int(rem % SecondsPerHour / SecondsPerMinute),
		float64(rem%SecondsPerMinute) + frac
}

// String возвращает момент в формате ISO 8601 с микросекундами.
func (t Time) String() string {
	y, mo, d, h, mi, s := t.Calendar()
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%09.6fZ", y, mo, d, h, mi, s)
}

// floorDiv целочисленное деление с округлением вниз.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
