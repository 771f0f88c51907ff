package timesys

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	satellite "github.com/joshuaferrara/go-satellite"
)

// ErrInvalidEpoch ошибка разбора эпохи RINEX.
var ErrInvalidEpoch = errors.New("invalid RINEX epoch")

// earthRotationRate угловая скорость вращения Земли для поправки GMST на доли секунды, рад/с.
const earthRotationRate = 7.2921158553e-5

// ParseError ошибка разбора поля эпохи.
type ParseError struct {
	Field string // Имя поля: year, month, day, hour, minute, second.
	Text  string // Исходный текст поля.
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// epochField описывает поле эпохи RINEX: позицию, имя и допустимый диапазон.
type epochField struct {
	name     string
	from, to int // to < 0 — до конца строки.
	min, max int
}

// Колонки эпохи "YYYY MM DD hh mm ss.sssssss".
var epochFields = [6]epochField{
	{"year", 0, 4, math.MinInt32, math.MaxInt32},
	{"month", 5, 7, 1, 12},
	{"day", 8, 10, 1, 31},
	{"hour", 11, 13, 0, 23},
	{"minute", 14, 16, 0, 59},
	{"second", 17, -1, 0, 60},
}

// column возвращает подстроку [from, to) с учётом длины строки.
func column(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to < 0 || to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

// ParseRINEXEpoch разбирает эпоху RINEX вида "2024 07 15 22 00 00".
// Пустые поля читаются как ноль: навигационные файлы дополняют эпоху пробелами.
func ParseRINEXEpoch(s string) (Time, error) {
	if strings.TrimSpace(column(s, 0, 4)) == "" {
		return Time{}, &ParseError{Field: "year", Text: s, Err: fmt.Errorf("%w: empty", ErrInvalidEpoch)}
	}

	var cal [5]int
	for i, f := range epochFields[:5] {
		text := strings.TrimSpace(column(s, f.from, f.to))
		if text == "" {
			if i <= 2 {
				return Time{}, &ParseError{Field: f.name, Text: text, Err: fmt.Errorf("%w: empty", ErrInvalidEpoch)}
			}
			continue
		}

		v, err := strconv.Atoi(text)
		if err != nil {
			return Time{}, &ParseError{Field: f.name, Text: text, Err: fmt.Errorf("%w: %v", ErrInvalidEpoch, err)}
		}
		if v < f.min || v > f.max {
			return Time{}, &ParseError{
				Field: f.name,
				Text:  text,
				Err:   fmt.Errorf("%w: out of range [%d, %d]", ErrInvalidEpoch, f.min, f.max),
			}
		}
		cal[i] = v
	}

	if n := daysInMonth(cal[0], cal[1]); cal[2] > n {
		return Time{}, &ParseError{
			Field: "day",
			Text:  strconv.Itoa(cal[2]),
			Err:   fmt.Errorf("%w: %04d-%02d has %d days", ErrInvalidEpoch, cal[0], cal[1], n),
		}
	}

	secField := epochFields[5]
	secText := strings.TrimSpace(column(s, secField.from, secField.to))

	var sec float64
	if secText != "" {
		var err error
		sec, err = strconv.ParseFloat(secText, 64)
		if err != nil {
			return Time{}, &ParseError{Field: secField.name, Text: secText, Err: fmt.Errorf("%w: %v", ErrInvalidEpoch, err)}
		}
		if sec < 0 || sec >= 61 {
			return Time{}, &ParseError{
				Field: secField.name,
				Text:  secText,
				Err:   fmt.Errorf("%w: out of range [0, 61)", ErrInvalidEpoch),
			}
		}
	}

	whole := math.Floor(sec)
	t := FromCalendar(cal[0], cal[1], cal[2], cal[3], cal[4], int(whole))
	t.frac = sec - whole

	return t, nil
}

// daysInMonth число дней в месяце по григорианскому календарю.
func daysInMonth(year, month int) int {
	ny, nm := int64(year), int64(month)+1
	if nm > 12 {
		ny, nm = ny+1, 1
	}
	return int(daysFromCivil(ny, nm, 1) - daysFromCivil(int64(year), int64(month), 1))
}

// RINEXEpoch форматирует момент как эпоху RINEX с целыми секундами.
func (t Time) RINEXEpoch() string {
	y, mo, d, h, mi, s := t.Calendar()
	return fmt.Sprintf("%4d %02d %02d %02d %02d %02d", y, mo, d, h, mi, int(s))
}

// JulianDate юлианская дата момента.
func (t Time) JulianDate() float64 {
	y, mo, d, h, mi, s := t.Calendar()
	whole := math.Floor(s)

	return satellite.JDay(y, mo, d, h, mi, int(whole)) + (s-whole)/SecondsPerDay
}

// GMST гринвичское среднее звёздное время в радианах, [0, 2π).
func (t Time) GMST() float64 {
	y, mo, d, h, mi, s := t.Calendar()
	whole := math.Floor(s)

	gmst := satellite.GSTimeFromDate(y, mo, d, h, mi, int(whole)) + (s-whole)*earthRotationRate
	gmst = math.Mod(gmst, 2*math.Pi)
	if gmst < 0 {
		gmst += 2 * math.Pi
	}
	return gmst
}

// daysFromCivil число дней от 1970-01-01 до даты (алгоритм по эрам в 400 лет).
func daysFromCivil(y, m, d int64) int64 {
	if m <= 2 {
		y--
	}

	era := y
	if era < 0 {
		era -= 399
	}
	era /= 400

	yoe := y - era*400
	mp := m + 9
	if m > 2 {
		mp = m - 3
	}
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy

	return era*146097 + doe - 719468
}

// civilFromDays обратное преобразование к daysFromCivil.
func civilFromDays(z int64) (y, m, d int64) {
	z += 719468

	era := z
	if era < 0 {
		era -= 146096
	}
	era /= 146097

	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y = yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d = doy - (153*mp+2)/5 + 1

	if mp < 10 {
		m = mp + 3
	} else {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}

	return y, m, d
}
