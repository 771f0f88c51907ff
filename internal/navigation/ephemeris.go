// Package navigation реализует разбор бортовых эфемерид в формате RINEX,
// расчёт положения и поправки часов спутника по кеплеровым элементам,
// хранилище эфемерид и построение наземной трассы.
package navigation

import (
	"errors"
	"fmt"
	"time"

	"github.com/carrilhoac/kepler/internal/timesys"
)

// Ошибки разбора и расчёта эфемерид.
var (
	ErrLineCount         = errors.New("navigation record must have 8 lines")
	ErrInvalidPRN        = errors.New("invalid satellite PRN")
	ErrInvalidField      = errors.New("invalid numeric field")
	ErrUnsupportedSystem = errors.New("unsupported satellite system")
	ErrNilEphemeris      = errors.New("ephemeris is nil")
	ErrOutsideFit        = errors.New("time outside ephemeris fit interval")
	ErrInvalidStep       = errors.New("step must be positive")
)

// CLight скорость света, м/с.
const CLight = 299792458.0

// Константы записи RINEX.
const (
	recordLines = 8
	fieldOffset = 4
	fieldWidth  = 19
	fieldsPer   = 4

	// Слоты после интервала аппроксимации не сохраняются при записи.
	slotCount = 32
)

// defaultFitHours интервал аппроксимации, если в записи указан 0.
const defaultFitHours = 4.0

// ParseError ошибка разбора навигационной записи.
type ParseError struct {
	Line  int    // Номер строки записи, с нуля.
	Field int    // Номер поля в строке, с нуля; -1 для PRN и числа строк.
	Text  string // Исходный текст поля.
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("rinex nav line %d: %v: %q", e.Line, e.Err, e.Text)
	}
	return fmt.Sprintf("rinex nav line %d field %d: %v: %q", e.Line, e.Field, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Constellation спутниковая система по букве PRN.
type Constellation byte

const (
	GPS     Constellation = 'G'
	Galileo Constellation = 'E'
	BeiDou  Constellation = 'C'
	GLONASS Constellation = 'R'
	QZSS    Constellation = 'J'
)

// SystemConstants гравитационный параметр и скорость вращения Земли системы.
type SystemConstants struct {
	Mu     float64 // м³/с².
	OmegaE float64 // рад/с.
}

var systemConstants = map[Constellation]SystemConstants{
	GPS:     {Mu: 3.9860050e14, OmegaE: 7.2921151467e-5},
	Galileo: {Mu: 3.986004418e14, OmegaE: 7.2921151467e-5},
	BeiDou:  {Mu: 3.986004418e14, OmegaE: 7.292115e-5},
	GLONASS: {Mu: 3.9860044e14, OmegaE: 7.292115e-5},
	QZSS:    {Mu: 3.9860050e14, OmegaE: 7.2921151467e-5},
}

// Смещение шкалы BDT относительно GPST.
const (
	bdtWeekOffset    = 1356
	bdtSecondsOffset = 14.0
)

// Constants константы системы; для неизвестной системы — константы GPS.
func (c Constellation) Constants() SystemConstants {
	if k, ok := systemConstants[c]; ok {
		return k
	}
	return systemConstants[GPS]
}

// Known сообщает, известна ли система.
func (c Constellation) Known() bool {
	_, ok := systemConstants[c]
	return ok
}

// Keplerian сообщает, передаёт ли система кеплеровы элементы.
func (c Constellation) Keplerian() bool {
	return c.Known() && c != GLONASS
}

func (c Constellation) String() string {
	switch c {
	case GPS:
		return "GPS"
	case Galileo:
		return "Galileo"
	case BeiDou:
		return "BeiDou"
	case GLONASS:
		return "GLONASS"
	case QZSS:
		return "QZSS"
	default:
		return fmt.Sprintf("Constellation(%q)", byte(c))
	}
}

// weekTime момент по номеру недели и секундам недели в шкале системы.
func (c Constellation) weekTime(week int, tow float64) timesys.Time {
	if c == BeiDou {
		return timesys.FromGPS(week+bdtWeekOffset, tow).Add(bdtSecondsOffset)
	}
	return timesys.FromGPS(week, tow)
}

// timeOfWeek секунды недели момента t в шкале системы.
func (c Constellation) timeOfWeek(t timesys.Time) float64 {
	return c.fromGPST(t).GPSTimeOfWeek()
}

// toGPST переводит календарную эпоху записи из шкалы системы в GPST.
func (c Constellation) toGPST(t timesys.Time) timesys.Time {
	if c == BeiDou {
		return t.Add(bdtSecondsOffset)
	}
	return t
}

// fromGPST обратное преобразование к toGPST.
func (c Constellation) fromGPST(t timesys.Time) timesys.Time {
	if c == BeiDou {
		return t.Add(-bdtSecondsOffset)
	}
	return t
}

// uraTable точность дальномерного сигнала (URA) по индексу, м.
var uraTable = [16]float64{
	2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0, 48.0,
	96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0, 0.0,
}

// URAIndex индекс первого значения таблицы, не меньшего v.
// Значения больше 6144 м дают 0.
func URAIndex(v float64) int {
	for i, u := range uraTable[:15] {
		if u >= v {
			return i
		}
	}
	return 0
}

// URAValue значение URA по индексу, м. Индекс вне таблицы даёт 0.
func URAValue(idx int) float64 {
	if idx < 0 || idx >= len(uraTable) {
		return 0
	}
	return uraTable[idx]
}

// Ephemeris бортовые эфемериды спутника (одна навигационная запись).
type Ephemeris struct {
	PRN string // "G01", "E12", ...

	IODE int // Номер выпуска эфемерид.
	IODC int // Номер выпуска часов.
	SVA  int // Индекс URA.
	SVH  int // Здоровье спутника.
	Week int // Неделя системы.
	Code int // Коды на L2.
	Flag int // Флаг данных L2P.

	A    float64 // Большая полуось, м.
	E    float64 // Эксцентриситет.
	I0   float64 // Наклонение на toe, рад.
	OMG0 float64 // Долгота восходящего узла, рад.
	Omg  float64 // Аргумент перигея, рад.
	M0   float64 // Средняя аномалия на toe, рад.
	Deln float64 // Поправка среднего движения, рад/с.
	OMGd float64 // Скорость изменения долготы узла, рад/с.
	Idot float64 // Скорость изменения наклонения, рад/с.

	Crc, Crs float64 // Гармонические поправки радиуса, м.
	Cuc, Cus float64 // Поправки аргумента широты, рад.
	Cic, Cis float64 // Поправки наклонения, рад.

	Toes float64 // Секунды недели toe.
	Fit  float64 // Интервал аппроксимации, ч.

	F0, F1, F2 float64 // Полином часов: с, с/с, с/с².

	TGD [2]float64 // Групповая задержка, с.

	// Все моменты в шкале GPST, в том числе для BeiDou.
	Toc timesys.Time // Эпоха часов.
	Toe timesys.Time // Эпоха эфемерид.
	Ttr timesys.Time // Время передачи сообщения.
}

// System спутниковая система по первой букве PRN.
func (e *Ephemeris) System() Constellation {
	if e == nil || e.PRN == "" {
		return 0
	}
	return Constellation(e.PRN[0])
}

// Geostationary сообщает, является ли спутник геостационарным спутником
// BeiDou (C01–C05, C59–C63). Для них ECEF получается поворотом
// инерциальной орбиты на -5° вокруг оси X.
func (e *Ephemeris) Geostationary() bool {
	if e.System() != BeiDou || len(e.PRN) < 3 {
		return false
	}
	prn := int(e.PRN[1]-'0')*10 + int(e.PRN[2]-'0')
	return prn <= 5 || prn >= 59
}

// FitInterval интервал аппроксимации эфемерид.
func (e *Ephemeris) FitInterval() time.Duration {
	hours := defaultFitHours
	if e != nil && e.Fit > 0 {
		hours = e.Fit
	}
	return time.Duration(hours * float64(time.Hour))
}

// Valid сообщает, лежит ли t в пределах половины интервала аппроксимации от toe.
func (e *Ephemeris) Valid(t timesys.Time) bool {
	if e == nil {
		return false
	}
	half := e.FitInterval().Seconds() / 2
	dt := t.Sub(e.Toe)
	return dt >= -half && dt <= half
}

// Healthy сообщает, помечен ли спутник как исправный.
func (e *Ephemeris) Healthy() bool {
	return e != nil && e.SVH == 0
}

// URA точность дальномерного сигнала, м.
func (e *Ephemeris) URA() float64 {
	if e == nil {
		return 0
	}
	return URAValue(e.SVA)
}

// String краткое описание записи.
func (e *Ephemeris) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s toe %s IODE %d health %d", e.PRN, e.Toe, e.IODE, e.SVH)
}
