package navigation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/carrilhoac/kepler/internal/timesys"
)

// Номера слотов записи в порядке следования полей.
const (
	slotF0 = iota
	slotF1
	slotF2
	slotIODE
	slotCrs
	slotDeln
	slotM0
	slotCuc
	slotE
	slotCus
	slotSqrtA
	slotToes
	slotCic
	slotOMG0
	slotCis
	slotI0
	slotCrc
	slotOmg
	slotOMGd
	slotIdot
	slotCode
	slotWeek
	slotFlag
	slotURA
	slotSVH
	slotTGD
	slotIODC
	slotTtr
	slotFit
)

// splitRecordLines делит текст по "\n", "\r\n" и одиночному "\r".
// Завершающий перевод строки не образует новой строки. Пустые строки
// после восьмой отбрасываются, пустая восьмая остаётся (все её поля нулевые).
func splitRecordLines(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	for len(lines) > recordLines && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineLength длина строки до первого управляющего символа.
func lineLength(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] < ' ' {
			return i
		}
	}
	return len(line)
}

// normalizePRN дополняет номер нулём ("G 1" → "G01") и проверяет систему.
func normalizePRN(line string) (string, error) {
	if len(line) < 3 {
		return "", &ParseError{Line: 0, Field: -1, Text: line, Err: ErrInvalidPRN}
	}

	prn := []byte(line[:3])
	if prn[1] == ' ' {
		prn[1] = '0'
	}

	if !Constellation(prn[0]).Known() || prn[1] < '0' || prn[1] > '9' || prn[2] < '0' || prn[2] > '9' {
		return "", &ParseError{Line: 0, Field: -1, Text: line[:3], Err: ErrInvalidPRN}
	}
	return string(prn), nil
}

// parseField разбирает число в формате FORTRAN (D или E в экспоненте).
// Пустое поле даёт 0.
func parseField(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, nil
	}
	s = strings.NewReplacer("D", "E", "d", "E").Replace(s)
	return strconv.ParseFloat(s, 64)
}

// ParseRecord разбирает навигационную запись RINEX 3 из 8 строк.
//
// Поля, не помещающиеся в строку (RINEX допускает отбрасывание нулевых
// хвостовых полей), остаются нулевыми. Запись GLONASS отклоняется с
// ErrUnsupportedSystem: она не содержит кеплеровых элементов.
func ParseRecord(text string) (*Ephemeris, error) {
	lines := splitRecordLines(text)
	if len(lines) == 0 {
		return nil, &ParseError{Line: 0, Field: -1, Err: ErrLineCount}
	}

	prn, err := normalizePRN(lines[0])
	if err != nil {
		return nil, err
	}
	sys := Constellation(prn[0])
	if !sys.Keplerian() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSystem, sys)
	}

	if len(lines) != recordLines {
		return nil, &ParseError{Line: len(lines), Field: -1, Text: prn, Err: ErrLineCount}
	}

	var (
		slots   [slotCount]float64
		toc     timesys.Time
		haveToc bool
	)

	for k, line := range lines {
		n := lineLength(line)

		for j := 0; j < fieldsPer; j++ {
			start := fieldOffset + fieldWidth*j
			end := start + fieldWidth
			if n < end {
				break
			}
			text := line[start:end]

			if k == 0 && j == 0 {
				toc, err = timesys.ParseRINEXEpoch(text)
				if err != nil {
					return nil, &ParseError{Line: 0, Field: 0, Text: text, Err: err}
				}
				haveToc = true
				continue
			}

			v, err := parseField(text)
			if err != nil {
				return nil, &ParseError{Line: k, Field: j, Text: text, Err: ErrInvalidField}
			}
			slots[k*fieldsPer+j-1] = v
		}
	}

	if !haveToc {
		return nil, &ParseError{Line: 0, Field: 0, Text: lines[0], Err: timesys.ErrInvalidEpoch}
	}

	sqrtA := slots[slotSqrtA]
	week := int(slots[slotWeek])

	e := &Ephemeris{
		PRN:  prn,
		F0:   slots[slotF0],
		F1:   slots[slotF1],
		F2:   slots[slotF2],
		IODE: int(slots[slotIODE]),
		Crs:  slots[slotCrs],
		Deln: slots[slotDeln],
		M0:   slots[slotM0],
		Cuc:  slots[slotCuc],
		E:    slots[slotE],
		Cus:  slots[slotCus],
		A:    sqrtA * sqrtA,
		Toes: slots[slotToes],
		Cic:  slots[slotCic],
		OMG0: slots[slotOMG0],
		Cis:  slots[slotCis],
		I0:   slots[slotI0],
		Crc:  slots[slotCrc],
		Omg:  slots[slotOmg],
		OMGd: slots[slotOMGd],
		Idot: slots[slotIdot],
		Code: int(slots[slotCode]),
		Week: week,
		Flag: int(slots[slotFlag]),
		SVA:  URAIndex(slots[slotURA]),
		SVH:  int(slots[slotSVH]),
		IODC: int(slots[slotIODC]),
		Fit:  slots[slotFit],
	}
	e.TGD[0] = slots[slotTGD]

	e.Toc = sys.toGPST(toc)
	e.Toe = sys.weekTime(week, e.Toes).AdjustWeek(e.Toc)
	e.Ttr = sys.weekTime(week, slots[slotTtr]).AdjustWeek(e.Toc)

	return e, nil
}

// MarshalRINEX записывает эфемериды в формате RINEX 3: 8 строк по 80
// символов, поля "%19.12E". Поля после интервала аппроксимации пишутся нулями.
func (e *Ephemeris) MarshalRINEX() string {
	if e == nil {
		return ""
	}

	sys := e.System()
	slots := [slotCount]float64{
		slotF0:    e.F0,
		slotF1:    e.F1,
		slotF2:    e.F2,
		slotIODE:  float64(e.IODE),
		slotCrs:   e.Crs,
		slotDeln:  e.Deln,
		slotM0:    e.M0,
		slotCuc:   e.Cuc,
		slotE:     e.E,
		slotCus:   e.Cus,
		slotSqrtA: math.Sqrt(e.A),
		slotToes:  e.Toes,
		slotCic:   e.Cic,
		slotOMG0:  e.OMG0,
		slotCis:   e.Cis,
		slotI0:    e.I0,
		slotCrc:   e.Crc,
		slotOmg:   e.Omg,
		slotOMGd:  e.OMGd,
		slotIdot:  e.Idot,
		slotCode:  float64(e.Code),
		slotWeek:  float64(e.Week),
		slotFlag:  float64(e.Flag),
		slotURA:   URAValue(e.SVA),
		slotSVH:   float64(e.SVH),
		slotTGD:   e.TGD[0],
		slotIODC:  float64(e.IODC),
		slotTtr:   sys.timeOfWeek(e.Ttr),
		slotFit:   e.Fit,
	}

	var b strings.Builder
	b.Grow(recordLines * (fieldOffset + fieldsPer*fieldWidth + 1))

	fmt.Fprintf(&b, "%-3.3s %s", e.PRN, sys.fromGPST(e.Toc).RINEXEpoch())
	for i := 0; i < slotCount-1; i++ {
		if (i+1)%fieldsPer == 0 {
			b.WriteString("\n    ")
		}
		fmt.Fprintf(&b, "%19.12E", slots[i])
	}
	b.WriteString("\n")

	return b.String()
}
