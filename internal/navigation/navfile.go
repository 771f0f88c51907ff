package navigation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Метки заголовка RINEX (колонки 60..79).
const (
	labelVersion    = "RINEX VERSION / TYPE"
	labelProgram    = "PGM / RUN BY / DATE"
	labelLeap       = "LEAP SECONDS"
	labelComment    = "COMMENT"
	labelEndOfHdr   = "END OF HEADER"
	labelColumn     = 60
	glonassRecLines = 4

	sbas Constellation = 'S'
)

// ErrInvalidHeader заголовок файла не распознан.
var ErrInvalidHeader = errors.New("invalid RINEX navigation header")

// NavHeader заголовок навигационного файла RINEX.
type NavHeader struct {
	Version     float64
	FileType    byte          // 'N' для навигационных данных, 'G' для GLONASS в RINEX 2.
	System      Constellation // 'M' для смешанного файла.
	Program     string
	RunBy       string
	Date        string
	LeapSeconds int
	Ionosphere  []string // Строки ION ALPHA / ION BETA / IONOSPHERIC CORR без изменений.
	Comments    []string
}

// NavFile содержимое навигационного файла.
type NavFile struct {
	Header      NavHeader
	Ephemerides []*Ephemeris

	// Skipped число пропущенных записей систем без кеплеровых элементов.
	Skipped int
}

// ReadNavFile читает навигационный файл RINEX 2 или 3.
func ReadNavFile(path string) (*NavFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening nav file")
	}
	defer f.Close()

	nav, err := ParseRINEXNav(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return nav, nil
}

// ParseRINEXNav разбирает навигационный файл: заголовок до END OF HEADER
// и последовательность записей. Записи RINEX 2 приводятся к виду RINEX 3.
// Записи GLONASS и SBAS пропускаются и учитываются в Skipped.
func ParseRINEXNav(r io.Reader) (*NavFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading nav data")
	}

	lines := splitRecordLines(string(data))
	nav := &NavFile{}

	body, err := parseNavHeader(lines, &nav.Header)
	if err != nil {
		return nil, err
	}

	rinex2 := nav.Header.Version < 3
	i := body
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}

		sys := recordSystem(lines[i], nav.Header, rinex2)
		if !sys.Keplerian() {
			nav.Skipped++
			i += skippedLines(sys)
			continue
		}

		n := recordLines
		if i+n > len(lines) {
			return nil, errors.Wrapf(&ParseError{Line: len(lines) - i, Field: -1, Text: lines[i], Err: ErrLineCount}, "record at line %d", i+1)
		}

		rec := lines[i : i+n]
		if rinex2 {
			rec, err = normalizeRINEX2(rec, sys)
			if err != nil {
				return nil, errors.Wrapf(err, "record at line %d", i+1)
			}
		}

		eph, err := ParseRecord(strings.Join(rec, "\n"))
		if err != nil {
			return nil, errors.Wrapf(err, "record at line %d", i+1)
		}
		nav.Ephemerides = append(nav.Ephemerides, eph)
		i += n
	}

	return nav, nil
}

// parseNavHeader разбирает заголовок и возвращает индекс первой строки данных.
func parseNavHeader(lines []string, h *NavHeader) (int, error) {
	for i, line := range lines {
		if len(line) < labelColumn {
			continue
		}
		label := strings.TrimSpace(line[labelColumn:])
		value := line[:labelColumn]

		switch {
		case label == labelVersion:
			v, err := strconv.ParseFloat(strings.TrimSpace(value[:9]), 64)
			if err != nil {
				return 0, errors.Wrapf(ErrInvalidHeader, "version %q", value[:9])
			}
			h.Version = v
			h.FileType = value[20]
			h.System = GPS
			if sys := value[40]; sys != ' ' {
				h.System = Constellation(sys)
			}
		case label == labelProgram:
			h.Program = strings.TrimSpace(value[:20])
			h.RunBy = strings.TrimSpace(value[20:40])
			h.Date = strings.TrimSpace(value[40:60])
		case label == labelLeap:
			if v, err := strconv.Atoi(strings.TrimSpace(value[:6])); err == nil {
				h.LeapSeconds = v
			}
		case label == labelComment:
			h.Comments = append(h.Comments, strings.TrimRight(value, " "))
		case strings.HasPrefix(label, "ION ") || label == "IONOSPHERIC CORR":
			h.Ionosphere = append(h.Ionosphere, strings.TrimRight(line, " "))
		case label == labelEndOfHdr:
			if h.Version == 0 {
				return 0, errors.Wrap(ErrInvalidHeader, "missing RINEX VERSION / TYPE")
			}
			return i + 1, nil
		}
	}

	return 0, errors.Wrap(ErrInvalidHeader, "missing END OF HEADER")
}

// skippedLines длина записи системы, которая не разбирается.
func skippedLines(sys Constellation) int {
	if sys == GLONASS || sys == sbas {
		return glonassRecLines
	}
	return recordLines
}

// recordSystem система записи по первой строке.
func recordSystem(line string, h NavHeader, rinex2 bool) Constellation {
	if !rinex2 {
		return Constellation(line[0])
	}
	switch h.FileType {
	case 'G':
		return GLONASS
	case 'H':
		return sbas
	}
	if h.System == 'M' || h.System == 0 {
		return GPS
	}
	return h.System
}

// normalizeRINEX2 приводит запись RINEX 2 к разметке RINEX 3:
// двухзначный PRN без буквы системы, двухзначный год и отступ 3 символа.
func normalizeRINEX2(rec []string, sys Constellation) ([]string, error) {
	first := rec[0]
	if len(first) < 22 {
		return nil, &ParseError{Line: 0, Field: 0, Text: first, Err: ErrLineCount}
	}

	prn, err := strconv.Atoi(strings.TrimSpace(first[:2]))
	if err != nil {
		return nil, &ParseError{Line: 0, Field: -1, Text: first[:2], Err: ErrInvalidPRN}
	}

	f := strings.Fields(first[2:22])
	if len(f) != 6 {
		return nil, &ParseError{Line: 0, Field: 0, Text: first[2:22], Err: ErrInvalidField}
	}
	var v [6]int
	for i := range 5 {
		if v[i], err = strconv.Atoi(f[i]); err != nil {
			return nil, &ParseError{Line: 0, Field: 0, Text: first[2:22], Err: ErrInvalidField}
		}
	}
	sec, err := strconv.ParseFloat(f[5], 64)
	if err != nil {
		return nil, &ParseError{Line: 0, Field: 0, Text: first[2:22], Err: ErrInvalidField}
	}
	v[5] = int(sec)

	year := v[0]
	switch {
	case year < 80:
		year += 2000
	case year < 100:
		year += 1900
	}

	out := make([]string, len(rec))
	out[0] = fmt.Sprintf("%c%02d %4d %02d %02d %02d %02d %02d%s",
		byte(sys), prn, year, v[1], v[2], v[3], v[4], v[5], first[22:])
	for k := 1; k < len(rec); k++ {
		out[k] = " " + rec[k]
	}
	return out, nil
}

// WriteRINEX записывает навигационный файл RINEX 3.04 с минимальным заголовком.
func WriteRINEX(w io.Writer, h NavHeader, ephs []*Ephemeris) error {
	bw := bufio.NewWriter(w)

	sys := h.System
	if sys == 0 {
		sys = 'M'
	}
	sysName := "MIXED"
	if sys != 'M' {
		sysName = strings.ToUpper(sys.String())
	}

	fmt.Fprintf(bw, "%9.2f%11s%-20s%-20s%-20s\n", 3.04, "", "N: GNSS NAV DATA", fmt.Sprintf("%c: %s", byte(sys), sysName), labelVersion)
	fmt.Fprintf(bw, "%-20.20s%-20.20s%-20.20s%-20s\n", h.Program, h.RunBy, h.Date, labelProgram)
	for _, c := range h.Comments {
		fmt.Fprintf(bw, "%-60.60s%-20s\n", c, labelComment)
	}
	if h.LeapSeconds != 0 {
		fmt.Fprintf(bw, "%6d%54s%-20s\n", h.LeapSeconds, "", labelLeap)
	}
	fmt.Fprintf(bw, "%60s%-20s\n", "", labelEndOfHdr)

	for _, e := range ephs {
		if _, err := bw.WriteString(e.MarshalRINEX()); err != nil {
			return errors.Wrap(err, "writing nav record")
		}
	}

	return errors.Wrap(bw.Flush(), "flushing nav file")
}
