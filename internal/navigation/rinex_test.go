package navigation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrilhoac/kepler/internal/timesys"
)

// g01Messy запись G01 с пропущенным нулём PRN, неполной эпохой, D/d/e/E
// экспонентами, числами без ведущего нуля и смешанными окончаниями строк.
const g01Messy = "G 1 2024  7 15 22       2.417615614831D-04-7.162270776462d-12\r" +
	"      .810000000000e+02 7.109375000000D+01 5.544516665660d-09-2.734409949984E+00\n" +
	"     3.712251782417e-06  .133793031564D-01 9.505078196526d-06 5.153784959793E+03\r\n" +
	"      .165600000000e+06 8.754432201385D-08-9.331363423370d-01-7.450580596924E-08 \t \n" +
	"     9.540004770577e-01  .190875000000D+03 1.030326911217d+00-7.669248026393E-09 \r" +
	"    -1.371485699313e-10 1.000000000000D+00  .232300000000d+04\n" +
	"     2.000000000000e+00 6.300000000000D+01-1.955777406693d-08 8.100000000000E+01\r\n" +
	"      .158418000000e+06 4.000000000000D+00"

const g01Canonical = "G01 2024 07 15 22 00 00 2.417615614831E-04-7.162270776462E-12 0.000000000000E+00\n" +
	"     8.100000000000E+01 7.109375000000E+01 5.544516665660E-09-2.734409949984E+00\n" +
	"     3.712251782417E-06 1.337930315640E-02 9.505078196526E-06 5.153784959793E+03\n" +
	"     1.656000000000E+05 8.754432201385E-08-9.331363423370E-01-7.450580596924E-08\n" +
	"     9.540004770577E-01 1.908750000000E+02 1.030326911217E+00-7.669248026393E-09\n" +
	"    -1.371485699313E-10 1.000000000000E+00 2.323000000000E+03 0.000000000000E+00\n" +
	"     2.400000000000E+00 6.300000000000E+01-1.955777406693E-08 8.100000000000E+01\n" +
	"     1.584180000000E+05 4.000000000000E+00 0.000000000000E+00 0.000000000000E+00\n"

const g12At10 = "G12 2012 07 15 10 00 00 8.002668619160D-05 2.046363078990D-12 0.000000000000D+00\n" +
	"     2.500000000000D+01-1.110000000000D+02 3.935878230840D-09 5.493558895060D-02\n" +
	"    -5.858018994330D-06 4.072350449860D-03 7.569789886470D-06 5.153764709470D+03\n" +
	"     3.600000000000D+04 7.264316082000D-08 2.108504061720D+00 2.421438694000D-08\n" +
	"     9.803942387720D-01 2.425625000000D+02 1.125559178460D-01-7.852827101770D-09\n" +
	"    -1.825076021740D-10 1.000000000000D+00 1.697000000000D+03 0.000000000000D+00\n" +
	"     2.000000000000D+00 0.000000000000D+00-1.210719347000D-08 2.500000000000D+01\n" +
	"     3.399000000000D+04 4.000000000000D+00\n"

const g12At12 = "G12 2012 07 15 12 00 00 8.004158735280D-05 2.046363078990D-12 0.000000000000D+00\n" +
	"     5.800000000000D+01-1.050937500000D+02 3.911234347180D-09 1.104899710370D+00\n" +
	"    -5.422160029410D-06 4.072798416020D-03 7.687136530880D-06 5.153766078950D+03\n" +
	"     4.320000000000D+04 0.000000000000D+00 2.108448110950D+00 9.685754776000D-08\n" +
	"     9.803929996810D-01 2.392812500000D+02 1.127125627250D-01-7.783181343600D-09\n" +
	"    -2.389385241770D-10 1.000000000000D+00 1.697000000000D+03 0.000000000000D+00\n" +
	"     2.000000000000D+00 0.000000000000D+00-1.210719347000D-08 5.800000000000D+01\n" +
	"     3.957000000000D+04 4.000000000000D+00\n"

func mustParse(t *testing.T, text string) *Ephemeris {
	t.Helper()
	eph, err := ParseRecord(text)
	require.NoError(t, err)
	return eph
}

func TestParseRecord_Messy(t *testing.T) {
	eph := mustParse(t, g01Messy)

	assert.Equal(t, "G01", eph.PRN)
	assert.Equal(t, GPS, eph.System())
	assert.Equal(t, int64(1721080800), eph.Toc.Seconds())
	assert.Equal(t, 2323, eph.Week)
	assert.InDelta(t, 165600.0, eph.Toc.GPSTimeOfWeek(), 1e-9)
	assert.True(t, eph.Toe.Equal(eph.Toc), "toe %s toc %s", eph.Toe, eph.Toc)

	assert.InDelta(t, 2.417615614831e-4, eph.F0, 1e-18)
	assert.InDelta(t, -7.162270776462e-12, eph.F1, 1e-24)
	assert.Zero(t, eph.F2)
	assert.InDelta(t, 0.01337930315640, eph.E, 1e-15)
	assert.InDelta(t, 5.153784959793e3*5.153784959793e3, eph.A, 1e-6)
	assert.InDelta(t, 1.030326911217, eph.Omg, 1e-15)

	assert.Equal(t, 81, eph.IODE)
	assert.Equal(t, 81, eph.IODC)
	assert.Equal(t, 63, eph.SVH)
	assert.Equal(t, 0, eph.SVA)
	assert.Equal(t, 1, eph.Code)
	assert.Zero(t, eph.Flag)
	assert.Equal(t, 4.0, eph.Fit)
	assert.InDelta(t, -1.955777406693e-8, eph.TGD[0], 1e-20)
	assert.InDelta(t, 158418.0, eph.Ttr.GPSTimeOfWeek(), 1e-9)
	assert.Equal(t, 2323, eph.Ttr.GPSWeek())
	assert.False(t, eph.Healthy())
}

func TestMarshalRINEX_Canonical(t *testing.T) {
	eph := mustParse(t, g01Messy)

	got := eph.MarshalRINEX()
	assert.Equal(t, g01Canonical, got)

	for i, line := range strings.Split(strings.TrimSuffix(got, "\n"), "\n") {
		assert.Len(t, line, 80, "line %d", i)
	}
}

func TestMarshalRINEX_RoundTrip(t *testing.T) {
	for _, text := range []string{g01Messy, g12At10, g12At12} {
		first := mustParse(t, text)
		second := mustParse(t, first.MarshalRINEX())

		assert.Equal(t, first.MarshalRINEX(), second.MarshalRINEX())
		assert.Equal(t, first.PRN, second.PRN)
		assert.True(t, first.Toe.Equal(second.Toe))
		assert.True(t, first.Ttr.Equal(second.Ttr))
		assert.Equal(t, first.SVA, second.SVA)
		assert.InDelta(t, first.A, second.A, 1e-6)
		assert.Equal(t, first.M0, second.M0)
	}
}

func TestMarshalRINEX_Nil(t *testing.T) {
	var eph *Ephemeris
	assert.Empty(t, eph.MarshalRINEX())
}

func TestParseRecord_G12(t *testing.T) {
	eph := mustParse(t, g12At10)

	assert.Equal(t, "G12", eph.PRN)
	assert.Equal(t, 1697, eph.Week)
	assert.True(t, eph.Toc.Equal(timesys.FromCalendar(2012, 7, 15, 10, 0, 0)))
	assert.True(t, eph.Toe.Equal(timesys.FromGPS(1697, 36000)))
	assert.Equal(t, 25, eph.IODE)
	assert.True(t, eph.Healthy())
	assert.Equal(t, 2.4, eph.URA())
}

func TestParseRecord_Errors(t *testing.T) {
	lines := strings.Split(strings.TrimSuffix(g12At10, "\n"), "\n")

	tests := []struct {
		name  string
		text  string
		want  error
		line  int
		field int
	}{
		{"seven lines", strings.Join(lines[:7], "\n"), ErrLineCount, 7, -1},
		{"bad prn", "X12" + strings.Join(lines, "\n")[3:], ErrInvalidPRN, 0, -1},
		{"non-numeric prn", "G1A" + strings.Join(lines, "\n")[3:], ErrInvalidPRN, 0, -1},
		{
			"bad field",
			strings.Join(append(append([]string{}, lines[:2]...), strings.Replace(lines[2], "4.072350449860D-03", "4.07235044986XD-03", 1)), "\n") +
				"\n" + strings.Join(lines[3:], "\n"),
			ErrInvalidField, 2, 1,
		},
		{"bad epoch", "G12 2012 13 15 10 00 00" + strings.Join(lines, "\n")[23:], timesys.ErrInvalidEpoch, 0, 0},
		{"short first line", "G12 2012 07\n" + strings.Join(lines[1:], "\n"), timesys.ErrInvalidEpoch, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %T", err)
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestParseRecord_Glonass(t *testing.T) {
	text := "R01" + g12At10[3:]

	_, err := ParseRecord(text)
	assert.ErrorIs(t, err, ErrUnsupportedSystem)
}

func TestParseRecord_BlankFieldIsZero(t *testing.T) {
	lines := strings.Split(strings.TrimSuffix(g12At10, "\n"), "\n")
	lines[3] = "    " + strings.Repeat(" ", fieldWidth) + lines[3][fieldOffset+fieldWidth:]

	eph := mustParse(t, strings.Join(lines, "\n"))
	assert.Zero(t, eph.Toes)
}

func TestParseRecord_BlankLastLine(t *testing.T) {
	lines := strings.Split(strings.TrimSuffix(g12At10, "\n"), "\n")
	lines[7] = ""

	eph := mustParse(t, strings.Join(lines, "\n")+"\n")
	assert.Zero(t, eph.Fit)
	assert.Equal(t, "4h0m0s", eph.FitInterval().String())
	assert.True(t, eph.Ttr.Equal(timesys.FromGPS(1697, 0)), "ttr %s", eph.Ttr)

	// Лишние пустые строки после записи не мешают разбору.
	mustParse(t, g12At10+"\n\n")
}

func TestNormalizePRN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"G01", "G01", false},
		{"G 1", "G01", false},
		{"E12", "E12", false},
		{"C 5", "C05", false},
		{"J02", "J02", false},
		{"R07", "R07", false},
		{"Z01", "", true},
		{"G", "", true},
		{"G1 ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizePRN(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPRN)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURA(t *testing.T) {
	tests := []struct {
		value float64
		index int
	}{
		{2.0, 0},
		{2.4, 0},
		{2.5, 1},
		{6.85, 3},
		{6144, 14},
		{7000, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.index, URAIndex(tt.value), "URAIndex(%v)", tt.value)
	}

	assert.Equal(t, 4.85, URAValue(2))
	assert.Zero(t, URAValue(15))
	assert.Zero(t, URAValue(-1))
	assert.Zero(t, URAValue(16))
}

// beidouRecord запись G12 под видом BeiDou: эпоха и toe в шкале BDT,
// неделя BDT 341 соответствует неделе GPS 1697.
func beidouRecord(prn string) string {
	return prn + strings.Replace(g12At10[3:], "1.697000000000D+03", "3.410000000000D+02", 1)
}

func TestBeiDouTimeScale(t *testing.T) {
	eph := mustParse(t, beidouRecord("C11"))

	assert.Equal(t, BeiDou, eph.System())
	assert.Equal(t, 341, eph.Week)
	assert.False(t, eph.Geostationary())

	// 10:00:00 BDT = 10:00:14 GPST.
	assert.True(t, eph.Toc.Equal(timesys.FromCalendar(2012, 7, 15, 10, 0, 14)), "toc %s", eph.Toc)
	assert.True(t, eph.Toe.Equal(timesys.FromGPS(1697, 36014)), "toe %s", eph.Toe)
	assert.Zero(t, eph.Toe.Sub(eph.Toc))

	assert.InDelta(t, 36000.0, BeiDou.timeOfWeek(eph.Toe), 1e-9)
	assert.InDelta(t, 33990.0, BeiDou.timeOfWeek(eph.Ttr), 1e-9)

	text := eph.MarshalRINEX()
	assert.True(t, strings.HasPrefix(text, "C11 2012 07 15 10 00 00"), text)

	again := mustParse(t, text)
	assert.True(t, again.Toc.Equal(eph.Toc))
	assert.True(t, again.Toe.Equal(eph.Toe))
	assert.True(t, again.Ttr.Equal(eph.Ttr))
}

func TestEphemeris_Geostationary(t *testing.T) {
	tests := []struct {
		prn  string
		want bool
	}{
		{"C01", true},
		{"C05", true},
		{"C06", false},
		{"C58", false},
		{"C59", true},
		{"C63", true},
		{"G01", false},
		{"E05", false},
	}

	for _, tt := range tests {
		eph := &Ephemeris{PRN: tt.prn}
		assert.Equal(t, tt.want, eph.Geostationary(), tt.prn)
	}

	var none *Ephemeris
	assert.False(t, none.Geostationary())
}

func TestEphemeris_FitInterval(t *testing.T) {
	eph := mustParse(t, g12At10)

	assert.Equal(t, "4h0m0s", eph.FitInterval().String())
	assert.True(t, eph.Valid(eph.Toe.Add(7200)))
	assert.False(t, eph.Valid(eph.Toe.Add(7201)))
	assert.True(t, eph.Valid(eph.Toe.Add(-7200)))

	eph.Fit = 0
	assert.Equal(t, "4h0m0s", eph.FitInterval().String())

	var none *Ephemeris
	assert.False(t, none.Valid(eph.Toe))
	assert.Equal(t, "<nil>", none.String())
}
