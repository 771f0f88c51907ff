package navigation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrilhoac/kepler/internal/diag"
	"github.com/carrilhoac/kepler/internal/linalg"
	"github.com/carrilhoac/kepler/internal/timesys"
)

func TestPropagate_G01AtToc(t *testing.T) {
	eph := mustParse(t, g01Messy)

	st, err := eph.Propagate(eph.Toc)
	require.NoError(t, err)

	assert.InDelta(t, -10071473.803126868, st.Position.X(), 1e-3)
	assert.InDelta(t, -12260818.430704785, st.Position.Y(), 1e-3)
	assert.InDelta(t, -21707674.675960607, st.Position.Z(), 1e-3)
	assert.InDelta(t, 241.7735462569327, st.ClockBias*1e6, 1e-6)
	assert.LessOrEqual(t, st.Iterations, 5)
	assert.True(t, st.Time.Equal(eph.Toc))

	// Точные эфемериды IGS на эпоху 22:00, км.
	sp3 := linalg.Vec3{-10071.415123e3, -12260.750456e3, -21707.551434e3}
	assert.Less(t, st.Position.Distance(sp3), 500.0)
}

func TestPropagate_G12Radius(t *testing.T) {
	for _, text := range []string{g12At10, g12At12} {
		eph := mustParse(t, text)

		for _, dt := range []float64{-7200, -3600, 0, 1800, 7200} {
			st, err := eph.Propagate(eph.Toe.Add(dt))
			require.NoError(t, err)

			r := st.Position.Norm()
			assert.InDelta(t, 26560e3, r, 150e3, "%s dt=%v", eph.PRN, dt)
			assert.InDelta(t, 80e-6, st.ClockBias, 1e-6)
		}
	}
}

func TestPropagate_ConsecutiveRecordsAgree(t *testing.T) {
	first := mustParse(t, g12At10)
	second := mustParse(t, g12At12)

	at := timesys.FromCalendar(2012, 7, 15, 11, 0, 0)
	a, err := first.Propagate(at)
	require.NoError(t, err)
	b, err := second.Propagate(at)
	require.NoError(t, err)

	assert.Less(t, a.Position.Distance(b.Position), 10.0)
	assert.InDelta(t, a.ClockBias, b.ClockBias, 1e-8)
}

func TestPropagate_BeiDouGEO(t *testing.T) {
	meo := mustParse(t, beidouRecord("C11"))
	geo := mustParse(t, beidouRecord("C01"))
	require.True(t, geo.Geostationary())

	// На toe орбиты совпадают с точностью до поворота на -5° вокруг X.
	m, err := meo.Propagate(meo.Toe)
	require.NoError(t, err)
	g, err := geo.Propagate(geo.Toe)
	require.NoError(t, err)

	sin5, cos5 := math.Sincos(-5 * math.Pi / 180)
	want := linalg.Vec3{
		m.Position.X(),
		m.Position.Y()*cos5 + m.Position.Z()*sin5,
		-m.Position.Y()*sin5 + m.Position.Z()*cos5,
	}
	assert.InDelta(t, 0, g.Position.Distance(want), 1e-6)
	assert.InDelta(t, m.ClockBias, g.ClockBias, 1e-18)

	// Поворот не меняет радиус.
	later := geo.Toe.Add(3600)
	m, err = meo.Propagate(later)
	require.NoError(t, err)
	g, err = geo.Propagate(later)
	require.NoError(t, err)
	assert.InDelta(t, m.Position.Norm(), g.Position.Norm(), 1e-6)
	assert.Greater(t, g.Position.Distance(m.Position), 1e3)
}

func TestPropagateWithVelocity(t *testing.T) {
	eph := mustParse(t, g12At10)

	at := eph.Toe.Add(900)
	st, err := eph.PropagateWithVelocity(at)
	require.NoError(t, err)

	speed := st.Velocity.Norm()
	assert.Greater(t, speed, 1500.0)
	assert.Less(t, speed, 4500.0)

	before, err := eph.Propagate(at.Add(-5))
	require.NoError(t, err)
	after, err := eph.Propagate(at.Add(5))
	require.NoError(t, err)

	fd := after.Position.Sub(before.Position).Scale(0.1)
	assert.Less(t, fd.Distance(st.Velocity), 0.01)
}

func TestPropagate_Errors(t *testing.T) {
	var none *Ephemeris
	_, err := none.Propagate(timesys.Time{})
	assert.ErrorIs(t, err, ErrNilEphemeris)

	eph := mustParse(t, g12At10)
	eph.PRN = "R12"
	_, err = eph.Propagate(eph.Toe)
	assert.ErrorIs(t, err, ErrUnsupportedSystem)
}

func TestPropagate_NotConverged(t *testing.T) {
	eph := mustParse(t, g12At10)
	// Повреждённый эксцентриситет: итерации не сходятся.
	eph.E = math.NaN()

	var events []diag.Event
	p, err := NewPropagator(eph, WithReporter(diag.ReporterFunc(func(ev diag.Event) {
		events = append(events, ev)
	})))
	require.NoError(t, err)

	st, err := p.Propagate(eph.Toe)
	assert.ErrorIs(t, err, diag.ErrNotConverged)
	assert.Equal(t, keplerMaxIter, st.Iterations)
	require.Len(t, events, 1)
	assert.Equal(t, diag.KindNotConverged, events[0].Kind)
	assert.Equal(t, "navigation.Propagate", events[0].Op)
}

func TestPropagator_StrictFit(t *testing.T) {
	eph := mustParse(t, g12At10)

	p, err := NewPropagator(eph, WithStrictFit())
	require.NoError(t, err)

	_, err = p.Propagate(eph.Toe.Add(3600))
	require.NoError(t, err)

	_, err = p.Propagate(eph.Toe.Add(3 * 3600))
	assert.ErrorIs(t, err, ErrOutsideFit)

	loose, err := NewPropagator(eph)
	require.NoError(t, err)
	_, err = loose.Propagate(eph.Toe.Add(3 * 3600))
	assert.NoError(t, err)
}

func TestPropagator_Range(t *testing.T) {
	eph := mustParse(t, g12At10)

	p, err := NewPropagator(eph, WithVelocity())
	require.NoError(t, err)
	assert.Same(t, eph, p.Ephemeris())

	start := eph.Toe
	end := eph.Toe.Add(600)

	states, err := p.PropagateRange(end, start, time.Minute)
	require.NoError(t, err)
	require.Len(t, states, 11)

	assert.True(t, states[0].Time.Equal(start))
	assert.True(t, states[10].Time.Equal(end))
	for i, st := range states {
		assert.NotZero(t, st.Velocity.Norm(), "state %d", i)
	}

	_, err = p.PropagateRange(start, end, 0)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestNewPropagator_Errors(t *testing.T) {
	_, err := NewPropagator(nil)
	assert.True(t, errors.Is(err, ErrNilEphemeris))

	eph := mustParse(t, g12At10)
	eph.PRN = "R01"
	_, err = NewPropagator(eph)
	assert.ErrorIs(t, err, ErrUnsupportedSystem)

	var p *Propagator
	_, err = p.Propagate(timesys.Time{})
	assert.ErrorIs(t, err, ErrNilEphemeris)
	assert.Nil(t, p.Ephemeris())
}

func TestState_String(t *testing.T) {
	st := State{
		Time:      timesys.FromCalendar(2024, 7, 15, 22, 0, 0),
		Position:  linalg.Vec3{-10071473.8, 1000, 0},
		ClockBias: 241.77e-6,
	}
	s := st.String()
	assert.Contains(t, s, "-10071.473800")
	assert.Contains(t, s, "241.770000 us")
}

func TestOrbitalPeriod(t *testing.T) {
	eph := mustParse(t, g12At10)

	// Период GPS около половины звёздных суток.
	assert.InDelta(t, 43081, eph.OrbitalPeriod().Seconds(), 5)
	assert.Zero(t, (*Ephemeris)(nil).OrbitalPeriod())
	assert.False(t, math.IsNaN(eph.OrbitalPeriod().Hours()))
}

func BenchmarkPropagate(b *testing.B) {
	eph, err := ParseRecord(g12At10)
	if err != nil {
		b.Fatal(err)
	}
	at := eph.Toe.Add(1234.5)

	b.ResetTimer()
	for range b.N {
		_, _ = eph.Propagate(at)
	}
}
