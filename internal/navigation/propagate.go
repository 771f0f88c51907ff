package navigation

import (
	"fmt"
	"math"
	"time"

	"github.com/carrilhoac/kepler/internal/diag"
	"github.com/carrilhoac/kepler/internal/linalg"
	"github.com/carrilhoac/kepler/internal/timesys"
)

// Параметры решения уравнения Кеплера.
const (
	keplerMaxIter = 30
	keplerTol     = 1e-14
	keplerNoise   = 4 * 2.220446049250313e-16

	// velocityStep полушаг центральной разности для скорости, с.
	velocityStep = 0.5

	// sin(-5°), cos(-5°) для геостационарных спутников BeiDou.
	sinGEOTilt = -0.0871557427476582
	cosGEOTilt = 0.9961946980917456
)

// State положение и поправка часов спутника на момент Time.
type State struct {
	Time       timesys.Time
	Position   linalg.Vec3 // ECEF, м.
	Velocity   linalg.Vec3 // ECEF, м/с; заполняется PropagateWithVelocity.
	ClockBias  float64     // Поправка часов, с (с релятивистской поправкой).
	ClockDrift float64     // с/с.
	Iterations int         // Итерации уравнения Кеплера.
}

// String форматирует состояние в километрах и микросекундах, как в SP3.
func (s State) String() string {
	return fmt.Sprintf("%s [%.6f, %.6f, %.6f km] clk %.6f us",
		s.Time, s.Position[0]/1e3, s.Position[1]/1e3, s.Position[2]/1e3, s.ClockBias*1e6)
}

// Propagate рассчитывает положение спутника в ECEF и поправку часов на момент t.
// Несошедшееся уравнение Кеплера даёт лучшую оценку и ошибку,
// оборачивающую diag.ErrNotConverged.
func (e *Ephemeris) Propagate(t timesys.Time) (State, error) {
	return e.propagate(t, nil)
}

// PropagateWithVelocity как Propagate, дополнительно вычисляет скорость
// центральной разностью.
func (e *Ephemeris) PropagateWithVelocity(t timesys.Time) (State, error) {
	return e.propagateWithVelocity(t, nil)
}

func (e *Ephemeris) propagateWithVelocity(t timesys.Time, r diag.Reporter) (State, error) {
	st, err := e.propagate(t, r)
	if err != nil {
		return st, err
	}

	before, err := e.propagate(t.Add(-velocityStep), r)
	if err != nil {
		return st, err
	}
	after, err := e.propagate(t.Add(velocityStep), r)
	if err != nil {
		return st, err
	}

	st.Velocity = after.Position.Sub(before.Position).Scale(1 / (2 * velocityStep))
	return st, nil
}

func (e *Ephemeris) propagate(t timesys.Time, r diag.Reporter) (State, error) {
	if e == nil {
		return State{}, ErrNilEphemeris
	}

	sys := e.System()
	if !sys.Keplerian() {
		return State{}, fmt.Errorf("%w: %s", ErrUnsupportedSystem, sys)
	}
	k := sys.Constants()

	tk := t.Sub(e.Toe)

	// Средняя аномалия.
	n0 := math.Sqrt(k.Mu / (e.A * e.A * e.A))
	m := e.M0 + (n0+e.Deln)*tk

	// Уравнение Кеплера E = M + e·sin(E) методом Ньютона.
	var (
		ea        = m
		prev      float64
		iter      int
		converges bool
	)
	for iter = 1; iter <= keplerMaxIter; iter++ {
		prev = ea
		ea -= (ea - e.E*math.Sin(ea) - m) / (1 - e.E*math.Cos(ea))

		if math.Abs(ea-prev) < max(keplerTol, keplerNoise*math.Abs(ea)) {
			converges = true
			break
		}
	}
	iter = min(iter, keplerMaxIter)

	sinE, cosE := math.Sincos(ea)

	// Аргумент широты, радиус и наклонение с гармоническими поправками.
	u := math.Atan2(math.Sqrt(1-e.E*e.E)*sinE, cosE-e.E) + e.Omg
	rad := e.A * (1 - e.E*cosE)
	inc := e.I0 + e.Idot*tk

	sin2u, cos2u := math.Sincos(2 * u)
	u += e.Cus*sin2u + e.Cuc*cos2u
	rad += e.Crs*sin2u + e.Crc*cos2u
	inc += e.Cis*sin2u + e.Cic*cos2u

	x := rad * math.Cos(u)
	y := rad * math.Sin(u)
	sinI, cosI := math.Sincos(inc)

	var pos linalg.Vec3
	if e.Geostationary() {
		// Орбита в инерциальной системе на toe, затем поворот на -5° вокруг X
		// и на угол вращения Земли вокруг Z.
		omg := e.OMG0 + e.OMGd*tk - k.OmegaE*e.Toes
		sinO, cosO := math.Sincos(omg)

		xg := x*cosO - y*cosI*sinO
		yg := x*sinO + y*cosI*cosO
		zg := y * sinI

		sinW, cosW := math.Sincos(k.OmegaE * tk)
		pos = linalg.Vec3{
			xg*cosW + yg*sinW*cosGEOTilt + zg*sinW*sinGEOTilt,
			-xg*sinW + yg*cosW*cosGEOTilt + zg*cosW*sinGEOTilt,
			-yg*sinGEOTilt + zg*cosGEOTilt,
		}
	} else {
		// Долгота узла с учётом вращения Земли с момента toe.
		omg := e.OMG0 + (e.OMGd-k.OmegaE)*tk - k.OmegaE*e.Toes
		sinO, cosO := math.Sincos(omg)

		pos = linalg.Vec3{
			x*cosO - y*cosI*sinO,
			x*sinO + y*cosI*cosO,
			y * sinI,
		}
	}

	dt := t.Sub(e.Toc)
	st := State{
		Time:       t,
		Position:   pos,
		ClockBias:  e.F0 + e.F1*dt + e.F2*dt*dt - 2*math.Sqrt(k.Mu*e.A)*e.E*sinE/(CLight*CLight),
		ClockDrift: e.F1 + 2*e.F2*dt,
		Iterations: iter,
	}

	if !converges {
		residual := math.Abs(ea - prev)
		diag.Or(r).Report(diag.Event{
			Kind:       diag.KindNotConverged,
			Op:         "navigation.Propagate",
			Iterations: keplerMaxIter,
			Residual:   residual,
			Message:    fmt.Sprintf("%s at %s, e=%.6f", e.PRN, t, e.E),
		})
		return st, diag.NotConverged("navigation.Propagate", keplerMaxIter, residual)
	}

	return st, nil
}

// Propagator рассчитывает положения спутника по одной навигационной записи.
type Propagator struct {
	eph      *Ephemeris
	reporter diag.Reporter
	strict   bool
	velocity bool
}

// PropagatorOption функция настройки Propagator.
type PropagatorOption func(*Propagator)

// WithReporter задаёт получателя диагностики уравнения Кеплера.
func WithReporter(r diag.Reporter) PropagatorOption {
	return func(p *Propagator) {
		p.reporter = r
	}
}

// WithStrictFit запрещает расчёт вне интервала аппроксимации (ErrOutsideFit).
func WithStrictFit() PropagatorOption {
	return func(p *Propagator) {
		p.strict = true
	}
}

// WithVelocity включает расчёт скорости.
func WithVelocity() PropagatorOption {
	return func(p *Propagator) {
		p.velocity = true
	}
}

// NewPropagator создаёт Propagator для записи eph.
func NewPropagator(eph *Ephemeris, opts ...PropagatorOption) (*Propagator, error) {
	if eph == nil {
		return nil, ErrNilEphemeris
	}
	if sys := eph.System(); !sys.Keplerian() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSystem, sys)
	}

	p := &Propagator{eph: eph}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Propagate рассчитывает состояние спутника на момент t.
func (p *Propagator) Propagate(t timesys.Time) (State, error) {
	if p == nil {
		return State{}, ErrNilEphemeris
	}

	if p.strict && !p.eph.Valid(t) {
		return State{}, fmt.Errorf("%w: %s at %s (toe %s)", ErrOutsideFit, p.eph.PRN, t, p.eph.Toe)
	}

	if p.velocity {
		return p.eph.propagateWithVelocity(t, p.reporter)
	}
	return p.eph.propagate(t, p.reporter)
}

// PropagateRange рассчитывает состояния на интервале [start, end] с шагом step.
// При ошибке возвращаются уже рассчитанные состояния.
func (p *Propagator) PropagateRange(start, end timesys.Time, step time.Duration) ([]State, error) {
	if p == nil {
		return nil, ErrNilEphemeris
	}

	if step <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, step)
	}

	if end.Before(start) {
		start, end = end, start
	}

	stepSec := step.Seconds()
	states := make([]State, 0, int(end.Sub(start)/stepSec)+1)

	for t := start; !t.After(end); t = t.Add(stepSec) {
		st, err := p.Propagate(t)
		if err != nil {
			return states, fmt.Errorf("propagation at %s: %w", t, err)
		}
		states = append(states, st)
	}

	return states, nil
}

// Ephemeris исходная навигационная запись.
func (p *Propagator) Ephemeris() *Ephemeris {
	if p == nil {
		return nil
	}
	return p.eph
}
