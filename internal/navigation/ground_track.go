package navigation

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/carrilhoac/kepler/internal/geodesy"
	"github.com/carrilhoac/kepler/internal/timesys"
)

// ErrInvalidRange начало и конец интервала трассы совпадают.
var ErrInvalidRange = errors.New("invalid time range: start equals end")

// Порог скачка долготы для определения пересечения антимеридиана (градусы).
const antimeridianThreshold = 270.0

// defaultTrackStep шаг трассы по умолчанию.
const defaultTrackStep = 60 * time.Second

// TrackPoint точка наземной трассы спутника.
type TrackPoint struct {
	Lon float64 `json:"lon"` // Долгота, градусы (-180..+180).
	Lat float64 `json:"lat"` // Широта, градусы (-90..+90).
	TS  int64   `json:"ts"`  // Unix timestamp, миллисекунды.
}

// GroundTrack трасса спутника, разбитая на пройденный и предстоящий участки
// и на сегменты по антимеридиану.
type GroundTrack struct {
	Past   [][]TrackPoint `json:"past"`
	Future [][]TrackPoint `json:"future"`
	PRN    string         `json:"prn"`
}

// Points возвращает все точки плоским массивом в порядке времени.
func (gt *GroundTrack) Points() []TrackPoint {
	if gt == nil {
		return nil
	}
	return slices.Concat(slices.Concat(gt.Past, gt.Future)...)
}

// TotalPoints возвращает общее количество точек.
func (gt *GroundTrack) TotalPoints() int {
	if gt == nil {
		return 0
	}

	n := 0
	for _, track := range [][][]TrackPoint{gt.Past, gt.Future} {
		for _, seg := range track {
			n += len(seg)
		}
	}
	return n
}

// OrbitalPeriod период обращения по большой полуоси.
func (e *Ephemeris) OrbitalPeriod() time.Duration {
	if e == nil || e.A <= 0 {
		return 0
	}
	mu := e.System().Constants().Mu
	sec := 2 * math.Pi * math.Sqrt(e.A*e.A*e.A/mu)
	return time.Duration(sec * float64(time.Second))
}

// GenerateGroundTrack строит наземную трассу спутника на интервале [start, end]
// на эллипсоиде sp (nil означает WGS84). Трасса делится по антимеридиану
// и на участки до и после now.
func GenerateGroundTrack(eph *Ephemeris, sp *geodesy.Spheroid, start, end, now timesys.Time, step time.Duration) (*GroundTrack, error) {
	if eph == nil {
		return nil, ErrNilEphemeris
	}

	if step <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, step)
	}

	if start.Equal(end) {
		return nil, ErrInvalidRange
	}

	if sp == nil {
		sp = geodesy.New(geodesy.WGS84)
	}

	prop, err := NewPropagator(eph)
	if err != nil {
		return nil, fmt.Errorf("creating propagator: %w", err)
	}

	states, err := prop.PropagateRange(start, end, step)
	if err != nil && len(states) == 0 {
		return nil, err
	}

	points := make([]TrackPoint, 0, len(states))
	for _, st := range states {
		g, err := sp.ECFToGeo(geodesy.ECEFFromVec3(st.Position))
		if err != nil {
			return nil, fmt.Errorf("geodetic at %s: %w", st.Time, err)
		}
		points = append(points, TrackPoint{
			Lon: g.Lon,
			Lat: g.Lat,
			TS:  st.Time.Std().UnixMilli(),
		})
	}

	segments := splitAtAntimeridian(points)
	past, future := splitPastFuture(segments, now.Std().UnixMilli())

	return &GroundTrack{
		Past:   past,
		Future: future,
		PRN:    eph.PRN,
	}, nil
}

// GenerateDefaultGroundTrack строит трассу на один орбитальный период
// до и после now с шагом 60 секунд на WGS84.
func GenerateDefaultGroundTrack(eph *Ephemeris, now timesys.Time) (*GroundTrack, error) {
	if eph == nil {
		return nil, ErrNilEphemeris
	}

	period := eph.OrbitalPeriod()
	if period <= 0 {
		return nil, fmt.Errorf("%w: orbital period %v", ErrInvalidRange, period)
	}

	start := now.Add(-period.Seconds())
	end := now.Add(period.Seconds())

	return GenerateGroundTrack(eph, nil, start, end, now, defaultTrackStep)
}

// crossesAntimeridian сообщает, перескакивает ли долгота между a и b через ±180°.
func crossesAntimeridian(a, b TrackPoint) bool {
	return math.Abs(b.Lon-a.Lon) > antimeridianThreshold
}

// splitAtAntimeridian режет трассу на сегменты в местах пересечения
// антимеридиана. Каждый разрез замыкается парой точек на ±180°.
func splitAtAntimeridian(points []TrackPoint) [][]TrackPoint {
	if len(points) == 0 {
		return nil
	}

	var segments [][]TrackPoint
	from := 0
	var head []TrackPoint

	for i := 1; i < len(points); i++ {
		if !crossesAntimeridian(points[i-1], points[i]) {
			continue
		}

		exit, entry := interpolateAntimeridian(points[i-1], points[i])
		seg := append(head, points[from:i]...)
		segments = append(segments, append(seg, exit))

		head = []TrackPoint{entry}
		from = i
	}

	return append(segments, append(head, points[from:]...))
}

// interpolateAntimeridian точки выхода и входа на антимеридиане между a и b.
// Долгота b разворачивается на ±360° в сторону a, широта и время
// интерполируются линейно.
func interpolateAntimeridian(a, b TrackPoint) (exit, entry TrackPoint) {
	edge := math.Copysign(180, a.Lon)
	bLon := b.Lon + 2*edge

	f := 0.5
	if span := bLon - a.Lon; math.Abs(span) > 1e-10 {
		f = math.Max(0, math.Min(1, (edge-a.Lon)/span))
	}

	lat := a.Lat + f*(b.Lat-a.Lat)
	ts := a.TS + int64(f*float64(b.TS-a.TS))

	return TrackPoint{Lon: edge, Lat: lat, TS: ts},
		TrackPoint{Lon: -edge, Lat: lat, TS: ts}
}

// splitPastFuture относит к прошлому точки с ts < nowMs, остальные к будущему.
// Сегмент, на который приходится now, делится на два.
func splitPastFuture(segments [][]TrackPoint, nowMs int64) (past, future [][]TrackPoint) {
	for _, seg := range segments {
		cut := slices.IndexFunc(seg, func(p TrackPoint) bool { return p.TS >= nowMs })

		switch {
		case len(seg) == 0:
		case cut < 0:
			past = append(past, seg)
		case cut == 0:
			future = append(future, seg)
		default:
			past = append(past, seg[:cut])
			future = append(future, seg[cut:])
		}
	}
	return past, future
}
