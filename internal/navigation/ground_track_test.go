package navigation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/carrilhoac/kepler/internal/geodesy"
	"github.com/carrilhoac/kepler/internal/timesys"
)

func TestGenerateGroundTrack_G12(t *testing.T) {
	eph := mustParse(t, g12At10)

	start := eph.Toe.Add(-7200)
	end := eph.Toe.Add(7200)
	now := eph.Toe

	gt, err := GenerateGroundTrack(eph, geodesy.New(geodesy.WGS84), start, end, now, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gt.PRN != "G12" {
		t.Errorf("PRN: want G12, got %s", gt.PRN)
	}

	// 241 расчётная точка плюс по две точки на каждое пересечение антимеридиана.
	crossings := len(gt.Past) + len(gt.Future) - 2
	if got := gt.TotalPoints(); got != 241+2*crossings {
		t.Errorf("expected %d points, got %d", 241+2*crossings, got)
	}

	nowMs := now.Std().UnixMilli()
	for _, seg := range gt.Past {
		if last := seg[len(seg)-1]; last.TS >= nowMs {
			t.Errorf("past segment ends after now: %d >= %d", last.TS, nowMs)
		}
	}
	for _, seg := range gt.Future {
		if seg[0].TS < nowMs {
			t.Errorf("future segment starts before now: %d < %d", seg[0].TS, nowMs)
		}
	}

	for _, p := range gt.Points() {
		if math.Abs(p.Lat) > 56.5 {
			t.Errorf("latitude %.3f exceeds GPS inclination", p.Lat)
		}
		if p.Lon < -180 || p.Lon > 180 {
			t.Errorf("longitude %.3f out of range", p.Lon)
		}
	}
}

func TestGenerateGroundTrack_DefaultSpheroid(t *testing.T) {
	eph := mustParse(t, g12At10)

	a, err := GenerateGroundTrack(eph, nil, eph.Toe, eph.Toe.Add(600), eph.Toe, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := GenerateGroundTrack(eph, geodesy.New(geodesy.WGS84), eph.Toe, eph.Toe.Add(600), eph.Toe, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pa, pb := a.Points(), b.Points()
	if len(pa) != len(pb) {
		t.Fatalf("point count differs: %d vs %d", len(pa), len(pb))
	}
	for i := range pa {
		if pa[i] != pb[i] {
			t.Errorf("point %d differs: %+v vs %+v", i, pa[i], pb[i])
		}
	}
}

func TestGenerateGroundTrack_ReversedStartEnd(t *testing.T) {
	eph := mustParse(t, g12At10)

	gt, err := GenerateGroundTrack(eph, nil, eph.Toe.Add(600), eph.Toe, eph.Toe, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gt.TotalPoints() < 11 {
		t.Errorf("expected at least 11 points, got %d", gt.TotalPoints())
	}

	points := gt.Points()
	for i := 1; i < len(points); i++ {
		if points[i].TS < points[i-1].TS {
			t.Errorf("timestamps not ascending at %d", i)
		}
	}
}

func TestGenerateGroundTrack_Errors(t *testing.T) {
	eph := mustParse(t, g12At10)
	at := eph.Toe

	if _, err := GenerateGroundTrack(nil, nil, at, at.Add(60), at, time.Minute); !errors.Is(err, ErrNilEphemeris) {
		t.Errorf("nil ephemeris: expected ErrNilEphemeris, got %v", err)
	}

	if _, err := GenerateGroundTrack(eph, nil, at, at.Add(60), at, 0); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("zero step: expected ErrInvalidStep, got %v", err)
	}

	if _, err := GenerateGroundTrack(eph, nil, at, at, at, time.Minute); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("equal start/end: expected ErrInvalidRange, got %v", err)
	}

	glonass := *eph
	glonass.PRN = "R12"
	if _, err := GenerateGroundTrack(&glonass, nil, at, at.Add(60), at, time.Minute); !errors.Is(err, ErrUnsupportedSystem) {
		t.Errorf("glonass: expected ErrUnsupportedSystem, got %v", err)
	}
}

func TestGenerateDefaultGroundTrack(t *testing.T) {
	eph := mustParse(t, g12At10)
	now := timesys.FromCalendar(2012, 7, 15, 10, 30, 0)

	gt, err := GenerateDefaultGroundTrack(eph, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Два периода по ~718 минут с шагом в минуту.
	if got := gt.TotalPoints(); got < 1430 {
		t.Errorf("expected at least 1430 points, got %d", got)
	}

	if len(gt.Past) == 0 || len(gt.Future) == 0 {
		t.Errorf("expected both past and future segments, got %d/%d", len(gt.Past), len(gt.Future))
	}
}

func TestGenerateDefaultGroundTrack_Nil(t *testing.T) {
	if _, err := GenerateDefaultGroundTrack(nil, timesys.Time{}); !errors.Is(err, ErrNilEphemeris) {
		t.Errorf("expected ErrNilEphemeris, got %v", err)
	}
}

func TestSplitAtAntimeridian_NoCrossing(t *testing.T) {
	points := []TrackPoint{
		{Lon: 10.0, Lat: 20.0, TS: 1000},
		{Lon: 12.0, Lat: 22.0, TS: 2000},
		{Lon: 14.0, Lat: 24.0, TS: 3000},
	}

	segments := splitAtAntimeridian(points)

	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	if len(segments[0]) != 3 {
		t.Errorf("expected 3 points in segment, got %d", len(segments[0]))
	}
}

func TestSplitAtAntimeridian_SingleCrossing(t *testing.T) {
	points := []TrackPoint{
		{Lon: 170.0, Lat: 40.0, TS: 1000},
		{Lon: 175.0, Lat: 42.0, TS: 2000},
		{Lon: -175.0, Lat: 44.0, TS: 3000},
		{Lon: -170.0, Lat: 46.0, TS: 4000},
	}

	segments := splitAtAntimeridian(points)

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}

	lastOfFirst := segments[0][len(segments[0])-1]
	if lastOfFirst.Lon != 180.0 {
		t.Errorf("first segment should end at +180°, got %.2f°", lastOfFirst.Lon)
	}

	firstOfSecond := segments[1][0]
	if firstOfSecond.Lon != -180.0 {
		t.Errorf("second segment should start at -180°, got %.2f°", firstOfSecond.Lon)
	}

	// Середина шага: широта 43°, время 2500 мс.
	if math.Abs(lastOfFirst.Lat-43.0) > 1e-9 || lastOfFirst.TS != 2500 {
		t.Errorf("unexpected boundary point %+v", lastOfFirst)
	}
}

func TestSplitAtAntimeridian_ReverseCrossing(t *testing.T) {
	points := []TrackPoint{
		{Lon: -170.0, Lat: 40.0, TS: 1000},
		{Lon: -175.0, Lat: 42.0, TS: 2000},
		{Lon: 175.0, Lat: 44.0, TS: 3000},
		{Lon: 170.0, Lat: 46.0, TS: 4000},
	}

	segments := splitAtAntimeridian(points)

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}

	if lon := segments[0][len(segments[0])-1].Lon; lon != -180.0 {
		t.Errorf("first segment should end at -180°, got %.2f°", lon)
	}

	if lon := segments[1][0].Lon; lon != 180.0 {
		t.Errorf("second segment should start at +180°, got %.2f°", lon)
	}
}

func TestSplitAtAntimeridian_MultipleCrossings(t *testing.T) {
	points := []TrackPoint{
		{Lon: 160.0, Lat: 30.0, TS: 1000},
		{Lon: 175.0, Lat: 35.0, TS: 2000},
		{Lon: -170.0, Lat: 40.0, TS: 3000},
		{Lon: -150.0, Lat: 42.0, TS: 4000},
		{Lon: -175.0, Lat: 44.0, TS: 5000},
		{Lon: 170.0, Lat: 46.0, TS: 6000},
		{Lon: 150.0, Lat: 48.0, TS: 7000},
	}

	if segments := splitAtAntimeridian(points); len(segments) != 3 {
		t.Errorf("expected 3 segments, got %d", len(segments))
	}
}

func TestSplitAtAntimeridian_Empty(t *testing.T) {
	if segments := splitAtAntimeridian(nil); segments != nil {
		t.Errorf("expected nil for empty input, got %v", segments)
	}
}

func TestSplitPastFuture(t *testing.T) {
	segment := []TrackPoint{
		{Lon: 10, Lat: 50, TS: 1000},
		{Lon: 15, Lat: 51, TS: 2000},
		{Lon: 20, Lat: 52, TS: 3000},
		{Lon: 25, Lat: 53, TS: 4000},
	}

	tests := []struct {
		name       string
		nowMs      int64
		wantPast   int
		wantFuture int
	}{
		{"all past", 5000, 1, 0},
		{"all future", 500, 0, 1},
		{"split", 2500, 1, 1},
		{"exact point", 2000, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			past, future := splitPastFuture([][]TrackPoint{segment}, tt.nowMs)

			if len(past) != tt.wantPast || len(future) != tt.wantFuture {
				t.Fatalf("expected %d/%d segments, got %d/%d", tt.wantPast, tt.wantFuture, len(past), len(future))
			}

			for _, seg := range past {
				for _, p := range seg {
					if p.TS >= tt.nowMs {
						t.Errorf("past point at %d, now %d", p.TS, tt.nowMs)
					}
				}
			}
			for _, seg := range future {
				for _, p := range seg {
					if p.TS < tt.nowMs {
						t.Errorf("future point at %d, now %d", p.TS, tt.nowMs)
					}
				}
			}
		})
	}
}

func TestGroundTrack_Points(t *testing.T) {
	gt := &GroundTrack{
		Past:   [][]TrackPoint{{{Lon: 1, TS: 1}, {Lon: 2, TS: 2}}},
		Future: [][]TrackPoint{{{Lon: 3, TS: 3}}},
	}

	points := gt.Points()
	if len(points) != 3 || points[2].Lon != 3 {
		t.Errorf("unexpected points %+v", points)
	}

	if gt.TotalPoints() != 3 {
		t.Errorf("expected 3 points, got %d", gt.TotalPoints())
	}

	var none *GroundTrack
	if none.Points() != nil || none.TotalPoints() != 0 {
		t.Error("nil GroundTrack should be empty")
	}
}
