package geodesy

import (
	"fmt"
	"math"

	"github.com/carrilhoac/kepler/internal/diag"
	"github.com/carrilhoac/kepler/internal/linalg"
)

// Параметры проекции UTM.
const (
	UTMScale          = 0.9996
	UTMFalseEasting   = 500000.0
	UTMFalseNorthingS = 10000000.0

	// utmScaleCoef коэффициент второго порядка масштаба в UTMScaleFactor.
	utmScaleCoef = 0.5035348161
)

// UTM плоские координаты UTM.
type UTM struct {
	Easting    float64 // м.
	Northing   float64 // м.
	Zone       int     // 1..60.
	Hemisphere byte    // 'N' или 'S'.
}

// String форматирует координаты как "22S 457866.057 7553844.609".
func (u UTM) String() string {
	return fmt.Sprintf("%d%c %.3f %.3f", u.Zone, u.Hemisphere, u.Easting, u.Northing)
}

// UTMZone номер зоны для долготы в градусах, ограничен диапазоном 1..60.
func UTMZone(lon float64) int {
	zone := 1 + int(math.Floor((lon+180)/6))
	return min(max(zone, 1), 60)
}

// CentralMeridian осевой меридиан зоны, градусы.
func CentralMeridian(zone int) float64 {
	return float64((zone-1)*6 - 177)
}

// UTMScaleFactor приближённый масштаб проекции в долготе lon
// относительно осевого меридиана её зоны.
func UTMScaleFactor(lon float64) float64 {
	w := (lon - CentralMeridian(UTMZone(lon))) * Deg2Rad
	return UTMScale + utmScaleCoef*w*w
}

// conformalTan тангенс конформной широты.
func (s *Spheroid) conformalTan(phi float64) float64 {
	tau := math.Tan(phi)
	sig := math.Sinh(s.e * math.Atanh(s.e*tau/math.Sqrt(1+tau*tau)))
	return tau*math.Sqrt(1+sig*sig) - sig*math.Sqrt(1+tau*tau)
}

// GeoToUTM прямая проекция UTM рядами Крюгера. Высота игнорируется.
// Широта >= 0 относится к северному полушарию.
func (s *Spheroid) GeoToUTM(g Geodetic) UTM {
	zone := UTMZone(g.Lon)
	w := (g.Lon - CentralMeridian(zone)) * Deg2Rad
	tp := s.conformalTan(g.Lat * Deg2Rad)
	cosW := math.Cos(w)

	xi := math.Atan2(tp, cosW)
	eta := math.Asinh(math.Sin(w) / math.Hypot(tp, cosW))

	var x, y float64
	for i, a := range s.alpha {
		k := float64(2 * (i + 1))
		sinU, cosU := math.Sincos(k * xi)
		x += a * cosU * math.Sinh(k*eta)
		y += a * sinU * math.Cosh(k*eta)
	}

	u := UTM{
		Easting:    UTMScale*s.rr*(eta+x) + UTMFalseEasting,
		Northing:   UTMScale * s.rr * (xi + y),
		Zone:       zone,
		Hemisphere: 'N',
	}
	if g.Lat < 0 {
		u.Northing += UTMFalseNorthingS
		u.Hemisphere = 'S'
	}
	return u
}

// UTMToGeo обратная проекция UTM. Недопустимые зона или полушарие дают
// *linalg.DomainError. Если метод Ньютона для конформной широты не сошёлся,
// возвращается лучшая оценка и ошибка, оборачивающая diag.ErrNotConverged.
func (s *Spheroid) UTMToGeo(u UTM) (Geodetic, error) {
	if u.Zone < 1 || u.Zone > 60 {
		return Geodetic{}, &linalg.DomainError{Op: "geodesy.UTMToGeo", Detail: fmt.Sprintf("zone %d out of range", u.Zone)}
	}

	northing := u.Northing
	switch u.Hemisphere {
	case 'N', 'n':
	case 'S', 's':
		northing -= UTMFalseNorthingS
	default:
		return Geodetic{}, &linalg.DomainError{Op: "geodesy.UTMToGeo", Detail: fmt.Sprintf("hemisphere %q", u.Hemisphere)}
	}

	k := UTMScale * s.rr
	x := (u.Easting - UTMFalseEasting) / k
	y := northing / k

	eta, xi := x, y
	for i, b := range s.beta {
		m := float64(2 * (i + 1))
		sinY, cosY := math.Sincos(m * y)
		eta += b * cosY * math.Sinh(m*x)
		xi += b * sinY * math.Cosh(m*x)
	}

	sinXi, cosXi := math.Sincos(xi)
	sinhEta := math.Sinh(eta)

	w := math.Atan2(sinhEta, cosXi)
	tauP := sinXi / math.Hypot(sinhEta, cosXi)

	// Ньютон по τ = tan φ из τ' = tan χ.
	var (
		tau       = tauP
		e1        = 1 - s.e2
		delta     float64
		converges bool
	)
	for iter := 1; iter <= utmMaxIter; iter++ {
		rt := math.Sqrt(1 + tau*tau)
		sig := math.Sinh(s.e * math.Atanh(s.e*tau/rt))
		rs := math.Sqrt(1 + sig*sig)

		fn := tau*rs - sig*rt - tauP
		dfn := (rs*rt - sig*tau) * (e1 * rt) / (1 + e1*tau*tau)

		next := tau - fn/dfn
		delta = math.Abs(tau - next)
		tau = next

		if delta < max(convergenceTol, floatNoise*math.Abs(tau)) {
			converges = true
			break
		}
	}

	g := Geodetic{
		Lat: math.Atan(tau) * Rad2Deg,
		Lon: w*Rad2Deg + CentralMeridian(u.Zone),
	}

	if !converges {
		s.report(diag.Event{
			Kind:       diag.KindNotConverged,
			Op:         "geodesy.UTMToGeo",
			Iterations: utmMaxIter,
			Residual:   delta,
			Message:    u.String(),
		})
		return g, diag.NotConverged("geodesy.UTMToGeo", utmMaxIter, delta)
	}

	return g, nil
}
