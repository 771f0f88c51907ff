package geodesy

import (
	"fmt"
	"math"

	"github.com/carrilhoac/kepler/internal/diag"
	"github.com/carrilhoac/kepler/internal/linalg"
	"github.com/carrilhoac/kepler/internal/timesys"
)

// Geodetic геодезические координаты.
type Geodetic struct {
	Lat    float64 // Широта, градусы.
	Lon    float64 // Долгота, градусы.
	Height float64 // Высота над эллипсоидом, м.
}

// String форматирует координаты с точностью до ~0.1 мм.
func (g Geodetic) String() string {
	return fmt.Sprintf("(%.9f°, %.9f°, %.4f m)", g.Lat, g.Lon, g.Height)
}

// ECEF геоцентрические координаты, жёстко связанные с Землёй, м.
type ECEF struct {
	X float64
	Y float64
	Z float64
}

// Vec3 координаты как вектор.
func (p ECEF) Vec3() linalg.Vec3 {
	return linalg.Vec3{p.X, p.Y, p.Z}
}

// ECEFFromVec3 точка ECEF из вектора.
func ECEFFromVec3(v linalg.Vec3) ECEF {
	return ECEF{X: v[0], Y: v[1], Z: v[2]}
}

// String форматирует координаты в метрах.
func (p ECEF) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", p.X, p.Y, p.Z)
}

// GeoToECF переводит геодезические координаты в ECEF.
func (s *Spheroid) GeoToECF(g Geodetic) ECEF {
	phi := g.Lat * Deg2Rad
	lam := g.Lon * Deg2Rad

	sinPhi, cosPhi := math.Sincos(phi)
	sinLam, cosLam := math.Sincos(lam)

	// Радиус кривизны первого вертикала.
	n := s.a / math.Sqrt(1-s.e2*sinPhi*sinPhi)

	return ECEF{
		X: (n + g.Height) * cosPhi * cosLam,
		Y: (n + g.Height) * cosPhi * sinLam,
		Z: (n*(1-s.e2) + g.Height) * sinPhi,
	}
}

// ECFToGeo переводит ECEF в геодезические координаты итерацией
// по геоцентрической z. Для центра Земли возвращает *linalg.DomainError.
// Если итерации не сошлись, возвращается лучшая оценка и ошибка,
// оборачивающая diag.ErrNotConverged.
func (s *Spheroid) ECFToGeo(p ECEF) (Geodetic, error) {
	if p.X == 0 && p.Y == 0 && p.Z == 0 {
		err := &linalg.DomainError{Op: "geodesy.ECFToGeo", Detail: "point at the Earth centre"}
		s.report(diag.Event{Kind: diag.KindDegenerate, Op: err.Op, Message: err.Detail})
		return Geodetic{}, err
	}

	rho := math.Hypot(p.X, p.Y)

	var (
		n         = s.a
		zi        = p.Z
		zk        float64
		iter      int
		converges bool
	)

	for iter = 1; iter <= ecfMaxIter; iter++ {
		zk = zi
		sinPhi := zi / math.Hypot(rho, zi)
		n = s.a / math.Sqrt(1-s.e2*sinPhi*sinPhi)
		zi = p.Z + n*s.e2*sinPhi

		if converged(zi, zk) {
			converges = true
			break
		}
	}

	var lat float64
	switch {
	case rho > convergenceTol:
		lat = math.Atan(zi / rho)
	case p.Z < 0:
		lat = -math.Pi / 2
	default:
		lat = math.Pi / 2
	}

	g := Geodetic{
		Lat:    lat * Rad2Deg,
		Lon:    math.Atan2(p.Y, p.X) * Rad2Deg,
		Height: math.Hypot(rho, zi) - n,
	}

	if !converges {
		residual := math.Abs(zi - zk)
		s.report(diag.Event{
			Kind:       diag.KindNotConverged,
			Op:         "geodesy.ECFToGeo",
			Iterations: ecfMaxIter,
			Residual:   residual,
			Message:    fmt.Sprintf("point %s", p),
		})
		return g, diag.NotConverged("geodesy.ECFToGeo", ecfMaxIter, residual)
	}

	return g, nil
}

// ENUMatrix матрица поворота ECEF → локальная система East-North-Up
// в точке g. Строки: восток, север, зенит.
func ENUMatrix(g Geodetic) *linalg.Matrix {
	sinPhi, cosPhi := math.Sincos(g.Lat * Deg2Rad)
	sinLam, cosLam := math.Sincos(g.Lon * Deg2Rad)

	m, _ := linalg.NewMatrix(3, 3,
		-sinLam, cosLam, 0,
		-sinPhi*cosLam, -sinPhi*sinLam, cosPhi,
		cosPhi*cosLam, cosPhi*sinLam, sinPhi,
	)
	return m
}

// ECIToECEF поворачивает инерциальные координаты вокруг оси Z на угол GMST.
func ECIToECEF(p ECEF, t timesys.Time) ECEF {
	sinG, cosG := math.Sincos(t.GMST())

	return ECEF{
		X: p.X*cosG + p.Y*sinG,
		Y: -p.X*sinG + p.Y*cosG,
		Z: p.Z,
	}
}

// ECEFToECI обратное к ECIToECEF преобразование.
func ECEFToECI(p ECEF, t timesys.Time) ECEF {
	sinG, cosG := math.Sincos(t.GMST())

	return ECEF{
		X: p.X*cosG - p.Y*sinG,
		Y: p.X*sinG + p.Y*cosG,
		Z: p.Z,
	}
}
