package geodesy

import (
	"fmt"
	"math"

	"github.com/carrilhoac/kepler/internal/diag"
)

// Geodesic длина геодезической линии между a и b, м (обратная задача Винсенти).
//
// Для почти антиподных точек итерации по λ могут не сойтись за
// 1000 шагов: тогда возвращается последняя оценка и ошибка,
// оборачивающая diag.ErrNotConverged. Высоты точек не учитываются.
func (s *Spheroid) Geodesic(a, b Geodetic) (float64, error) {
	f := s.f

	u1 := math.Atan((1 - f) * math.Tan(a.Lat*Deg2Rad))
	u2 := math.Atan((1 - f) * math.Tan(b.Lat*Deg2Rad))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	dl := (b.Lon - a.Lon) * Deg2Rad
	lambda := dl

	var (
		sinSigma, cosSigma, sigma float64
		cos2Alpha, cos2Sm         float64
		prev                      float64
		iter                      int
		converges                 bool
	)

	for iter = 1; iter <= geodesicMaxIter; iter++ {
		sinLam, cosLam := math.Sincos(lambda)

		sinSigma = math.Hypot(cosU2*sinLam, cosU1*sinU2-sinU1*cosU2*cosLam)
		if sinSigma == 0 {
			// Совпадающие точки.
			return 0, nil
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLam
		sigma = math.Atan2(sinSigma, cosSigma)

		sinAlpha := cosU1 * cosU2 * sinLam / sinSigma
		cos2Alpha = 1 - sinAlpha*sinAlpha

		// На экваторе cos²α = 0.
		cos2Sm = 0
		if cos2Alpha != 0 {
			cos2Sm = cosSigma - 2*sinU1*sinU2/cos2Alpha
		}

		c := f / 16 * cos2Alpha * (4 + f*(4-3*cos2Alpha))

		prev = lambda
		lambda = dl + (1-c)*f*sinAlpha*
			(sigma+c*sinSigma*(cos2Sm+c*cosSigma*(2*cos2Sm*cos2Sm-1)))

		if math.Abs(lambda-prev) < convergenceTol {
			converges = true
			break
		}
	}

	ab := s.a / s.b
	u2sq := cos2Alpha * (ab*ab - 1)
	k2 := math.Sqrt(1 + u2sq)
	k1 := (k2 - 1) / (k2 + 1)

	coefA := (1 + k1*k1/4) / (1 - k1)
	coefB := k1 * (1 - 0.375*k1*k1)

	c2 := cos2Sm * cos2Sm
	deltaSigma := coefB * sinSigma * (cos2Sm + coefB/4*(cosSigma*(2*c2-1)-
		coefB/6*cos2Sm*(4*sinSigma*sinSigma-3)*(4*c2-3)))

	dist := s.b * coefA * (sigma - deltaSigma)

	if !converges {
		residual := math.Abs(lambda - prev)
		s.report(diag.Event{
			Kind:       diag.KindNotConverged,
			Op:         "geodesy.Geodesic",
			Iterations: geodesicMaxIter,
			Residual:   residual,
			Message:    fmt.Sprintf("from %s to %s, near-antipodal", a, b),
		})
		return dist, diag.NotConverged("geodesy.Geodesic", geodesicMaxIter, residual)
	}

	return dist, nil
}
