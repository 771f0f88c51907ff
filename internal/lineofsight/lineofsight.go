// Package lineofsight вычисляет геометрию наблюдения спутника с наземной
// станции: дальность с поправкой Саньяка, азимут и угол места в локальной
// системе ENU, тропосферную задержку по модели Саастамойнена.
package lineofsight

import (
	"fmt"
	"math"

	"github.com/carrilhoac/kepler/internal/diag"
	"github.com/carrilhoac/kepler/internal/geodesy"
	"github.com/carrilhoac/kepler/internal/linalg"
)

// Физические константы.
const (
	CLight = 299792458.0     // Скорость света, м/с.
	OmegaE = 7.2921151467e-5 // Угловая скорость вращения Земли (GPS), рад/с.
)

// Стандартная атмосфера и пределы применимости модели тропосферы.
const (
	seaLevelTemp     = 15.0 // °C.
	seaLevelPressure = 1013.25
	minTropoHeight   = -100.0
	maxTropoHeight   = 1e4

	// minRange дальность, ниже которой направление не определено, м.
	minRange = 1e-6
)

// AzEl азимут и угол места, радианы.
type AzEl struct {
	Az float64 // [0, 2π), от севера по часовой стрелке.
	El float64 // [-π/2, π/2].
}

// AzDeg азимут в градусах.
func (a AzEl) AzDeg() float64 { return a.Az * geodesy.Rad2Deg }

// ElDeg угол места в градусах.
func (a AzEl) ElDeg() float64 { return a.El * geodesy.Rad2Deg }

func (a AzEl) String() string {
	return fmt.Sprintf("az %.4f° el %.4f°", a.AzDeg(), a.ElDeg())
}

// ECFToENU поворачивает вектор d из ECEF в локальную систему East-North-Up точки ref.
func ECFToENU(ref geodesy.Geodetic, d linalg.Vec3) linalg.Vec3 {
	enu, _ := geodesy.ENUMatrix(ref).MulVec3(d)
	return enu
}

// ENUToECF обратный поворот из ENU в ECEF.
func ENUToECF(ref geodesy.Geodetic, enu linalg.Vec3) linalg.Vec3 {
	d, _ := geodesy.ENUMatrix(ref).T().MulVec3(enu)
	return d
}

// GeomDist геометрическая дальность от приёмника rec до спутника sat (ECEF, м)
// с поправкой за вращение Земли за время распространения сигнала и единичный
// вектор направления на спутник. Совпадающие точки дают *linalg.DomainError
// и событие diag.KindDegenerate.
func GeomDist(sat, rec linalg.Vec3) (float64, linalg.Vec3, error) {
	d := sat.Sub(rec)
	r := d.Norm()
	if r < minRange {
		err := &linalg.DomainError{
			Op:     "lineofsight.GeomDist",
			Detail: fmt.Sprintf("satellite and receiver coincide (range %.3g m)", r),
		}
		diag.Default().Report(diag.Event{Kind: diag.KindDegenerate, Op: err.Op, Residual: r, Message: err.Detail})
		return 0, linalg.Vec3{}, err
	}

	los := d.Scale(1 / r)
	sagnac := OmegaE * (sat.X()*rec.Y() - sat.Y()*rec.X()) / CLight

	return r + sagnac, los, nil
}

// SatAzEl азимут и угол места направления los (единичный вектор ECEF)
// из точки rec.
func SatAzEl(rec geodesy.Geodetic, los linalg.Vec3) AzEl {
	enu := ECFToENU(rec, los)

	az := math.Atan2(enu.X(), enu.Y())
	if az < 0 {
		az += 2 * math.Pi
	}

	return AzEl{
		Az: az,
		El: math.Asin(math.Max(-1, math.Min(1, enu.Z()))),
	}
}

// TropoDelay наклонная тропосферная задержка по модели Саастамойнена
// со стандартной атмосферой, м. humidity относительная влажность [0, 1].
// Вне диапазона высот [-100 м, 10 км] и для спутника под горизонтом
// возвращает 0.
func TropoDelay(rec geodesy.Geodetic, azel AzEl, humidity float64) float64 {
	if rec.Height < minTropoHeight || rec.Height > maxTropoHeight || azel.El <= 0 {
		return 0
	}

	hgt := math.Max(rec.Height, 0)

	pres := seaLevelPressure * math.Pow(1-2.2557e-5*hgt, 5.2568)
	temp := seaLevelTemp - 6.5e-3*hgt + 273.16
	e := 6.108 * humidity * math.Exp((17.15*temp-4684.0)/(temp-38.45))

	cosZ := math.Cos(math.Pi/2 - azel.El)
	lat := rec.Lat * geodesy.Deg2Rad

	dry := 0.0022768 * pres / (1 - 0.00266*math.Cos(2*lat) - 0.00028*hgt/1e3) / cosZ
	wet := 0.002277 * (1255/temp + 0.05) * e / cosZ

	return dry + wet
}

// Observation геометрия наблюдения спутника.
type Observation struct {
	Range float64     // Дальность с поправкой Саньяка, м.
	LOS   linalg.Vec3 // Единичный вектор на спутник, ECEF.
	AzEl  AzEl
	Tropo float64 // Тропосферная задержка, м.
}

// Visible сообщает, выше ли спутник маски угла места maskDeg.
func (o Observation) Visible(maskDeg float64) bool {
	return o.AzEl.ElDeg() > maskDeg
}

func (o Observation) String() string {
	return fmt.Sprintf("range %.3f m %s tropo %.3f m", o.Range, o.AzEl, o.Tropo)
}

// DefaultHumidity относительная влажность для Observe.
const DefaultHumidity = 0.7

// Observe рассчитывает дальность, направление, азимут, угол места
// и тропосферную задержку для приёмника rec и спутника sat на эллипсоиде sp
// (nil означает WGS84).
func Observe(sp *geodesy.Spheroid, rec geodesy.ECEF, sat linalg.Vec3) (Observation, error) {
	if sp == nil {
		sp = geodesy.New(geodesy.WGS84)
	}

	geo, err := sp.ECFToGeo(rec)
	if err != nil {
		return Observation{}, fmt.Errorf("receiver position: %w", err)
	}

	r, los, err := GeomDist(sat, rec.Vec3())
	if err != nil {
		return Observation{}, err
	}

	azel := SatAzEl(geo, los)

	return Observation{
		Range: r,
		LOS:   los,
		AzEl:  azel,
		Tropo: TropoDelay(geo, azel, DefaultHumidity),
	}, nil
}
