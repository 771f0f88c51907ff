package geodesy

import "strings"

// Ellipsoid именованный референц-эллипсоид.
// Нулевое значение и неизвестные значения соответствуют WGS84.
type Ellipsoid int

const (
	WGS84 Ellipsoid = iota
	WGS66
	WGS72
	GRS67
	GRS80
	PZ90
	SAD69
	// Custom — параметры заданы явно через NewCustom/SetCustom.
	Custom
)

// ellipsoidParams большая полуось (м) и сжатие.
type ellipsoidParams struct {
	name string
	a, f float64
}

var presets = map[Ellipsoid]ellipsoidParams{
	WGS84: {"WGS84", 6378137.0, 1 / 298.257223563},
	WGS66: {"WGS66", 6378145.0, 1 / 298.25},
	WGS72: {"WGS72", 6378135.0, 1 / 298.26},
	GRS67: {"GRS67", 6378160.0, 1 / 298.247167427},
	GRS80: {"GRS80", 6378137.0, 1 / 298.257222100882711},
	PZ90:  {"PZ90", 6378136.0, 1 / 298.257839303},
	SAD69: {"SAD69", 6378160.0, 1 / 298.25},
}

// params параметры пресета, неизвестный пресет даёт WGS84.
func (e Ellipsoid) params() ellipsoidParams {
	if p, ok := presets[e]; ok {
		return p
	}
	return presets[WGS84]
}

// String имя эллипсоида.
func (e Ellipsoid) String() string {
	if e == Custom {
		return "custom"
	}
	return e.params().name
}

// Semiaxis большая полуось пресета, м.
func (e Ellipsoid) Semiaxis() float64 { return e.params().a }

// Flattening сжатие пресета.
func (e Ellipsoid) Flattening() float64 { return e.params().f }

// ParseEllipsoid разбирает имя пресета без учёта регистра ("wgs84", "GRS80", "PZ-90").
func ParseEllipsoid(name string) (Ellipsoid, bool) {
	key := strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(name))
	for e, p := range presets {
		if p.name == key {
			return e, true
		}
	}
	return WGS84, false
}

// Ellipsoids все пресеты по порядку.
func Ellipsoids() []Ellipsoid {
	return []Ellipsoid{WGS84, WGS66, WGS72, GRS67, GRS80, PZ90, SAD69}
}
