// Package geodesy реализует вычисления на референц-эллипсоиде:
// преобразования геодезических и геоцентрических координат,
// обратную геодезическую задачу (Винсенти) и проекцию UTM
// в рядах Крюгера восьмого порядка (Карни).
package geodesy

import (
	"errors"
	"fmt"
	"math"

	"github.com/carrilhoac/kepler/internal/diag"
)

// Константы перевода углов.
const (
	Deg2Rad = math.Pi / 180.0
	Rad2Deg = 180.0 / math.Pi
)

// Параметры итерационных алгоритмов.
const (
	ecfMaxIter      = 25
	geodesicMaxIter = 1000
	utmMaxIter      = 25
	convergenceTol  = 1e-12

	// floatNoise множитель машинного эпсилона: ниже этой относительной
	// разницы итерации колеблются в последних битах.
	floatNoise = 4 * 2.220446049250313e-16
)

// ErrInvalidEllipsoid недопустимые параметры эллипсоида.
var ErrInvalidEllipsoid = errors.New("invalid ellipsoid parameters")

// Spheroid эллипсоид с предвычисленными коэффициентами.
// После создания или Set только читается; Set на общем экземпляре
// требует внешней синхронизации.
type Spheroid struct {
	ellipsoid Ellipsoid

	a  float64 // Большая полуось, м.
	f  float64 // Сжатие.
	b  float64 // Малая полуось, м.
	e  float64 // Первый эксцентриситет.
	e2 float64 // Квадрат первого эксцентриситета.
	n  float64 // Третье сжатие f/(2-f).
	rr float64 // Радиус спрямления (rectifying radius), м.

	alpha [8]float64 // Прямой ряд Крюгера.
	beta  [8]float64 // Обратный ряд Крюгера, хранится со знаком минус.

	reporter diag.Reporter
}

// Option функция настройки Spheroid.
type Option func(*Spheroid)

// WithReporter задаёт получателя диагностики итераций.
// По умолчанию используется diag.Default().
func WithReporter(r diag.Reporter) Option {
	return func(s *Spheroid) {
		s.reporter = r
	}
}

// New создаёт Spheroid для пресета. Неизвестный пресет даёт WGS84.
func New(e Ellipsoid, opts ...Option) *Spheroid {
	s := &Spheroid{}
	for _, opt := range opts {
		opt(s)
	}
	s.Set(e)
	return s
}

// NewCustom создаёт Spheroid с произвольными a (м) и f.
// f = 0 задаёт сферу.
func NewCustom(a, f float64, opts ...Option) (*Spheroid, error) {
	s := &Spheroid{}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.SetCustom(a, f); err != nil {
		return nil, err
	}
	return s, nil
}

// Set переключает эллипсоид на пресет и пересчитывает коэффициенты.
func (s *Spheroid) Set(e Ellipsoid) {
	p := e.params()
	if _, ok := presets[e]; !ok {
		e = WGS84
	}
	s.ellipsoid = e
	s.set(p.a, p.f)
}

// SetCustom задаёт произвольные параметры: a > 0, 0 <= f < 1.
func (s *Spheroid) SetCustom(a, f float64) error {
	if !(a > 0) || math.IsInf(a, 0) {
		return fmt.Errorf("%w: semi-major axis %v", ErrInvalidEllipsoid, a)
	}
	if !(f >= 0 && f < 1) {
		return fmt.Errorf("%w: flattening %v", ErrInvalidEllipsoid, f)
	}
	s.ellipsoid = Custom
	s.set(a, f)
	return nil
}

func (s *Spheroid) set(a, f float64) {
	s.a = a
	s.f = f
	s.e2 = f * (2 - f)
	s.e = math.Sqrt(s.e2)
	s.b = a * math.Sqrt(1-s.e2)

	n := f / (2 - f)
	s.n = n

	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n
	n7 := n6 * n
	n8 := n7 * n

	s.rr = a / (1 + n) * (1 + n2/4 + n4/64 + n6/256 + 25*n8/16384)

	s.alpha = [8]float64{
		n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800 + 72161*n7/387072 - 18975107*n8/50803200,
		13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360 + 13769*n7/28800 + 148003883*n8/174182400,
		61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440 - 67102379*n7/29030400 + 79682431*n8/79833600,
		49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600 + 97445*n7/49896 - 40176129013*n8/7664025600,
		34729*n5/80640 - 3418889*n6/1995840 + 14644087*n7/9123840 + 2605413599*n8/622702080,
		212378941*n6/319334400 - 30705481*n7/10378368 + 175214326799*n8/58118860800,
		1522256789*n7/1383782400 - 16759934899*n8/3113510400,
		1424729850961 * n8 / 743921418240,
	}

	s.beta = [8]float64{
		-(n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800 - 5406467*n7/38707200 + 7944359*n8/67737600),
		-(n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720 + 51841*n7/1209600 + 24749483*n8/348364800),
		-(17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720 + 9261899*n7/58060800 - 6457463*n8/17740800),
		-(4397*n4/161280 - 11*n5/504 - 830251*n6/7257600 + 466511*n7/2494800 + 324154477*n8/7664025600),
		-(4583*n5/161280 - 108847*n6/3991680 - 8005831*n7/63866880 + 22894433*n8/124540416),
		-(20648693*n6/638668800 - 16363163*n7/518918400 - 2204645983*n8/12915302400),
		-(219941297*n7/5535129600 - 497323811*n8/12454041600),
		-(191773887257 * n8 / 3719607091200),
	}
}

// Ellipsoid текущий пресет (Custom для явных параметров).
func (s *Spheroid) Ellipsoid() Ellipsoid { return s.ellipsoid }

// A большая полуось, м.
func (s *Spheroid) A() float64 { return s.a }

// F сжатие.
func (s *Spheroid) F() float64 { return s.f }

// B малая полуось, м.
func (s *Spheroid) B() float64 { return s.b }

// E2 квадрат первого эксцентриситета.
func (s *Spheroid) E2() float64 { return s.e2 }

// RectifyingRadius радиус спрямления, м.
func (s *Spheroid) RectifyingRadius() float64 { return s.rr }

// String имя и параметры.
func (s *Spheroid) String() string {
	return fmt.Sprintf("%s(a=%.3f, 1/f=%.9f)", s.ellipsoid, s.a, 1/s.f)
}

func (s *Spheroid) report(ev diag.Event) {
	diag.Or(s.reporter).Report(ev)
}

// converged проверка сходимости с учётом разрешения float64.
func converged(next, prev float64) bool {
	return math.Abs(next-prev) < max(convergenceTol, floatNoise*math.Abs(next))
}
