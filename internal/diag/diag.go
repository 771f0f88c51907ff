// Package diag реализует канал диагностики численных алгоритмов:
// несошедшиеся итерации, почти вырожденные матрицы, вырожденная геометрия.
// Диагностика не прерывает вычисления, а сопровождает результат.
package diag

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrNotConverged итерационный алгоритм исчерпал лимит итераций.
// Результат, возвращённый вместе с этой ошибкой, является лучшей доступной оценкой.
var ErrNotConverged = errors.New("iteration did not converge")

// Kind тип диагностического события.
type Kind string

const (
	// KindNotConverged — исчерпан лимит итераций.
	KindNotConverged Kind = "not_converged"
	// KindNearSingular — определитель матрицы ниже порога.
	KindNearSingular Kind = "near_singular"
	// KindDegenerate — вырожденная геометрия (нулевой вектор, совпадающие точки).
	KindDegenerate Kind = "degenerate"
)

// Event диагностическое событие численного алгоритма.
type Event struct {
	Kind       Kind
	Op         string  // Имя операции, например "geodesy.Geodesic".
	Iterations int     // Выполнено итераций (0, если неприменимо).
	Residual   float64 // Последняя невязка или определитель.
	Message    string
}

// Reporter принимает диагностические события.
type Reporter interface {
	Report(ev Event)
}

// ReporterFunc адаптер функции к Reporter.
type ReporterFunc func(ev Event)

// Report вызывает f(ev).
func (f ReporterFunc) Report(ev Event) {
	f(ev)
}

type discard struct{}

func (discard) Report(Event) {}

// Discard отбрасывает все события.
var Discard Reporter = discard{}

// NotConverged формирует ошибку, оборачивающую ErrNotConverged.
func NotConverged(op string, iterations int, residual float64) error {
	return fmt.Errorf("%w: %s after %d iterations (residual %.3e)", ErrNotConverged, op, iterations, residual)
}

// Recorder пишет события в slog и считает их в prometheus.
type Recorder struct {
	logger *slog.Logger
	events *prometheus.CounterVec

	mu         sync.RWMutex
	suppressed map[Kind]struct{}
}

// Option функция настройки Recorder.
type Option func(*recorderOptions)

type recorderOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	suppressed []Kind
}

// WithLogger логгер для Recorder.
func WithLogger(logger *slog.Logger) Option {
	return func(o *recorderOptions) {
		o.logger = logger
	}
}

// WithRegisterer регистрирует счётчик событий в указанном реестре.
// Без этой опции счётчик работает, но не экспортируется.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *recorderOptions) {
		o.registerer = reg
	}
}

// WithSuppressed отключает логирование событий указанных типов.
// Счётчики продолжают увеличиваться.
func WithSuppressed(kinds ...Kind) Option {
	return func(o *recorderOptions) {
		o.suppressed = append(o.suppressed, kinds...)
	}
}

// NewRecorder создаёт Recorder.
func NewRecorder(opts ...Option) *Recorder {
	o := recorderOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kepler_diagnostics_total",
			Help: "Total number of numeric diagnostics by kind and operation.",
		},
		[]string{"kind", "op"},
	)

	if o.registerer != nil {
		if err := o.registerer.Register(events); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					events = existing
				}
			} else {
				o.logger.Warn("failed to register diagnostics counter", "error", err)
			}
		}
	}

	r := &Recorder{
		logger:     o.logger,
		events:     events,
		suppressed: make(map[Kind]struct{}),
	}
	for _, k := range o.suppressed {
		r.suppressed[k] = struct{}{}
	}

	return r
}

// Report учитывает событие и, если тип не подавлен, пишет его в лог с уровнем Warn.
func (r *Recorder) Report(ev Event) {
	if r == nil {
		return
	}

	r.events.WithLabelValues(string(ev.Kind), ev.Op).Inc()

	r.mu.RLock()
	_, muted := r.suppressed[ev.Kind]
	r.mu.RUnlock()
	if muted {
		return
	}

	r.logger.Warn("numeric diagnostic",
		"kind", ev.Kind,
		"op", ev.Op,
		"iterations", ev.Iterations,
		"residual", ev.Residual,
		"message", ev.Message,
	)
}

// Suppress отключает логирование событий типа kind во время работы.
func (r *Recorder) Suppress(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.suppressed[kind] = struct{}{}
}

// Unsuppress снова включает логирование событий типа kind.
func (r *Recorder) Unsuppress(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.suppressed, kind)
}

// Counter возвращает счётчик событий для пары (kind, op).
func (r *Recorder) Counter(kind Kind, op string) prometheus.Counter {
	return r.events.WithLabelValues(string(kind), op)
}

type holder struct {
	r Reporter
}

var defaultReporter atomic.Pointer[holder]

func init() {
	defaultReporter.Store(&holder{r: NewRecorder()})
}

// Default возвращает процессный Reporter по умолчанию.
func Default() Reporter {
	return defaultReporter.Load().r
}

// SetDefault заменяет процессный Reporter. nil означает Discard.
func SetDefault(r Reporter) {
	if r == nil {
		r = Discard
	}
	defaultReporter.Store(&holder{r: r})
}

// Or возвращает r, а если он nil, то Default().
func Or(r Reporter) Reporter {
	if r == nil {
		return Default()
	}
	return r
}
