package navigation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/carrilhoac/kepler/internal/timesys"
)

const (
	cacheMetaFilename = "cache_meta.json"
	cacheDataFilename = "ephemeris.rnx"
	cacheProgram      = "kepler"
)

// Ошибки хранилища эфемерид.
var (
	ErrNoEphemeris = errors.New("no valid ephemeris")
	ErrLoadFailed  = errors.New("failed to load navigation file")
	ErrStarted     = errors.New("store already started")
)

// EphemerisStore хранилище бортовых эфемерид в памяти с индексом по PRN
// и файловым кешем.
type EphemerisStore struct {
	mu sync.RWMutex

	// Индекс PRN -> записи, отсортированные по toe.
	byPRN map[string][]*Ephemeris

	// Загруженные файлы: путь -> время изменения.
	files map[string]time.Time

	config *StoreConfig
	logger *slog.Logger

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// CacheMeta метаданные файлового кеша.
type CacheMeta struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Count     int            `json:"count"`
	PRNs      map[string]int `json:"prns"`
}

// StoreOption функция настройки EphemerisStore.
type StoreOption func(*EphemerisStore)

// WithLogger логгер для EphemerisStore.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *EphemerisStore) {
		s.logger = logger
	}
}

// NewEphemerisStore создаёт хранилище. nil-конфигурация заменяется значениями по умолчанию.
func NewEphemerisStore(cfg *StoreConfig, opts ...StoreOption) *EphemerisStore {
	if cfg == nil {
		cfg = DefaultStoreConfig()
	}

	s := &EphemerisStore{
		byPRN:  make(map[string][]*Ephemeris),
		files:  make(map[string]time.Time),
		config: cfg,
		logger: slog.Default(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start загружает кеш и каталог навигационных файлов и запускает
// фоновое сканирование каталога. Повторный вызов возвращает ErrStarted.
func (s *EphemerisStore) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrStarted
	}

	s.logger.InfoContext(ctx, "starting EphemerisStore",
		"nav_dir", s.config.NavDir,
		"reload_interval", s.config.ReloadInterval,
	)

	if n, err := s.LoadCache(); err != nil {
		s.logger.WarnContext(ctx, "failed to load ephemeris cache", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "loaded ephemeris cache", "count", n)
	}

	if _, err := s.LoadDir(ctx, s.config.NavDir); err != nil {
		// Работаем с тем, что удалось загрузить.
		s.logger.WarnContext(ctx, "initial nav load had errors", "error", err)
	}

	if s.config.ReloadInterval <= 0 {
		close(s.doneCh)
		return nil
	}

	go s.startUpdater(ctx)

	return nil
}

// Stop останавливает фоновое сканирование. Для незапущенного хранилища
// ничего не ждёт.
func (s *EphemerisStore) Stop() {
	s.logger.Info("stopping EphemerisStore")
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	if !s.started.Load() {
		return
	}
	<-s.doneCh
	s.logger.Info("EphemerisStore stopped")
}

// Add добавляет запись. Запись с тем же toe и IODE заменяет существующую.
// Возвращает false для nil и систем, не принятых конфигурацией.
func (s *EphemerisStore) Add(eph *Ephemeris) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addInternal(eph)
}

// Get возвращает все записи спутника в порядке toe.
func (s *EphemerisStore) Get(prn string) []*Ephemeris {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.byPRN[prn])
}

// Select выбирает запись, пригодную на момент t: toe ближайший к t в пределах
// интервала аппроксимации, исправные спутники предпочтительнее.
func (s *EphemerisStore) Select(prn string, t timesys.Time) (*Ephemeris, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best     *Ephemeris
		bestDist = math.Inf(1)
	)
	for _, eph := range s.byPRN[prn] {
		if !eph.Valid(t) {
			continue
		}
		dist := math.Abs(t.Sub(eph.Toe))
		switch {
		case best == nil:
		case eph.Healthy() && !best.Healthy():
		case eph.Healthy() != best.Healthy():
			continue
		case dist >= bestDist:
			continue
		}
		best, bestDist = eph, dist
	}

	if best == nil {
		return nil, errors.Wrapf(ErrNoEphemeris, "%s at %s", prn, t)
	}
	return best, nil
}

// PRNs возвращает отсортированный список спутников.
func (s *EphemerisStore) PRNs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.byPRN))
}

// Count возвращает общее число записей.
func (s *EphemerisStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, list := range s.byPRN {
		count += len(list)
	}
	return count
}

// Prune удаляет записи с toe старше newest-MaxAge. Возвращает число удалённых.
func (s *EphemerisStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest timesys.Time
	for _, list := range s.byPRN {
		if last := list[len(list)-1].Toe; last.After(newest) {
			newest = last
		}
	}
	limit := newest.Add(-s.config.MaxAge.Seconds())

	removed := 0
	for prn, list := range s.byPRN {
		kept := slices.DeleteFunc(list, func(e *Ephemeris) bool { return e.Toe.Before(limit) })
		removed += len(list) - len(kept)
		if len(kept) == 0 {
			delete(s.byPRN, prn)
			continue
		}
		s.byPRN[prn] = kept
	}
	return removed
}

// LoadFile загружает навигационный файл. Возвращает число добавленных записей.
func (s *EphemerisStore) LoadFile(ctx context.Context, path string) (int, error) {
	nav, err := ReadNavFile(path)
	if err != nil {
		return 0, errors.Wrapf(ErrLoadFailed, "%s: %v", path, err)
	}

	s.mu.Lock()
	added := 0
	for _, eph := range nav.Ephemerides {
		if s.addInternal(eph) {
			added++
		}
	}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "loaded nav file",
		"path", path,
		"records", len(nav.Ephemerides),
		"added", added,
		"skipped", nav.Skipped,
	)

	return added, nil
}

// LoadDir загружает из каталога новые и изменённые файлы, подходящие под
// Patterns. Ошибка отдельного файла не прерывает загрузку остальных.
func (s *EphemerisStore) LoadDir(ctx context.Context, dir string) (int, error) {
	var paths []string
	for _, pattern := range s.config.Patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, errors.Wrapf(err, "bad pattern %q", pattern)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	var (
		total   int
		lastErr error
	)
	for _, path := range paths {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		s.mu.RLock()
		seen, ok := s.files[path]
		s.mu.RUnlock()
		if ok && !info.ModTime().After(seen) {
			continue
		}

		n, err := s.LoadFile(ctx, path)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load nav file", "path", path, "error", err)
			lastErr = err
			continue
		}
		total += n

		s.mu.Lock()
		s.files[path] = info.ModTime()
		s.mu.Unlock()
	}

	s.logger.InfoContext(ctx, "loaded nav directory",
		"dir", dir,
		"files", len(paths),
		"added", total,
		"total_count", s.Count(),
	)

	return total, lastErr
}

// SaveCache записывает все записи в файловый кеш (RINEX 3) и метаданные.
func (s *EphemerisStore) SaveCache() error {
	if err := os.MkdirAll(s.config.CacheDir, 0750); err != nil {
		return errors.Wrap(err, "creating cache dir")
	}

	s.mu.RLock()
	var all []*Ephemeris
	meta := CacheMeta{UpdatedAt: time.Now().UTC(), PRNs: make(map[string]int, len(s.byPRN))}
	for _, prn := range slices.Sorted(maps.Keys(s.byPRN)) {
		all = append(all, s.byPRN[prn]...)
		meta.PRNs[prn] = len(s.byPRN[prn])
	}
	s.mu.RUnlock()
	meta.Count = len(all)

	var buf bytes.Buffer
	hdr := NavHeader{System: 'M', Program: cacheProgram, Date: meta.UpdatedAt.Format("20060102 150405 UTC")}
	if err := WriteRINEX(&buf, hdr, all); err != nil {
		return err
	}

	cachePath := filepath.Join(s.config.CacheDir, cacheDataFilename)
	if err := os.WriteFile(cachePath, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "writing cache file")
	}

	if err := s.saveCacheMeta(&meta); err != nil {
		s.logger.Warn("failed to save cache meta", "error", err)
	}
	return nil
}

// LoadCache загружает записи из файлового кеша. Отсутствие кеша не ошибка.
func (s *EphemerisStore) LoadCache() (int, error) {
	cachePath := filepath.Join(s.config.CacheDir, cacheDataFilename)

	data, err := os.ReadFile(cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "reading cache file")
	}

	nav, err := ParseRINEXNav(bytes.NewReader(data))
	if err != nil {
		return 0, errors.Wrap(err, "parsing cached ephemeris")
	}

	if meta, err := s.loadCacheMeta(); err == nil && meta.Count != len(nav.Ephemerides) {
		s.logger.Warn("ephemeris cache count mismatch",
			"meta_count", meta.Count,
			"file_count", len(nav.Ephemerides),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, eph := range nav.Ephemerides {
		if s.addInternal(eph) {
			added++
		}
	}
	return added, nil
}

// CacheMeta возвращает метаданные кеша.
func (s *EphemerisStore) CacheMeta() (*CacheMeta, error) {
	return s.loadCacheMeta()
}

// addInternal добавляет запись без блокировки.
func (s *EphemerisStore) addInternal(eph *Ephemeris) bool {
	if eph == nil || !s.config.accepts(eph.System()) {
		return false
	}

	list := s.byPRN[eph.PRN]
	i, found := slices.BinarySearchFunc(list, eph, func(a, b *Ephemeris) int {
		if c := a.Toe.Compare(b.Toe); c != 0 {
			return c
		}
		return a.IODE - b.IODE
	})
	if found {
		list[i] = eph
		return true
	}

	list = slices.Insert(list, i, eph)
	if over := len(list) - s.config.MaxPerSatellite; s.config.MaxPerSatellite > 0 && over > 0 {
		list = slices.Delete(list, 0, over)
	}
	s.byPRN[eph.PRN] = list
	return true
}

// startUpdater периодически сканирует каталог навигационных файлов.
func (s *EphemerisStore) startUpdater(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "updater stopped by context")
			return
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "updater stopped by stop signal")
			return
		case <-ticker.C:
			s.logger.DebugContext(ctx, "starting scheduled nav reload")
			n, err := s.LoadDir(ctx, s.config.NavDir)
			if err != nil {
				s.logger.WarnContext(ctx, "scheduled nav reload had errors", "error", err)
			}
			if pruned := s.Prune(); pruned > 0 {
				s.logger.InfoContext(ctx, "pruned stale ephemerides", "count", pruned)
			}
			if n > 0 {
				if err := s.SaveCache(); err != nil {
					s.logger.WarnContext(ctx, "failed to save ephemeris cache", "error", err)
				}
			}
		}
	}
}

// loadCacheMeta загружает метаданные кеша.
func (s *EphemerisStore) loadCacheMeta() (*CacheMeta, error) {
	metaPath := filepath.Join(s.config.CacheDir, cacheMetaFilename)

	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &CacheMeta{PRNs: make(map[string]int)}, nil
		}
		return nil, errors.Wrap(err, "reading cache meta")
	}

	var meta CacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, "parsing cache meta")
	}
	if meta.PRNs == nil {
		meta.PRNs = make(map[string]int)
	}

	return &meta, nil
}

// saveCacheMeta сохраняет метаданные кеша.
func (s *EphemerisStore) saveCacheMeta(meta *CacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling cache meta")
	}

	metaPath := filepath.Join(s.config.CacheDir, cacheMetaFilename)
	if err := os.WriteFile(metaPath, data, 0600); err != nil {
		return errors.Wrap(err, "writing cache meta")
	}

	return nil
}
