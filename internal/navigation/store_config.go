package navigation

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Значения по умолчанию для конфигурации EphemerisStore.
const (
	// DefaultReloadInterval интервал повторного сканирования каталога.
	DefaultReloadInterval = 15 * time.Minute

	// DefaultNavDir каталог навигационных файлов.
	DefaultNavDir = "data/nav"

	// DefaultNavCacheDir каталог файлового кеша.
	DefaultNavCacheDir = "data/nav_cache"

	// DefaultMaxAge записи с toe старше этого срока относительно самой свежей удаляются.
	DefaultMaxAge = 48 * time.Hour

	// DefaultMaxPerSatellite предел числа записей на спутник.
	DefaultMaxPerSatellite = 64
)

// DefaultNavPatterns шаблоны имён навигационных файлов.
var DefaultNavPatterns = []string{"*.rnx", "*.nav", "*.??n", "*.??N"}

// DefaultSystems системы, записи которых принимаются хранилищем.
var DefaultSystems = []string{"G"}

// StoreConfig настройки EphemerisStore.
type StoreConfig struct {
	// NavDir каталог, из которого загружаются навигационные файлы.
	NavDir string `yaml:"nav_dir"`

	// Patterns шаблоны имён файлов (filepath.Match).
	Patterns []string `yaml:"patterns"`

	// CacheDir каталог файлового кеша.
	CacheDir string `yaml:"cache_dir"`

	// ReloadInterval интервал повторного сканирования NavDir.
	// 0 отключает фоновую загрузку.
	ReloadInterval time.Duration `yaml:"reload_interval"`

	// MaxAge предельный возраст записи относительно самой свежей toe.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxPerSatellite предел числа записей на спутник, старые вытесняются.
	MaxPerSatellite int `yaml:"max_per_satellite"`

	// Systems буквы систем: "G", "E", "C", "J".
	Systems []string `yaml:"systems"`
}

// DefaultStoreConfig конфигурация со значениями по умолчанию.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		NavDir:          DefaultNavDir,
		Patterns:        DefaultNavPatterns,
		CacheDir:        DefaultNavCacheDir,
		ReloadInterval:  DefaultReloadInterval,
		MaxAge:          DefaultMaxAge,
		MaxPerSatellite: DefaultMaxPerSatellite,
		Systems:         DefaultSystems,
	}
}

// Validate проверяет и дополняет конфигурацию значениями по умолчанию.
// Возвращает ошибку для неизвестных систем или систем без кеплеровых элементов.
func (c *StoreConfig) Validate() error {
	if c.ReloadInterval < 0 || (c.ReloadInterval > 0 && c.ReloadInterval < time.Second) {
		c.ReloadInterval = DefaultReloadInterval
	}
	if c.NavDir == "" {
		c.NavDir = DefaultNavDir
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultNavCacheDir
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.MaxPerSatellite <= 0 {
		c.MaxPerSatellite = DefaultMaxPerSatellite
	}
	if len(c.Patterns) == 0 {
		c.Patterns = DefaultNavPatterns
	}
	if len(c.Systems) == 0 {
		c.Systems = DefaultSystems
	}

	var invalid []string
	for _, s := range c.Systems {
		if len(s) != 1 || !Constellation(strings.ToUpper(s)[0]).Keplerian() {
			invalid = append(invalid, s)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("unsupported systems: %s (available: G, E, C, J)", strings.Join(invalid, ", "))
	}

	return nil
}

// accepts сообщает, принимается ли система sys.
func (c *StoreConfig) accepts(sys Constellation) bool {
	for _, s := range c.Systems {
		if len(s) == 1 && Constellation(strings.ToUpper(s)[0]) == sys {
			return true
		}
	}
	return false
}

// LoadStoreConfig читает YAML-конфигурацию; отсутствующие поля получают
// значения по умолчанию.
func LoadStoreConfig(path string) (*StoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading store config")
	}

	cfg := DefaultStoreConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing store config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveStoreConfig записывает конфигурацию в YAML.
func SaveStoreConfig(path string, cfg *StoreConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling store config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0600), "writing store config")
}
