package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/TaskMiner/internal/mq"
	"github.com/shaiso/TaskMiner/internal/retention"
)

// EnvConfigPath — переменная окружения с путём к YAML-файлу.
const EnvConfigPath = "TASKMINER_CONFIG"

// Config — конфигурация всех бинарников TaskMiner.
type Config struct {
	// DatabaseURL — PostgreSQL для архива. Пустая строка — архив отключён.
	DatabaseURL string `yaml:"database_url"`

	// RabbitMQURL — брокер для транспорта controller ↔ worker.
	RabbitMQURL string `yaml:"rabbitmq_url"`

	API       APIConfig       `yaml:"api"`
	Worker    WorkerConfig    `yaml:"worker"`
	Retention RetentionConfig `yaml:"retention"`
}

// APIConfig — controller HTTP API.
type APIConfig struct {
	Port              string        `yaml:"port"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxSubmitAttempts int           `yaml:"max_submit_attempts"`
}

// WorkerConfig — worker-процесс с mining actor'ами.
type WorkerConfig struct {
	// ID — идентификатор worker'а (пустой — случайный UUID).
	ID              string        `yaml:"id"`
	Port            string        `yaml:"port"`
	MaxActiveTasks  int           `yaml:"max_active_tasks"`
	DefaultExecutor string        `yaml:"default_executor"`
	MinuteUnit      time.Duration `yaml:"minute_unit"`
}

// RetentionConfig — политика хранения завершённых tasks.
type RetentionConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Schedule   string        `yaml:"schedule"`
	ArchiveTTL time.Duration `yaml:"archive_ttl"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		RabbitMQURL: mq.DefaultURL(),
		API: APIConfig{
			Port:              "8080",
			PollInterval:      time.Second,
			RequestTimeout:    10 * time.Second,
			MaxSubmitAttempts: 3,
		},
		Worker: WorkerConfig{
			Port:            "8082",
			MaxActiveTasks:  100,
			DefaultExecutor: "echo",
			MinuteUnit:      time.Minute,
		},
		Retention: RetentionConfig{
			TTL:        15 * time.Minute,
			Schedule:   "@every 1m",
			ArchiveTTL: 30 * 24 * time.Hour,
		},
	}
}

// Load собирает конфигурацию из файла (TASKMINER_CONFIG) и окружения.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(EnvConfigPath), os.Getenv)
}

// LoadFrom собирает конфигурацию из файла path (может быть пустым)
// и переменных, возвращаемых getenv.
func LoadFrom(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv перекрывает значения переменными окружения.
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"DB_URL", &c.DatabaseURL},
		{"RABBITMQ_URL", &c.RabbitMQURL},
		{"API_PORT", &c.API.Port},
		{"WORKER_PORT", &c.Worker.Port},
		{"WORKER_ID", &c.Worker.ID},
		{"DEFAULT_EXECUTOR", &c.Worker.DefaultExecutor},
		{"RETENTION_SCHEDULE", &c.Retention.Schedule},
	}
	for _, s := range strs {
		if v := getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"POLL_INTERVAL", &c.API.PollInterval},
		{"REQUEST_TIMEOUT", &c.API.RequestTimeout},
		{"MINUTE_UNIT", &c.Worker.MinuteUnit},
		{"RETENTION_TTL", &c.Retention.TTL},
		{"ARCHIVE_TTL", &c.Retention.ArchiveTTL},
	}
	for _, d := range durations {
		v := getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, d.env, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"MAX_ACTIVE_TASKS", &c.Worker.MaxActiveTasks},
		{"MAX_SUBMIT_ATTEMPTS", &c.API.MaxSubmitAttempts},
	}
	for _, i := range ints {
		v := getenv(i.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, i.env, err)
		}
		*i.dst = parsed
	}

	return nil
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.API.Port == "" || c.Worker.Port == "" {
		return fmt.Errorf("%w: ports must not be empty", ErrInvalidConfig)
	}
	if c.API.PollInterval <= 0 || c.API.RequestTimeout <= 0 {
		return fmt.Errorf("%w: api durations must be positive", ErrInvalidConfig)
	}
	if c.API.MaxSubmitAttempts <= 0 {
		return fmt.Errorf("%w: max_submit_attempts must be positive", ErrInvalidConfig)
	}
	if c.Worker.MaxActiveTasks < 0 {
		return fmt.Errorf("%w: max_active_tasks must not be negative", ErrInvalidConfig)
	}
	if c.Worker.MinuteUnit <= 0 {
		return fmt.Errorf("%w: minute_unit must be positive", ErrInvalidConfig)
	}
	if c.Worker.DefaultExecutor == "" {
		return fmt.Errorf("%w: default_executor must not be empty", ErrInvalidConfig)
	}
	if c.Retention.TTL <= 0 {
		return fmt.Errorf("%w: retention ttl must be positive", ErrInvalidConfig)
	}
	if c.Retention.ArchiveTTL < 0 {
		return fmt.Errorf("%w: archive_ttl must not be negative", ErrInvalidConfig)
	}
	if err := retention.ValidateSchedule(c.Retention.Schedule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// APIAddr возвращает адрес HTTP API (":8080").
func (c *Config) APIAddr() string {
	return ":" + c.API.Port
}

// WorkerAddr возвращает адрес служебного HTTP сервера worker'а.
func (c *Config) WorkerAddr() string {
	return ":" + c.Worker.Port
}
