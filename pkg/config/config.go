// Package config 提供 TOML 配置加载、环境变量覆盖与配置校验
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`

	HTTP         HTTPConfig         `mapstructure:"http"`
	GRPC         GRPCConfig         `mapstructure:"grpc"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Screening    ScreeningConfig    `mapstructure:"screening"`
	GoAML        GoAMLConfig        `mapstructure:"goaml"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql, postgres
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    int    `mapstructure:"conn_max_lifetime"`
	LogEnabled         bool   `mapstructure:"log_enabled"`
	SlowQueryThreshold int    `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers        []string     `mapstructure:"brokers"`
	GroupID        string       `mapstructure:"group_id"`
	SessionTimeout int          `mapstructure:"session_timeout"`
	MaxRetries     int          `mapstructure:"max_retries"`
	RetryBackoff   int          `mapstructure:"retry_backoff"`
	Topics         TopicsConfig `mapstructure:"topics"`
}

// TopicsConfig 业务主题
type TopicsConfig struct {
	// 待监控交易入口
	Transactions string `mapstructure:"transactions"`
	// 处理失败的消息
	DeadLetter string `mapstructure:"dead_letter"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`
}

// MonitoringConfig 交易监控阈值
type MonitoringConfig struct {
	// 拆分交易阈值（AED）
	StructuringThreshold float64 `mapstructure:"structuring_threshold"`
	// 快速资金流动笔数阈值
	RapidMovementThreshold int `mapstructure:"rapid_movement_threshold"`
	// 模式分析回溯天数
	PatternLookbackDays int `mapstructure:"pattern_lookback_days"`
	// 快速资金流动窗口（小时）
	RapidMovementWindowHours int `mapstructure:"rapid_movement_window_hours"`
	// 告警升级 SLA（小时）
	EscalationSLAHours int `mapstructure:"escalation_sla_hours"`
	// 可疑交易报告阈值（AED）
	STRThresholdAED float64 `mapstructure:"str_threshold_aed"`
	// 风险等级阈值
	HighRiskThreshold   int  `mapstructure:"high_risk_threshold"`
	MediumRiskThreshold int  `mapstructure:"medium_risk_threshold"`
	RiskLookbackDays    int  `mapstructure:"risk_lookback_days"`
	AutoCaseCreation    bool `mapstructure:"auto_case_creation"`
	// 规则种子文件（YAML，可选）
	RulesSeedFile string `mapstructure:"rules_seed_file"`
}

// PatternLookback 模式分析窗口
func (m MonitoringConfig) PatternLookback() time.Duration {
	return time.Duration(m.PatternLookbackDays) * 24 * time.Hour
}

// RapidMovementWindow 快速资金流动窗口
func (m MonitoringConfig) RapidMovementWindow() time.Duration {
	return time.Duration(m.RapidMovementWindowHours) * time.Hour
}

// EscalationSLA 告警升级时限
func (m MonitoringConfig) EscalationSLA() time.Duration {
	return time.Duration(m.EscalationSLAHours) * time.Hour
}

// ScreeningConfig 名单筛查配置
type ScreeningConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 名称相似度阈值（严格大于）
	MatchThreshold float64 `mapstructure:"match_threshold"`
	// 名单缓存时长（秒）
	CacheTTL int `mapstructure:"cache_ttl"`
	// 名单种子文件（YAML，可选）
	WatchlistSeedFile string `mapstructure:"watchlist_seed_file"`
}

// GoAMLConfig goAML 报送配置
type GoAMLConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	OrgID    string `mapstructure:"org_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Timeout  int    `mapstructure:"timeout"`
}

// SchedulerConfig 定时任务配置（cron 表达式）
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	EscalationSweep  string `mapstructure:"escalation_sweep"`
	WatchlistRefresh string `mapstructure:"watchlist_refresh"`
	SARStatusPoll    string `mapstructure:"sar_status_poll"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	// 默认接收组
	RecipientGroup string `mapstructure:"recipient_group"`
	// 可选 webhook 地址
	WebhookURL string `mapstructure:"webhook_url"`
	// 连接建立时补发的未读条数
	PendingOnConnect int `mapstructure:"pending_on_connect"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

// LoadWithDefaults 加载配置，文件不存在时仅使用默认值与环境变量
func LoadWithDefaults(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// 读取配置文件（如果不存在则忽略）
	_ = v.ReadInConfig()
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
	}
	if c.Screening.MatchThreshold <= 0 || c.Screening.MatchThreshold > 1 {
		return fmt.Errorf("screening.match_threshold must be in (0, 1]: %v", c.Screening.MatchThreshold)
	}
	if c.Monitoring.MediumRiskThreshold > c.Monitoring.HighRiskThreshold {
		return fmt.Errorf("medium_risk_threshold %d exceeds high_risk_threshold %d",
			c.Monitoring.MediumRiskThreshold, c.Monitoring.HighRiskThreshold)
	}
	if c.Monitoring.StructuringThreshold <= 0 {
		return fmt.Errorf("monitoring.structuring_threshold must be positive")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "aml")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)

	// 空默认值使 APP_ 环境变量可覆盖这些键
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("goaml.org_id", "")
	v.SetDefault("goaml.username", "")
	v.SetDefault("goaml.password", "")
	v.SetDefault("notification.webhook_url", "")
	v.SetDefault("monitoring.rules_seed_file", "")
	v.SetDefault("screening.watchlist_seed_file", "")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "aml")
	v.SetDefault("kafka.session_timeout", 10)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)
	v.SetDefault("kafka.topics.transactions", "aml.transactions")
	v.SetDefault("kafka.topics.dead_letter", "aml.dead_letter")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/aml.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.qps", 100)
	v.SetDefault("rate_limit.burst", 200)

	v.SetDefault("monitoring.structuring_threshold", 10000)
	v.SetDefault("monitoring.rapid_movement_threshold", 5)
	v.SetDefault("monitoring.pattern_lookback_days", 30)
	v.SetDefault("monitoring.rapid_movement_window_hours", 24)
	v.SetDefault("monitoring.escalation_sla_hours", 24)
	v.SetDefault("monitoring.str_threshold_aed", 40000)
	v.SetDefault("monitoring.high_risk_threshold", 75)
	v.SetDefault("monitoring.medium_risk_threshold", 50)
	v.SetDefault("monitoring.risk_lookback_days", 90)
	v.SetDefault("monitoring.auto_case_creation", true)

	v.SetDefault("screening.enabled", true)
	v.SetDefault("screening.match_threshold", 0.8)
	v.SetDefault("screening.cache_ttl", 3600)

	v.SetDefault("goaml.base_url", "https://goaml-api.example.com")
	v.SetDefault("goaml.timeout", 30)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.escalation_sweep", "@every 5m")
	v.SetDefault("scheduler.watchlist_refresh", "@hourly")
	v.SetDefault("scheduler.sar_status_poll", "@every 30m")

	v.SetDefault("notification.recipient_group", "compliance")
	v.SetDefault("notification.pending_on_connect", 10)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
