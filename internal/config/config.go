package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	JWT     JWTConfig
	Ledger  LedgerConfig
	Rewards map[string]RewardPolicyConfig // keyed by source kind
	Events  EventsConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Driver         string  // postgres or memory
	MemoryStudents []int64 // students known to the memory store
}

type JWTConfig struct {
	SecretKey string
}

type LedgerConfig struct {
	MinWithdrawal       decimal.Decimal
	PageSize            int
	MaxPageSize         int
	WithdrawalRateLimit int // 0 disables the limit
	WithdrawalWindow    time.Duration
}

// RewardPolicyConfig selects and parameterises the reward policy for one kind
// of graded item.
type RewardPolicyConfig struct {
	Policy            string
	BaseAmount        decimal.Decimal
	PassingPercentage decimal.Decimal
	Multiplier        decimal.Decimal
}

type EventsConfig struct {
	Driver       string // redis, kafka or none
	Channel      string
	KafkaBrokers []string
	KafkaTopic   string
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.allowed_origins", "https://*,http://*")
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "postgres")
	viper.SetDefault("storage.memory_students", "")

	viper.SetDefault("ledger.min_withdrawal", "500.00")
	viper.SetDefault("ledger.page_size", 20)
	viper.SetDefault("ledger.max_page_size", 100)
	viper.SetDefault("ledger.withdrawal_rate_limit", 5)
	viper.SetDefault("ledger.withdrawal_rate_window", 24*time.Hour)

	viper.SetDefault("rewards.quiz.policy", "perfect_score")
	viper.SetDefault("rewards.quiz.base_amount", "50.00")
	viper.SetDefault("rewards.quiz.passing_percentage", "100")
	viper.SetDefault("rewards.quiz.multiplier", "2")

	viper.SetDefault("rewards.assessment.policy", "passing_proportional")
	viper.SetDefault("rewards.assessment.base_amount", "100.00")
	viper.SetDefault("rewards.assessment.passing_percentage", "50")
	viper.SetDefault("rewards.assessment.multiplier", "1")

	viper.SetDefault("events.driver", "redis")
	viper.SetDefault("events.channel", "wallet_events")
	viper.SetDefault("events.kafka.brokers", "localhost:9092")
	viper.SetDefault("events.kafka.topic", "wallet-events")
}

func bindEnv() {
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.env", "APP_ENV")
	viper.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("storage.driver", "STORAGE_DRIVER")
	viper.BindEnv("storage.memory_students", "MEMORY_STUDENTS")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("ledger.min_withdrawal", "LEDGER_MIN_WITHDRAWAL")
	viper.BindEnv("ledger.page_size", "LEDGER_PAGE_SIZE")
	viper.BindEnv("ledger.max_page_size", "LEDGER_MAX_PAGE_SIZE")
	viper.BindEnv("ledger.withdrawal_rate_limit", "LEDGER_WITHDRAWAL_RATE_LIMIT")
	viper.BindEnv("ledger.withdrawal_rate_window", "LEDGER_WITHDRAWAL_RATE_WINDOW")

	for _, kind := range []string{"quiz", "assessment"} {
		prefix := "REWARDS_" + strings.ToUpper(kind) + "_"
		viper.BindEnv("rewards."+kind+".policy", prefix+"POLICY")
		viper.BindEnv("rewards."+kind+".base_amount", prefix+"BASE_AMOUNT")
		viper.BindEnv("rewards."+kind+".passing_percentage", prefix+"PASSING_PERCENTAGE")
		viper.BindEnv("rewards."+kind+".multiplier", prefix+"MULTIPLIER")
	}

	viper.BindEnv("events.driver", "EVENTS_DRIVER")
	viper.BindEnv("events.channel", "EVENTS_CHANNEL")
	viper.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("events.kafka.topic", "KAFKA_TOPIC")
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded, using environment: %v", err)
	}

	setDefaults()
	bindEnv()

	return FromViper()
}

// FromViper builds a Config from whatever viper currently holds.
func FromViper() (*Config, error) {
	minWithdrawal, err := decimalKey("ledger.min_withdrawal")
	if err != nil {
		return nil, err
	}

	students, err := int64List(viper.GetString("storage.memory_students"))
	if err != nil {
		return nil, fmt.Errorf("storage.memory_students: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            viper.GetString("server.port"),
			Env:             viper.GetString("server.env"),
			AllowedOrigins:  stringList(viper.GetString("server.allowed_origins")),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		},
		Storage: StorageConfig{
			Driver:         viper.GetString("storage.driver"),
			MemoryStudents: students,
		},
		JWT: JWTConfig{
			SecretKey: viper.GetString("jwt.secret_key"),
		},
		Ledger: LedgerConfig{
			MinWithdrawal:       minWithdrawal,
			PageSize:            viper.GetInt("ledger.page_size"),
			MaxPageSize:         viper.GetInt("ledger.max_page_size"),
			WithdrawalRateLimit: viper.GetInt("ledger.withdrawal_rate_limit"),
			WithdrawalWindow:    viper.GetDuration("ledger.withdrawal_rate_window"),
		},
		Rewards: make(map[string]RewardPolicyConfig),
		Events: EventsConfig{
			Driver:       viper.GetString("events.driver"),
			Channel:      viper.GetString("events.channel"),
			KafkaBrokers: stringList(viper.GetString("events.kafka.brokers")),
			KafkaTopic:   viper.GetString("events.kafka.topic"),
		},
	}

	for _, kind := range []string{"quiz", "assessment"} {
		rc, err := rewardPolicy(kind)
		if err != nil {
			return nil, err
		}
		cfg.Rewards[kind] = rc
	}

	if cfg.Ledger.PageSize <= 0 || cfg.Ledger.MaxPageSize < cfg.Ledger.PageSize {
		return nil, fmt.Errorf("ledger page sizes out of range: page_size=%d max_page_size=%d",
			cfg.Ledger.PageSize, cfg.Ledger.MaxPageSize)
	}
	if !cfg.Ledger.MinWithdrawal.IsPositive() {
		return nil, fmt.Errorf("ledger.min_withdrawal must be positive")
	}

	return cfg, nil
}

func rewardPolicy(kind string) (RewardPolicyConfig, error) {
	prefix := "rewards." + kind + "."
	base, err := decimalKey(prefix + "base_amount")
	if err != nil {
		return RewardPolicyConfig{}, err
	}
	passing, err := decimalKey(prefix + "passing_percentage")
	if err != nil {
		return RewardPolicyConfig{}, err
	}
	multiplier, err := decimalKey(prefix + "multiplier")
	if err != nil {
		return RewardPolicyConfig{}, err
	}
	return RewardPolicyConfig{
		Policy:            viper.GetString(prefix + "policy"),
		BaseAmount:        base,
		PassingPercentage: passing,
		Multiplier:        multiplier,
	}, nil
}

func decimalKey(key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(viper.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func stringList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func int64List(s string) ([]int64, error) {
	var out []int64
	for _, part := range stringList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
