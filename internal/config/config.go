package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Env                    string `mapstructure:"env"`
	Port                   int    `mapstructure:"port"`
	MediaBaseURL           string `mapstructure:"media_base_url"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

func (a AppConfig) PortString() string { return strconv.Itoa(a.Port) }

func (a AppConfig) IsDevelopment() bool { return a.Env == "development" }

type JWTConfig struct {
	Algorithm     string `mapstructure:"algorithm"`
	HSSecret      string `mapstructure:"hs_secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// MemoryConfig seeds the in-memory store. Identities are only resolved for seeded users.
type MemoryConfig struct {
	Users []SeedUser `mapstructure:"users"`
	Rooms []SeedRoom `mapstructure:"rooms"`
}

type SeedUser struct {
	ID        int64  `mapstructure:"id"`
	Username  string `mapstructure:"username"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
	Avatar    string `mapstructure:"avatar"`
}

type SeedRoom struct {
	ID      int64 `mapstructure:"id"`
	User    int64 `mapstructure:"user"`
	Trainer int64 `mapstructure:"trainer"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	Addr                    string `mapstructure:"addr"`
	Password                string `mapstructure:"password"`
	DB                      int    `mapstructure:"db"`
	Prefix                  string `mapstructure:"prefix"`
	IdentityCacheTTLSeconds int    `mapstructure:"identity_cache_ttl_seconds"`
	PresenceTTLSeconds      int    `mapstructure:"presence_ttl_seconds"`
	RESTRateLimitPerMinute  int    `mapstructure:"rest_rate_limit_per_minute"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type NATSConfig struct {
	URL               string `mapstructure:"url"`
	SubjectRoomOpened string `mapstructure:"subject_room_opened"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	PongWaitSeconds      int   `mapstructure:"pong_wait_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
	RateLimitPerSec      int   `mapstructure:"rate_limit_per_sec"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	NATS     NATSConfig     `mapstructure:"nats"`
	WS       WSConfig       `mapstructure:"ws"`
	Log      LogConfig      `mapstructure:"log"`

	// derived
	PingInterval     time.Duration `mapstructure:"-"`
	PongWait         time.Duration `mapstructure:"-"`
	WriteDeadline    time.Duration `mapstructure:"-"`
	ShutdownTimeout  time.Duration `mapstructure:"-"`
	IdentityCacheTTL time.Duration `mapstructure:"-"`
	PresenceTTL      time.Duration `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8085)
	v.SetDefault("app.media_base_url", "")
	v.SetDefault("app.shutdown_timeout_seconds", 10)
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.hs_secret", "")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chat")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("redis.identity_cache_ttl_seconds", 300)
	v.SetDefault("redis.presence_ttl_seconds", 86400)
	v.SetDefault("redis.rest_rate_limit_per_minute", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_message_sent", "chat.message.sent")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_room_opened", "chat.room.opened")
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.pong_wait_seconds", 60)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.rate_limit_per_sec", 0)
	v.SetDefault("log.level", "")
}

// Load reads the YAML file at path (optional when empty or missing), applies a .env file
// if one exists and lets environment variables override any key: ws.send_buffer -> WS_SEND_BUFFER.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// comma separated brokers from env
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = strings.Split(c.Kafka.Brokers[0], ",")
	}
	c.derive()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) derive() {
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.PongWait = time.Duration(c.WS.PongWaitSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.ShutdownTimeout = time.Duration(c.App.ShutdownTimeoutSeconds) * time.Second
	c.IdentityCacheTTL = time.Duration(c.Redis.IdentityCacheTTLSeconds) * time.Second
	c.PresenceTTL = time.Duration(c.Redis.PresenceTTLSeconds) * time.Second
}

func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port %d out of range", c.App.Port)
	}
	switch strings.ToUpper(c.JWT.Algorithm) {
	case "HS256":
		if c.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret is required for HS256")
		}
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path is required for RS256")
		}
	default:
		return fmt.Errorf("jwt.algorithm %q not supported", c.JWT.Algorithm)
	}
	switch c.Storage.Driver {
	case "memory", "mongo":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q not supported", c.Storage.Driver)
	}
	if c.WS.SendBuffer <= 0 {
		return errors.New("ws.send_buffer must be positive")
	}
	if c.WS.PingIntervalSeconds <= 0 || c.WS.WriteDeadlineSeconds <= 0 {
		return errors.New("ws intervals must be positive")
	}
	if c.WS.PongWaitSeconds <= c.WS.PingIntervalSeconds {
		return fmt.Errorf("ws.pong_wait_seconds must exceed ws.ping_interval_seconds (%d)", c.WS.PingIntervalSeconds)
	}
	return c.Memory.validate()
}

func (m MemoryConfig) validate() error {
	users := make(map[int64]bool, len(m.Users))
	for _, u := range m.Users {
		if u.ID <= 0 {
			return fmt.Errorf("memory.users: invalid id %d", u.ID)
		}
		users[u.ID] = true
	}
	for _, r := range m.Rooms {
		switch {
		case r.ID <= 0:
			return fmt.Errorf("memory.rooms: invalid id %d", r.ID)
		case r.User == r.Trainer:
			return fmt.Errorf("memory.rooms[%d]: user and trainer must differ", r.ID)
		case !users[r.User] || !users[r.Trainer]:
			return fmt.Errorf("memory.rooms[%d]: participants must be seeded users", r.ID)
		}
	}
	return nil
}
