package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/zhouzirui/speaco/backend/internal/protocol"
)

var validate = validator.New()

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Limits LimitsConfig
	Backup BackupConfig
	Log    LogConfig
}

// ServerConfig 描述 HTTP/WebSocket 服务配置。
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            int           `env:"PORT" envDefault:"6942" validate:"min=0,max=65535"`
	WSPath          string        `env:"WS_PATH" envDefault:"/" validate:"startswith=/"`
	SendQueueSize   int           `env:"SEND_QUEUE_SIZE" envDefault:"256" validate:"min=1"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"min=0"`
}

// Addr 返回监听地址。
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LimitsConfig 描述客户端事件的各项上限。
type LimitsConfig struct {
	EventSize      int64 `env:"LIMIT_EVENT_SIZE" envDefault:"6291456" validate:"min=1"`
	NicknameLength int   `env:"LIMIT_NICKNAME_LENGTH" envDefault:"32" validate:"min=1"`
	HistorySize    int   `env:"LIMIT_HISTORY_SIZE" envDefault:"128" validate:"min=1"`
	MessageLength  int   `env:"LIMIT_MESSAGE_LENGTH" envDefault:"1024" validate:"min=0"`
	AttachmentSize int   `env:"LIMIT_ATTACHMENT_SIZE" envDefault:"5242880" validate:"min=0"`
}

// Protocol converts the limits for the event codec.
func (c LimitsConfig) Protocol() protocol.Limits {
	return protocol.Limits{
		EventSize:      c.EventSize,
		NicknameLength: c.NicknameLength,
		HistorySize:    c.HistorySize,
		MessageLength:  c.MessageLength,
		AttachmentSize: c.AttachmentSize,
	}
}

// BackupConfig 描述崩溃恢复快照的存储方式。
type BackupConfig struct {
	Driver string `env:"BACKUP_DRIVER" envDefault:"file" validate:"oneof=file badger none"`
	// Path 为空时使用驱动的默认位置。
	Path string `env:"BACKUP_PATH"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyArgs 允许像原始命令行一样通过位置参数覆盖 host 和 port。
func (c *Config) ApplyArgs(args []string) error {
	if len(args) > 0 && args[0] != "" {
		c.Server.Host = args[0]
	}
	if len(args) > 1 && args[1] != "" {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port argument %q: %w", args[1], err)
		}
		c.Server.Port = port
	}
	return c.Validate()
}

// Validate 检查各字段取值范围。
func (c *Config) Validate() error {
	for _, section := range []any{c.Server, c.Limits, c.Backup, c.Log} {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}
