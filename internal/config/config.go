package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "ROOM_CHAT_"

// 默认值
const (
	defaultOrigin           = "http://localhost:8000"
	defaultWSPath           = "/ws"
	defaultRequestTimeout   = 10
	defaultHandshakeTimeout = 10
	defaultRoomID           = 1
	defaultToUserID         = 2
	defaultHistoryLimit     = 50
	defaultMaxLogs          = 500
	defaultMaxMessages      = 1000
	defaultToastSeconds     = 3
	defaultInitialInterval  = 1000
	defaultMaxInterval      = 30000
	defaultSSERetry         = 3000
	defaultSoundDir         = "assets/sounds"
)

// Config 客户端配置
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Chat      ChatConfig      `yaml:"chat" envPrefix:"CHAT_"`
	Reconnect ReconnectConfig `yaml:"reconnect" envPrefix:"RECONNECT_"`
	SSE       SSEConfig       `yaml:"sse" envPrefix:"SSE_"`
	Sound     SoundConfig     `yaml:"sound" envPrefix:"SOUND_"`
}

// ServerConfig 聊天网关地址
type ServerConfig struct {
	Origin           string `yaml:"origin" env:"ORIGIN"`                       // http(s)://host[:port]
	WSPath           string `yaml:"ws_path" env:"WS_PATH"`                     // WebSocket 路径
	RequestTimeout   int    `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`     // REST 超时（秒）
	HandshakeTimeout int    `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"` // 握手超时（秒）
}

// ChatConfig 聊天界面配置
type ChatConfig struct {
	Username     string `yaml:"username" env:"USERNAME"`
	RoomID       int64  `yaml:"room_id" env:"ROOM_ID"`
	ToUserID     int64  `yaml:"to_user_id" env:"TO_USER_ID"`
	HistoryLimit int    `yaml:"history_limit" env:"HISTORY_LIMIT"`
	MaxLogs      int    `yaml:"max_logs" env:"MAX_LOGS"`         // 日志保留条数
	MaxMessages  int    `yaml:"max_messages" env:"MAX_MESSAGES"` // 消息保留条数
	ToastSeconds int    `yaml:"toast_seconds" env:"TOAST_SECONDS"`
}

// ReconnectConfig WebSocket 重连配置
type ReconnectConfig struct {
	InitialIntervalMs int `yaml:"initial_interval_ms" env:"INITIAL_INTERVAL_MS"`
	MaxIntervalMs     int `yaml:"max_interval_ms" env:"MAX_INTERVAL_MS"`
	MaxAttempts       int `yaml:"max_attempts" env:"MAX_ATTEMPTS"` // 0 = 不限
}

// SSEConfig SSE 配置
type SSEConfig struct {
	RetryMs int `yaml:"retry_ms" env:"RETRY_MS"` // 服务端未指定 retry 时的重连间隔
}

// SoundConfig 提示音配置
type SoundConfig struct {
	Muted bool   `yaml:"muted" env:"MUTED"`
	Dir   string `yaml:"dir" env:"DIR"` // mp3/wav 目录
}

// RequestTimeoutDuration 返回 REST 请求超时
func (c *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// HandshakeTimeoutDuration 返回 WebSocket 握手超时
func (c *ServerConfig) HandshakeTimeoutDuration() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Second
}

// WSURL derives the WebSocket URL from the origin: http becomes ws and
// https becomes wss.
func (c *ServerConfig) WSURL() (string, error) {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return "", errors.Wrap(err, "parse origin")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.WSPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// SSEURL returns the SSE subscription URL of a room for a user.
func (c *ServerConfig) SSEURL(roomID, userID int64) string {
	return fmt.Sprintf("%s/sse/rooms/%d?toUserId=%d", strings.TrimRight(c.Origin, "/"), roomID, userID)
}

// ToastDuration 返回通知显示时长
func (c *ChatConfig) ToastDuration() time.Duration {
	return time.Duration(c.ToastSeconds) * time.Second
}

// InitialInterval 返回首次重连间隔
func (c *ReconnectConfig) InitialInterval() time.Duration {
	return time.Duration(c.InitialIntervalMs) * time.Millisecond
}

// MaxInterval 返回最大重连间隔
func (c *ReconnectConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalMs) * time.Millisecond
}

// RetryInterval 返回 SSE 默认重连间隔
func (c *SSEConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryMs) * time.Millisecond
}

// Load 加载配置文件。path 为空时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 零值回填默认值
func (c *Config) applyDefaults() {
	if c.Server.Origin == "" {
		c.Server.Origin = defaultOrigin
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = defaultWSPath
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = defaultHistoryLimit
	}
	if c.Chat.MaxLogs == 0 {
		c.Chat.MaxLogs = defaultMaxLogs
	}
	if c.Chat.MaxMessages == 0 {
		c.Chat.MaxMessages = defaultMaxMessages
	}
	if c.Chat.ToastSeconds == 0 {
		c.Chat.ToastSeconds = defaultToastSeconds
	}
	if c.Reconnect.InitialIntervalMs == 0 {
		c.Reconnect.InitialIntervalMs = defaultInitialInterval
	}
	if c.Reconnect.MaxIntervalMs == 0 {
		c.Reconnect.MaxIntervalMs = defaultMaxInterval
	}
	if c.SSE.RetryMs == 0 {
		c.SSE.RetryMs = defaultSSERetry
	}
	if c.Sound.Dir == "" {
		c.Sound.Dir = defaultSoundDir
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.Origin)
	if err != nil {
		return errors.Wrap(err, "server.origin")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("server.origin: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server.origin: missing host")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return errors.Errorf("server.ws_path: must start with /, got %q", c.Server.WSPath)
	}
	if c.Chat.HistoryLimit < 0 || c.Chat.MaxLogs < 0 || c.Chat.MaxMessages < 0 {
		return errors.New("chat: limits must be positive")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts: must not be negative")
	}
	return nil
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Origin:           defaultOrigin,
			WSPath:           defaultWSPath,
			RequestTimeout:   defaultRequestTimeout,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		Chat: ChatConfig{
			RoomID:       defaultRoomID,
			ToUserID:     defaultToUserID,
			HistoryLimit: defaultHistoryLimit,
			MaxLogs:      defaultMaxLogs,
			MaxMessages:  defaultMaxMessages,
			ToastSeconds: defaultToastSeconds,
		},
		Reconnect: ReconnectConfig{
			InitialIntervalMs: defaultInitialInterval,
			MaxIntervalMs:     defaultMaxInterval,
		},
		SSE: SSEConfig{
			RetryMs: defaultSSERetry,
		},
		Sound: SoundConfig{
			Dir: defaultSoundDir,
		},
	}
}
