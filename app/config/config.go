package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Download DownloadConfig `mapstructure:"download"`
	Limit    LimitConfig    `mapstructure:"limit"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

// DownloadConfig 下载相关配置
type DownloadConfig struct {
	Dir          string `mapstructure:"dir"`           // 下载文件与 Cookie 文件所在目录
	WaitTimeout  int    `mapstructure:"wait_timeout"`  // 请求等待下载完成的上限（秒）
	PollInterval int    `mapstructure:"poll_interval"` // 轮询间隔（秒）
	DeleteGrace  int    `mapstructure:"delete_grace"`  // 送达后延迟删除的缓冲（秒）
	YtDlpPath    string `mapstructure:"ytdlp_path"`    // yt-dlp 可执行文件路径
}

// LimitConfig 受限平台的用量策略
type LimitConfig struct {
	DailyLimit      int `mapstructure:"daily_limit"`      // 每日成功下载上限
	CooldownMinutes int `mapstructure:"cooldown_minutes"` // 两次成功下载之间的冷却（分钟）
}

// CleanupConfig 残留文件清理器配置
type CleanupConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Schedule      string `mapstructure:"schedule"`        // cron 表达式
	MaxAgeMinutes int    `mapstructure:"max_age_minutes"` // 超过该时长的残留文件会被删除
}

// WaitTimeoutDuration 轮询总时长
func (c DownloadConfig) WaitTimeoutDuration() time.Duration {
	return time.Duration(c.WaitTimeout) * time.Second
}

// PollIntervalDuration 轮询间隔
func (c DownloadConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// DeleteGraceDuration 删除前的缓冲时长
func (c DownloadConfig) DeleteGraceDuration() time.Duration {
	return time.Duration(c.DeleteGrace) * time.Second
}

// CooldownDuration 冷却时长
func (c LimitConfig) CooldownDuration() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// MaxAgeDuration 残留文件的最大存活时长
func (c CleanupConfig) MaxAgeDuration() time.Duration {
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.username", "admin")
	viper.SetDefault("server.password", "admin")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "media-fetch")

	// 下载默认配置，与历史行为保持一致：文件直接落在工作目录
	viper.SetDefault("download.dir", ".")
	viper.SetDefault("download.wait_timeout", 300)
	viper.SetDefault("download.poll_interval", 1)
	viper.SetDefault("download.delete_grace", 1)
	viper.SetDefault("download.ytdlp_path", "yt-dlp")

	// Instagram 用量策略
	viper.SetDefault("limit.daily_limit", 10)
	viper.SetDefault("limit.cooldown_minutes", 10)

	// 残留清理器
	viper.SetDefault("cleanup.enabled", true)
	viper.SetDefault("cleanup.schedule", "@every 10m")
	viper.SetDefault("cleanup.max_age_minutes", 30)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	if config.Download.Dir == "" {
		return fmt.Errorf("下载目录未设置")
	}
	if config.Download.WaitTimeout <= 0 || config.Download.PollInterval <= 0 {
		return fmt.Errorf("下载轮询参数必须为正数")
	}
	if config.Limit.DailyLimit <= 0 {
		return fmt.Errorf("每日限额必须为正数")
	}
	return nil
}
