package clock

import (
	"os"
	"strconv"
	"time"

	types "github.com/weisyn/contractcore/pkg/types"
)

// 支持的时钟类型
const (
	TypeSystem        = "system"
	TypeNTP           = "ntp"
	TypeDeterministic = "deterministic"
)

// ClockOptions 时钟配置
type ClockOptions struct {
	Type            string        `json:"type"` // system | ntp | deterministic
	NTPServer       string        `json:"ntp_server"`
	SyncInterval    time.Duration `json:"sync_interval"`
	OffsetThreshold time.Duration `json:"offset_threshold"`

	BackoffInitial time.Duration `json:"backoff_initial"`
	BackoffMax     time.Duration `json:"backoff_max"`

	// 确定性时钟的基准时间，0 表示 Unix 纪元
	DeterministicBaseUnix int64 `json:"deterministic_base_unix"`
}

// Config 提供访问选项
type Config struct {
	options *ClockOptions
}

// New 创建时钟配置
//
// 优先级：环境变量 > 用户配置 > 默认值。
// 环境变量：
//
//	CLOCK_TYPE (system|ntp|deterministic)
//	CLOCK_NTP_SERVER
//	CLOCK_SYNC_INTERVAL_MS
//	CLOCK_DETERMINISTIC_BASE_UNIX
func New(userConfig interface{}) *Config {
	opts := &ClockOptions{
		Type:            defaultType,
		NTPServer:       defaultNTPServer,
		SyncInterval:    defaultSyncInterval,
		OffsetThreshold: defaultOffsetThreshold,
		BackoffInitial:  defaultBackoffInitial,
		BackoffMax:      defaultBackoffMax,
	}

	if u, ok := userConfig.(*types.UserClockConfig); ok && u != nil {
		if u.Type != nil {
			opts.Type = *u.Type
		}
		if u.NTPServer != nil {
			opts.NTPServer = *u.NTPServer
		}
		if u.SyncInterval != nil {
			if d, err := time.ParseDuration(*u.SyncInterval); err == nil && d > 0 {
				opts.SyncInterval = d
			}
		}
		if u.DeterministicBaseUnix != nil {
			opts.DeterministicBaseUnix = *u.DeterministicBaseUnix
		}
	}

	if v := os.Getenv("CLOCK_TYPE"); v != "" {
		opts.Type = v
	}
	if v := os.Getenv("CLOCK_NTP_SERVER"); v != "" {
		opts.NTPServer = v
	}
	if v := os.Getenv("CLOCK_SYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			opts.SyncInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("CLOCK_DETERMINISTIC_BASE_UNIX"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			opts.DeterministicBaseUnix = n
		}
	}

	return &Config{options: opts}
}

func (c *Config) GetOptions() *ClockOptions { return c.options }
