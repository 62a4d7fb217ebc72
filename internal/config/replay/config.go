package replay

import (
	"os"
	"strconv"
	"time"

	configtypes "github.com/sandvm/v1/pkg/types"
)

// ReplayOptions 回放配置
type ReplayOptions struct {
	// === 拉取配置 ===
	Endpoint       string        `json:"endpoint"`        // 归档节点JSON-RPC地址
	RequestTimeout time.Duration `json:"request_timeout"` // 单次请求超时
	RetryAttempts  int           `json:"retry_attempts"`  // 失败重试次数
	RetryBackoff   time.Duration `json:"retry_backoff"`   // 重试退避基准

	// === 缓存配置 ===
	CacheDir     string `json:"cache_dir"`     // 磁盘缓存目录
	CacheBackend string `json:"cache_backend"` // file | badger

	// === 比对配置 ===
	GasTolerance int `json:"gas_tolerance"` // 燃料对象变更次数容差

	// === 批量配置 ===
	Workers int `json:"workers"` // 批量回放工作者数量
}

// Config 提供访问选项
type Config struct {
	options *ReplayOptions
}

// New 创建配置，支持用户配置与环境变量覆盖
// 环境变量：
//
//	SVM_REPLAY_ENDPOINT
//	SVM_REPLAY_CACHE_DIR
//	SVM_REPLAY_CACHE_BACKEND (file|badger)
//	SVM_REPLAY_WORKERS
//	SVM_REPLAY_GAS_TOLERANCE
//	SVM_REPLAY_REQUEST_TIMEOUT_MS
//	SVM_REPLAY_RETRY_ATTEMPTS
func New(userConfig interface{}) *Config {
	opts := &ReplayOptions{
		Endpoint:       defaultEndpoint,
		RequestTimeout: defaultRequestTimeout,
		RetryAttempts:  defaultRetryAttempts,
		RetryBackoff:   defaultRetryBackoff,
		CacheDir:       defaultCacheDir,
		CacheBackend:   defaultCacheBackend,
		GasTolerance:   defaultGasTolerance,
		Workers:        defaultWorkers,
	}

	if userConfig != nil {
		applyUserReplayConfig(opts, userConfig)
	}

	if v := os.Getenv("SVM_REPLAY_ENDPOINT"); v != "" {
		opts.Endpoint = v
	}
	if v := os.Getenv("SVM_REPLAY_CACHE_DIR"); v != "" {
		opts.CacheDir = v
	}
	if v := os.Getenv("SVM_REPLAY_CACHE_BACKEND"); v != "" {
		opts.CacheBackend = v
	}
	if v := os.Getenv("SVM_REPLAY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Workers = n
		}
	}
	if v := os.Getenv("SVM_REPLAY_GAS_TOLERANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.GasTolerance = n
		}
	}
	if v := os.Getenv("SVM_REPLAY_REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			opts.RequestTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("SVM_REPLAY_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.RetryAttempts = n
		}
	}

	return &Config{options: opts}
}

// NewFromOptions 从ReplayOptions创建配置实现
// 用于直接使用已构建的配置选项（例如从Provider获取的选项）
func NewFromOptions(options *ReplayOptions) *Config {
	if options == nil {
		return New(nil)
	}
	return &Config{options: options}
}

// applyUserReplayConfig 应用用户配置覆盖默认值
func applyUserReplayConfig(opts *ReplayOptions, userConfig interface{}) {
	replayConfig, ok := userConfig.(*configtypes.UserReplayConfig)
	if !ok || replayConfig == nil {
		return
	}
	if replayConfig.Endpoint != nil {
		opts.Endpoint = *replayConfig.Endpoint
	}
	if replayConfig.CacheDir != nil {
		opts.CacheDir = *replayConfig.CacheDir
	}
	if replayConfig.CacheBackend != nil {
		opts.CacheBackend = *replayConfig.CacheBackend
	}
	if replayConfig.Workers != nil {
		opts.Workers = *replayConfig.Workers
	}
	if replayConfig.GasTolerance != nil {
		opts.GasTolerance = *replayConfig.GasTolerance
	}
	if replayConfig.RequestTimeout != nil {
		opts.RequestTimeout = time.Duration(*replayConfig.RequestTimeout) * time.Second
	}
	if replayConfig.RetryAttempts != nil {
		opts.RetryAttempts = *replayConfig.RetryAttempts
	}
}

// GetOptions 获取完整的回放配置选项
func (c *Config) GetOptions() *ReplayOptions { return c.options }
