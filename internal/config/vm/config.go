package vm

import (
	"os"
	"strconv"

	configtypes "github.com/sandvm/v1/pkg/types"
)

// VMOptions 虚拟机配置
//
// 同时覆盖两类关注点：
// - 确定性选项：加密模式、时钟基准/步进、随机种子
// - 运行时限制：编译模式、内存页上限、执行超时、编译缓存容量
type VMOptions struct {
	// === 确定性选项 ===
	CryptoMode  string `json:"crypto_mode"`   // permissive | strict
	ClockBaseMS uint64 `json:"clock_base_ms"` // 合约时钟基准（epoch毫秒）
	ClockTickMS uint64 `json:"clock_tick_ms"` // 每次访问的时钟步进（毫秒）
	RandomSeed  string `json:"random_seed"`   // 确定性随机源种子

	// === 运行时限制 ===
	UseCompiler      bool `json:"use_compiler"`       // true用编译器，false用解释器
	MaxMemoryPages   int  `json:"max_memory_pages"`   // 线性内存页上限（64KB/页）
	ExecTimeoutSecs  int  `json:"exec_timeout_secs"`  // 单次调用超时（秒）
	CompileCacheSize int  `json:"compile_cache_size"` // 编译缓存容量（模块数）
}

// Config 提供访问选项
type Config struct {
	options *VMOptions
}

// New 创建配置，支持用户配置与环境变量覆盖
// 环境变量：
//
//	SVM_VM_CRYPTO_MODE (permissive|strict)
//	SVM_VM_CLOCK_BASE_MS
//	SVM_VM_CLOCK_TICK_MS
//	SVM_VM_RANDOM_SEED
//	SVM_VM_USE_COMPILER (true|false)
//	SVM_VM_MAX_MEMORY_PAGES
//	SVM_VM_EXEC_TIMEOUT_SECS
func New(userConfig interface{}) *Config {
	opts := &VMOptions{
		CryptoMode:       defaultCryptoMode,
		ClockBaseMS:      defaultClockBaseMS,
		ClockTickMS:      defaultClockTickMS,
		RandomSeed:       defaultRandomSeed,
		UseCompiler:      defaultUseCompiler,
		MaxMemoryPages:   defaultMaxMemoryPages,
		ExecTimeoutSecs:  defaultExecTimeoutSecs,
		CompileCacheSize: defaultCompileCacheSize,
	}

	if userConfig != nil {
		applyUserVMConfig(opts, userConfig)
	}

	if v := os.Getenv("SVM_VM_CRYPTO_MODE"); v != "" {
		opts.CryptoMode = v
	}
	if v := os.Getenv("SVM_VM_CLOCK_BASE_MS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			opts.ClockBaseMS = n
		}
	}
	if v := os.Getenv("SVM_VM_CLOCK_TICK_MS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			opts.ClockTickMS = n
		}
	}
	if v := os.Getenv("SVM_VM_RANDOM_SEED"); v != "" {
		opts.RandomSeed = v
	}
	if v := os.Getenv("SVM_VM_USE_COMPILER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.UseCompiler = b
		}
	}
	if v := os.Getenv("SVM_VM_MAX_MEMORY_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxMemoryPages = n
		}
	}
	if v := os.Getenv("SVM_VM_EXEC_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.ExecTimeoutSecs = n
		}
	}

	return &Config{options: opts}
}

// applyUserVMConfig 应用用户配置覆盖默认值
func applyUserVMConfig(opts *VMOptions, userConfig interface{}) {
	vmConfig, ok := userConfig.(*configtypes.UserVMConfig)
	if !ok || vmConfig == nil {
		return
	}
	if vmConfig.CryptoMode != nil {
		opts.CryptoMode = *vmConfig.CryptoMode
	}
	if vmConfig.ClockBaseMS != nil {
		opts.ClockBaseMS = *vmConfig.ClockBaseMS
	}
	if vmConfig.ClockTickMS != nil {
		opts.ClockTickMS = *vmConfig.ClockTickMS
	}
	if vmConfig.RandomSeed != nil {
		opts.RandomSeed = *vmConfig.RandomSeed
	}
	if vmConfig.UseCompiler != nil {
		opts.UseCompiler = *vmConfig.UseCompiler
	}
	if vmConfig.MaxMemoryPages != nil {
		opts.MaxMemoryPages = int(*vmConfig.MaxMemoryPages)
	}
	if vmConfig.ExecTimeoutSecs != nil {
		opts.ExecTimeoutSecs = *vmConfig.ExecTimeoutSecs
	}
	if vmConfig.CompileCacheSize != nil {
		opts.CompileCacheSize = *vmConfig.CompileCacheSize
	}
}

// GetOptions 获取完整的虚拟机配置选项
func (c *Config) GetOptions() *VMOptions { return c.options }

// NativeConfig 导出原生函数层所需的确定性配置
func (c *Config) NativeConfig() configtypes.NativeConfig {
	mode := configtypes.CryptoPermissive
	if c.options.CryptoMode == string(configtypes.CryptoStrict) {
		mode = configtypes.CryptoStrict
	}
	return configtypes.NativeConfig{
		CryptoMode:  mode,
		ClockBaseMS: c.options.ClockBaseMS,
		ClockTickMS: c.options.ClockTickMS,
		RandomSeed:  []byte(c.options.RandomSeed),
	}
}
