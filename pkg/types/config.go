// Package types provides configuration type definitions.
package types

// AppConfig 应用程序根配置
// 只包含JSON配置文件解析所需的结构，不包含任何内部字段
// 默认值和完整配置结构在 internal/config/*/defaults.go 和 internal/config/*/config.go 中定义
type AppConfig struct {
	// 应用程序基本信息
	AppName *string `json:"app_name,omitempty"` // 应用名称
	DataDir *string `json:"data_dir,omitempty"` // 数据目录路径
	Version *string `json:"version,omitempty"`  // 应用版本

	// Environment 运行环境：dev | test | prod
	// 只影响日志级别、默认目录等运维属性，不影响执行语义
	Environment *string `json:"environment,omitempty"`

	// 虚拟机与原生层配置
	VM *UserVMConfig `json:"vm,omitempty"`

	// 沙箱环境配置
	Sandbox *UserSandboxConfig `json:"sandbox,omitempty"`

	// 重放配置
	Replay *UserReplayConfig `json:"replay,omitempty"`

	// 存储配置
	Storage *UserStorageConfig `json:"storage,omitempty"`

	// 日志配置
	Log *UserLogConfig `json:"log,omitempty"`

	// 事件总线配置
	Event *UserEventConfig `json:"event,omitempty"`

	// 内存监控配置
	MemoryMonitoring *UserMemoryMonitoringConfig `json:"memory_monitoring,omitempty"`
}

// UserVMConfig 用户虚拟机配置
// 对应配置文件中的 vm 字段
type UserVMConfig struct {
	CryptoMode       *string `json:"crypto_mode,omitempty"`        // 密码学模式：permissive | strict
	ClockBaseMS      *uint64 `json:"clock_base_ms,omitempty"`      // 确定性时钟基准（毫秒）
	ClockTickMS      *uint64 `json:"clock_tick_ms,omitempty"`      // 时钟访问步长（毫秒）
	RandomSeed       *string `json:"random_seed,omitempty"`        // 随机种子（任意字符串）
	UseCompiler      *bool   `json:"use_compiler,omitempty"`       // 是否使用wazero编译器后端
	MaxMemoryPages   *uint32 `json:"max_memory_pages,omitempty"`   // 实例内存页上限
	ExecTimeoutSecs  *int    `json:"exec_timeout_secs,omitempty"`  // 单次调用超时（秒）
	CompileCacheSize *int    `json:"compile_cache_size,omitempty"` // 编译缓存容量
}

// UserSandboxConfig 用户沙箱配置
// 对应配置文件中的 sandbox 字段
type UserSandboxConfig struct {
	DefaultSender *string `json:"default_sender,omitempty"` // 默认发送者地址
	Epoch         *uint64 `json:"epoch,omitempty"`          // 初始纪元
}

// UserReplayConfig 用户重放配置
// 对应配置文件中的 replay 字段
type UserReplayConfig struct {
	Endpoint       *string  `json:"endpoint,omitempty"`        // 归档端点URL
	CacheDir       *string  `json:"cache_dir,omitempty"`       // 缓存目录
	CacheBackend   *string  `json:"cache_backend,omitempty"`   // 缓存后端：file | badger
	Workers        *int     `json:"workers,omitempty"`         // 批量重放并发度
	GasTolerance   *int     `json:"gas_tolerance,omitempty"`   // 燃料对象修改次数容差
	RequestTimeout *int     `json:"request_timeout,omitempty"` // 取数请求超时（秒）
	RetryAttempts  *int     `json:"retry_attempts,omitempty"`  // 取数重试次数
	ScoreWeights   *float64 `json:"-"`                         // 预留：自定义打分权重
}

// UserStorageConfig 用户存储配置
// 对应配置文件中的 storage 字段
type UserStorageConfig struct {
	File   *UserFileStorageConfig   `json:"file,omitempty"`
	Memory *UserMemoryStorageConfig `json:"memory,omitempty"`
	Badger *UserBadgerStorageConfig `json:"badger,omitempty"`
}

// UserFileStorageConfig 文件存储配置
type UserFileStorageConfig struct {
	RootPath    *string `json:"root_path,omitempty"`    // 根目录
	MaxFileSize *int64  `json:"max_file_size,omitempty"` // 单文件大小上限（MB）
	Compression *bool   `json:"compression,omitempty"`  // 是否启用snappy压缩
}

// UserMemoryStorageConfig 内存缓存配置
type UserMemoryStorageConfig struct {
	MaxSizeMB  *int `json:"max_size_mb,omitempty"` // 缓存容量（MB）
	TTLSeconds *int `json:"ttl_seconds,omitempty"` // 默认TTL（秒）
}

// UserBadgerStorageConfig Badger存储配置
type UserBadgerStorageConfig struct {
	Dir          *string `json:"dir,omitempty"`            // 数据目录
	MemoryOnly   *bool   `json:"memory_only,omitempty"`    // 纯内存模式（测试用）
	ValueLogSize *int64  `json:"value_log_size,omitempty"` // value log 大小上限
}

// UserLogConfig 用户日志配置
type UserLogConfig struct {
	Level      *string `json:"level,omitempty"`       // 日志级别：debug | info | warn | error
	Dir        *string `json:"dir,omitempty"`         // 日志目录
	Console    *bool   `json:"console,omitempty"`     // 是否输出到控制台
	MaxSizeMB  *int    `json:"max_size_mb,omitempty"` // 单文件大小上限（MB）
	MaxBackups *int    `json:"max_backups,omitempty"` // 保留文件数
	MaxAgeDays *int    `json:"max_age_days,omitempty"` // 保留天数
	Compress   *bool   `json:"compress,omitempty"`    // 是否压缩归档
}

// UserEventConfig 用户事件总线配置
type UserEventConfig struct {
	Enabled       *bool `json:"enabled,omitempty"`        // 是否启用事件系统
	EnableHistory *bool `json:"enable_history,omitempty"` // 是否记录事件历史
	HistorySize   *int  `json:"history_size,omitempty"`   // 单类型历史条数
}

// UserMemoryMonitoringConfig 用户内存监控配置
// 只包含JSON配置文件中实际出现的字段
type UserMemoryMonitoringConfig struct {
	// Mode 内存监控模式：minimal | heuristic | accurate
	// - minimal: 只统计对象数，ApproxBytes 一律为 0（适合 dev 环境，减少开销）
	// - heuristic: 对能获取真实统计的模块计算 ApproxBytes，其他为 0（默认）
	// - accurate: 所有模块尽可能计算 ApproxBytes（长时间批量重放时使用）
	Mode *string `json:"mode,omitempty"`

	// SampleIntervalSecs 采样间隔（秒），0 表示使用默认值
	SampleIntervalSecs *int `json:"sample_interval_secs,omitempty"`
}

// BoolPtr 创建bool指针，用于明确表示用户设置了该值
func BoolPtr(v bool) *bool {
	return &v
}

// IntPtr 创建int指针，用于明确表示用户设置了该值
func IntPtr(v int) *int {
	return &v
}

// Int64Ptr 创建int64指针，用于明确表示用户设置了该值
func Int64Ptr(v int64) *int64 {
	return &v
}

// StringPtr 创建string指针，用于明确表示用户设置了该值
func StringPtr(v string) *string {
	return &v
}

// UInt64Ptr 创建uint64指针，用于明确表示用户设置了该值
func UInt64Ptr(v uint64) *uint64 {
	return &v
}

// UInt32Ptr 创建uint32指针，用于明确表示用户设置了该值
func UInt32Ptr(v uint32) *uint32 {
	return &v
}
