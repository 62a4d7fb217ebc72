package sandbox

import (
	"os"
	"strconv"

	configtypes "github.com/sandvm/v1/pkg/types"
)

// SandboxOptions 模拟环境配置
type SandboxOptions struct {
	DefaultSender string `json:"default_sender"` // 默认发送者地址（0x十六进制）
	Epoch         uint64 `json:"epoch"`          // 初始纪元号
}

// Config 提供访问选项
type Config struct {
	options *SandboxOptions
}

// New 创建配置，支持用户配置与环境变量覆盖
// 环境变量：
//
//	SVM_SANDBOX_DEFAULT_SENDER
//	SVM_SANDBOX_EPOCH
func New(userConfig interface{}) *Config {
	opts := &SandboxOptions{
		DefaultSender: defaultSender,
		Epoch:         defaultEpoch,
	}

	if userConfig != nil {
		applyUserSandboxConfig(opts, userConfig)
	}

	if v := os.Getenv("SVM_SANDBOX_DEFAULT_SENDER"); v != "" {
		opts.DefaultSender = v
	}
	if v := os.Getenv("SVM_SANDBOX_EPOCH"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			opts.Epoch = n
		}
	}

	return &Config{options: opts}
}

// applyUserSandboxConfig 应用用户配置覆盖默认值
func applyUserSandboxConfig(opts *SandboxOptions, userConfig interface{}) {
	sandboxConfig, ok := userConfig.(*configtypes.UserSandboxConfig)
	if !ok || sandboxConfig == nil {
		return
	}
	if sandboxConfig.DefaultSender != nil {
		opts.DefaultSender = *sandboxConfig.DefaultSender
	}
	if sandboxConfig.Epoch != nil {
		opts.Epoch = *sandboxConfig.Epoch
	}
}

// GetOptions 获取完整的模拟环境配置选项
func (c *Config) GetOptions() *SandboxOptions { return c.options }

// DefaultSenderAddress 解析默认发送者为账户地址
//
// 解析失败时返回零地址，由调用方决定是否报错。
func (c *Config) DefaultSenderAddress() configtypes.Address {
	addr, err := configtypes.ParseAddress(c.options.DefaultSender)
	if err != nil {
		return configtypes.Address{}
	}
	return addr
}
