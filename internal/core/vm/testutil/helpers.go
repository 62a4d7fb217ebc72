// Package testutil 提供虚拟机模块测试的辅助工具
//
// 🧪 **测试辅助函数**
package testutil

import (
	vmconfig "github.com/sandvm/v1/internal/config/vm"
	"github.com/sandvm/v1/internal/core/vm/runtime"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/types"
)

// NewTestLogger 创建测试用的Logger
func NewTestLogger() log.Logger {
	return &MockLogger{}
}

// NewTestVMConfig 创建默认虚拟机配置
func NewTestVMConfig() *vmconfig.Config {
	return vmconfig.New(nil)
}

// NewTestVMConfigWith 创建带用户覆盖的虚拟机配置
func NewTestVMConfigWith(user *types.UserVMConfig) *vmconfig.Config {
	return vmconfig.New(user)
}

// NewTestRuntime 创建默认配置的wazero运行时（不带编译标记存储）
func NewTestRuntime() *runtime.Runtime {
	return runtime.New(NewTestLogger(), NewTestVMConfig(), nil)
}

// NewTestRuntimeWith 创建带用户覆盖的wazero运行时
func NewTestRuntimeWith(user *types.UserVMConfig) *runtime.Runtime {
	return runtime.New(NewTestLogger(), NewTestVMConfigWith(user), nil)
}

// ==================== 指针辅助 ====================

// StringPtr 构造字符串指针（UserVMConfig覆盖用）
func StringPtr(s string) *string { return &s }

// IntPtr 构造整型指针
func IntPtr(n int) *int { return &n }

// Uint64Ptr 构造uint64指针
func Uint64Ptr(n uint64) *uint64 { return &n }

// BoolPtr 构造布尔指针
func BoolPtr(b bool) *bool { return &b }
