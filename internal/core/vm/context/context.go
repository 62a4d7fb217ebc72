// Package context 实现脚本执行上下文
//
// 🎯 **核心职责**：
// - 承载一次脚本执行的全部执行期状态：发送者、纪元、摘要、
//   确定性计数器、逐命令参数/结果槽位、轨迹与事件
// - 经 context.Context 类型键在执行装置与宿主函数之间传递
//
// 📋 **生命周期**：
// 上下文按脚本创建，命令之间复用：新鲜度、时钟与随机计数
// 在整个脚本内连续递增，参数与结果槽位按命令重置。
//
// ⚠️ **并发模型**：
// 单脚本执行严格串行（解释器在调用方goroutine上回调宿主
// 函数），上下文不做并发防护，禁止跨goroutine共享。
package context

import (
	"context"

	"github.com/sandvm/v1/internal/core/objects"
	"github.com/sandvm/v1/pkg/types"
)

// NativeState 确定性计数器组
//
// 三个计数器都以脚本为生命周期，跨命令持续递增，
// 保证同一脚本内派生的ID、时钟读数与随机流互不重复。
type NativeState struct {
	// ClockAccesses 时钟访问次数
	ClockAccesses uint64 `json:"clock_accesses"`

	// RandomCounter 随机流已产出的块数
	RandomCounter uint64 `json:"random_counter"`

	// FreshCounter 新鲜对象ID派生计数
	FreshCounter uint64 `json:"fresh_counter"`
}

// ExecutionContext 一次脚本执行的共享上下文
type ExecutionContext struct {
	// === 身份 ===

	// Digest 执行摘要，新鲜ID派生的根
	Digest types.Digest

	// Sender 发送者地址
	Sender types.Address

	// Epoch 执行所在纪元
	Epoch uint64

	// === 配置 ===

	// Config 原生函数层配置（密码学模式、时钟、随机种子）
	Config types.NativeConfig

	// === 仓库句柄 ===

	// Store 本次执行借用的对象仓库
	Store *objects.Store

	// === 逐命令槽位 ===

	// Args 当前命令的调用参数
	Args [][]byte

	// Results 当前命令经 result_emit 发出的结果
	Results [][]byte

	// === 确定性状态 ===

	// State 跨命令持续的计数器组
	State NativeState

	// === 调用点 ===

	// Module 当前正在执行的模块（中止归因用）
	Module types.ModuleID

	// Function 当前正在执行的函数
	Function string

	// === 观察输出 ===

	// Trace 执行轨迹
	Trace types.ExecutionTrace

	// Events 脚本内发出的事件
	Events []types.Event

	// PendingAbort 原生层记录的合约中止
	//
	// abort原生函数先在此落账再触发陷阱，执行装置据此识别中止，
	// 不依赖解释器对恢复值的包装方式。
	PendingAbort *types.AbortError

	// seq 轨迹观察序号，原生调用与对象触达共用一个序列
	seq int
}

// NewExecutionContext 创建脚本级执行上下文
func NewExecutionContext(digest types.Digest, sender types.Address, epoch uint64, cfg types.NativeConfig, store *objects.Store) *ExecutionContext {
	return &ExecutionContext{
		Digest: digest,
		Sender: sender,
		Epoch:  epoch,
		Config: cfg,
		Store:  store,
	}
}

// BeginCommand 为一条命令重置参数与结果槽位
//
// 计数器、轨迹与事件保持连续，只有槽位按命令更换。
func (c *ExecutionContext) BeginCommand(module types.ModuleID, function string, args [][]byte) {
	c.Module = module
	c.Function = function
	c.Args = args
	c.Results = nil
	c.PendingAbort = nil
}

// TakeResults 取走当前命令的结果槽位
func (c *ExecutionContext) TakeResults() [][]byte {
	out := c.Results
	c.Results = nil
	return out
}

// AbortWith 以当前调用点构造合约中止载体
func (c *ExecutionContext) AbortWith(code uint64) *types.AbortError {
	return &types.AbortError{Module: c.Module, Function: c.Function, Code: code}
}

// RecordAbort 落账合约中止并返回载体
//
// 原生层以该载体触发陷阱前必须先落账，保证中止信息
// 能穿越解释器边界被执行装置读到。
func (c *ExecutionContext) RecordAbort(code uint64) *types.AbortError {
	abort := c.AbortWith(code)
	c.PendingAbort = abort
	return abort
}

// ==================== Context 传递 ====================

// execCtxKey 类型键，避免与其他包的上下文值冲突
type execCtxKey struct{}

// WithExecutionContext 把执行上下文附加到 ctx
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, execCtxKey{}, ec)
}

// FromContext 从 ctx 取回执行上下文
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	ec, ok := ctx.Value(execCtxKey{}).(*ExecutionContext)
	return ec, ok
}
