// Package types provides execution type definitions.
package types

import (
	"errors"
	"fmt"
)

// 执行层类型定义
//
// 🎯 **执行上下文与调用结果**
//
// 执行装置负责装载模块、解析函数与类型参数、驱动解释器完成
// 一次调用。合约中止是预期结果而非错误：装置将其折叠进
// CallOutcome，基础设施故障才以 error 形式向上传播。

// ==================== 原生层配置 ====================

// CryptoMode 密码学原生函数的运行模式
type CryptoMode string

const (
	// CryptoPermissive 宽容模式：签名验证不做真实校验，
	// 形状合法的输入确定性地返回"验证通过"
	CryptoPermissive CryptoMode = "permissive"
	// CryptoStrict 严格模式：签名验证类原生函数以
	// "不支持"中止码中止
	CryptoStrict CryptoMode = "strict"
)

// 系统保留中止码
//
// 合约自身的中止码取值不受限制；以下取值由原生层与脚本执行器
// 在系统路径上使用，效果对比时按中止码等值判定。
const (
	// AbortUnsupportedCrypto 严格模式下签名验证类原生函数的中止码
	AbortUnsupportedCrypto uint64 = 0xFFFF_0001

	// AbortBadCryptoInput 签名验证输入长度非法（两种模式都中止）
	AbortBadCryptoInput uint64 = 0xFFFF_0002

	// AbortInsufficientBalance 拆分金额超过源余额
	AbortInsufficientBalance uint64 = 0xFFFF_0003
)

// NativeConfig 原生函数层配置
type NativeConfig struct {
	// CryptoMode 密码学原生函数模式
	CryptoMode CryptoMode `json:"crypto_mode"`

	// ClockBaseMS 确定性时钟基准（毫秒）
	ClockBaseMS uint64 `json:"clock_base_ms"`

	// ClockTickMS 每次时钟访问的递增步长（毫秒）
	ClockTickMS uint64 `json:"clock_tick_ms"`

	// RandomSeed 确定性随机流种子
	RandomSeed []byte `json:"random_seed,omitempty"`
}

// DefaultNativeConfig 返回默认的原生层配置
func DefaultNativeConfig() NativeConfig {
	return NativeConfig{
		CryptoMode:  CryptoPermissive,
		ClockBaseMS: 1_700_000_000_000,
		ClockTickMS: 1,
		RandomSeed:  []byte("sandvm-deterministic-seed"),
	}
}

// ==================== 调用结果 ====================

// CallOutcome 单次函数调用的结果
//
// 合约中止不产生Go错误：Status 为 ExecutionFailure 且 Abort 非nil。
type CallOutcome struct {
	// Status 调用状态
	Status ExecutionStatus `json:"status"`

	// Abort 合约中止详情（中止时有效）
	Abort *AbortInfo `json:"abort,omitempty"`

	// Results 函数通过 result_emit 发出的结果字节
	Results [][]byte `json:"results,omitempty"`
}

// ==================== 执行轨迹 ====================

// ObjectAccessKind 对象访问种类
type ObjectAccessKind string

const (
	ObjectAccessRead     ObjectAccessKind = "read"
	ObjectAccessWrite    ObjectAccessKind = "write"
	ObjectAccessCreate   ObjectAccessKind = "create"
	ObjectAccessDelete   ObjectAccessKind = "delete"
	ObjectAccessTransfer ObjectAccessKind = "transfer"
)

// NativeTraceEntry 原生函数调用轨迹条目
type NativeTraceEntry struct {
	Seq    int    `json:"seq"`
	Name   string `json:"name"`
	Status uint32 `json:"status"`
}

// ObjectTraceEntry 对象访问轨迹条目
type ObjectTraceEntry struct {
	Seq    int              `json:"seq"`
	ID     ObjectID         `json:"id"`
	Access ObjectAccessKind `json:"access"`
}

// ExecutionTrace 一次执行的完整轨迹
//
// 📋 记录执行期间调用的原生函数、触达的对象与装载的模块，
// 顺序即观察顺序，供调试与确定性验证使用。
type ExecutionTrace struct {
	Natives []NativeTraceEntry `json:"natives,omitempty"`
	Objects []ObjectTraceEntry `json:"objects,omitempty"`
	Modules []ModuleID         `json:"modules,omitempty"`
}

// Append 合并另一份轨迹
func (t *ExecutionTrace) Append(other *ExecutionTrace) {
	if other == nil {
		return
	}
	t.Natives = append(t.Natives, other.Natives...)
	t.Objects = append(t.Objects, other.Objects...)
	t.Modules = append(t.Modules, other.Modules...)
}

// ==================== 错误载体 ====================

// AbortError 合约中止的错误载体
//
// 原生层以该类型携带中止码穿越解释器边界，执行装置
// 识别后折叠为 CallOutcome，不再作为错误向外传播。
type AbortError struct {
	Module   ModuleID
	Function string
	Code     uint64
}

// Error 实现error接口
func (e *AbortError) Error() string {
	return fmt.Sprintf("contract abort: code=%d module=%s function=%s", e.Code, e.Module, e.Function)
}

// Info 转换为中止详情
func (e *AbortError) Info() AbortInfo {
	return AbortInfo{Module: e.Module, Function: e.Function, Code: e.Code}
}

// AsAbortError 从错误链中提取中止载体
func AsAbortError(err error) (*AbortError, bool) {
	var abort *AbortError
	if errors.As(err, &abort) {
		return abort, true
	}
	return nil, false
}

// ExecError 带失败分类的执行错误
type ExecError struct {
	// Kind 失败种类
	Kind FailureKind

	// Err 底层错误
	Err error
}

// NewExecError 构造带分类的执行错误
func NewExecError(kind FailureKind, err error) *ExecError {
	return &ExecError{Kind: kind, Err: err}
}

// ExecErrorf 构造带分类的格式化执行错误
func ExecErrorf(kind FailureKind, format string, args ...interface{}) *ExecError {
	return &ExecError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Error 实现error接口
func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap 支持errors.Is/As链式展开
func (e *ExecError) Unwrap() error {
	return e.Err
}

// FailureKindOf 返回错误对应的失败种类（非执行错误归为内部错误）
func FailureKindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	if _, ok := AsAbortError(err); ok {
		return FailureAbort
	}
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	return FailureInternal
}
