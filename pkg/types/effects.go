package types

import "fmt"

// 执行效果类型定义
//
// 🎯 **效果模型**
//
// 效果是一次脚本执行对外可观察的全部结果：最终状态、
// 失败详情（若有）、对象变更清单与事件流。重放比对以
// 效果为比较对象，确定性要求同一输入产生逐字节一致的效果。

// ==================== 执行状态 ====================

// ExecutionStatus 执行最终状态
type ExecutionStatus string

const (
	// ExecutionSuccess 全部命令执行成功并已提交
	ExecutionSuccess ExecutionStatus = "success"
	// ExecutionFailure 执行失败，状态已回滚
	ExecutionFailure ExecutionStatus = "failure"
)

// ==================== 失败分类 ====================

// FailureKind 失败种类
type FailureKind string

const (
	// FailureAbort 合约主动中止（携带模块、函数与中止码）
	FailureAbort FailureKind = "abort"
	// FailureModuleLoad 模块加载失败（缺失或编译失败）
	FailureModuleLoad FailureKind = "module_load"
	// FailureFunctionNotFound 目标函数不存在
	FailureFunctionNotFound FailureKind = "function_not_found"
	// FailureTypeResolution 类型参数解析失败
	FailureTypeResolution FailureKind = "type_resolution"
	// FailureArgument 参数引用非法（越界、元数不足等）
	FailureArgument FailureKind = "argument"
	// FailureStore 对象存取失败（缺失、类型不符、不可变拒写等）
	FailureStore FailureKind = "store"
	// FailureInternal 沙箱内部错误
	FailureInternal FailureKind = "internal"
)

// AbortInfo 合约中止详情
type AbortInfo struct {
	// Module 中止发生的模块
	Module ModuleID `json:"module"`

	// Function 中止发生的函数
	Function string `json:"function"`

	// Code 合约定义的中止码
	Code uint64 `json:"code"`
}

// String 返回中止详情的可读表示
func (a AbortInfo) String() string {
	return fmt.Sprintf("abort %d in %s::%s", a.Code, a.Module, a.Function)
}

// Failure 执行失败详情
type Failure struct {
	// Kind 失败种类
	Kind FailureKind `json:"kind"`

	// Command 失败发生的命令下标（无命令上下文时为-1）
	Command int `json:"command"`

	// Abort 合约中止详情（Kind == FailureAbort 时有效）
	Abort *AbortInfo `json:"abort,omitempty"`

	// Message 人类可读的失败描述
	Message string `json:"message,omitempty"`
}

// String 返回失败详情的可读表示
func (f *Failure) String() string {
	if f == nil {
		return "<nil>"
	}
	if f.Kind == FailureAbort && f.Abort != nil {
		return fmt.Sprintf("command %d: %s", f.Command, f.Abort)
	}
	return fmt.Sprintf("command %d: %s: %s", f.Command, f.Kind, f.Message)
}

// ==================== 事件 ====================

// Event 合约执行期间发出的事件
type Event struct {
	// Seq 脚本内事件序号
	Seq int `json:"seq"`

	// Type 事件类型标签
	Type TypeTag `json:"type"`

	// Module 发出事件的模块
	Module ModuleID `json:"module"`

	// Sender 执行发起者
	Sender Address `json:"sender"`

	// Data 事件负载字节
	Data []byte `json:"data"`
}

// ==================== 效果 ====================

// Effects 一次脚本执行的完整效果
type Effects struct {
	// Status 最终状态
	Status ExecutionStatus `json:"status"`

	// Failure 失败详情（Status == ExecutionFailure 时有效）
	Failure *Failure `json:"failure,omitempty"`

	// Changes 对象变更清单（按对象ID字典序排列，保证确定性输出）
	Changes []ObjectChange `json:"changes"`

	// Events 事件流（按发出顺序）
	Events []Event `json:"events"`

	// GasObject 燃料占位对象ID（重放场景有效）
	GasObject *ObjectID `json:"gas_object,omitempty"`
}

// IsSuccess 判断执行是否成功
func (e *Effects) IsSuccess() bool {
	return e != nil && e.Status == ExecutionSuccess
}

// ChangesOfKind 返回指定种类的变更（Mutated 包含转移/冻结/共享）
func (e *Effects) ChangesOfKind(kind ChangeKind) []ObjectChange {
	var out []ObjectChange
	for _, c := range e.Changes {
		if c.Kind == kind || (kind == ChangeMutated && c.Kind.IsMutation()) {
			out = append(out, c)
		}
	}
	return out
}

// CreatedIDs 返回新建对象ID集合
func (e *Effects) CreatedIDs() []ObjectID {
	return idsOf(e.ChangesOfKind(ChangeCreated))
}

// MutatedIDs 返回修改（含转移/冻结/共享）对象ID集合
func (e *Effects) MutatedIDs() []ObjectID {
	return idsOf(e.ChangesOfKind(ChangeMutated))
}

// DeletedIDs 返回删除对象ID集合
func (e *Effects) DeletedIDs() []ObjectID {
	return idsOf(e.ChangesOfKind(ChangeDeleted))
}

func idsOf(changes []ObjectChange) []ObjectID {
	out := make([]ObjectID, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.ID)
	}
	return out
}

// ==================== 脚本执行结果 ====================

// ScriptState 脚本执行器状态机状态
type ScriptState string

const (
	// ScriptReady 就绪，尚未开始执行
	ScriptReady ScriptState = "ready"
	// ScriptExecuting 正在执行第 N 条命令
	ScriptExecuting ScriptState = "executing"
	// ScriptCompleted 全部命令成功完成
	ScriptCompleted ScriptState = "completed"
	// ScriptAborted 在某条命令处失败终止
	ScriptAborted ScriptState = "aborted"
)

// ScriptResult 脚本执行的完整结果
type ScriptResult struct {
	// State 终态（Completed 或 Aborted）
	State ScriptState `json:"state"`

	// Effects 执行效果（中止时为携带部分轨迹的失败效果）
	Effects *Effects `json:"effects"`

	// CommandResults 每条已执行命令产生的结果值
	CommandResults [][]Value `json:"command_results,omitempty"`

	// Trace 执行轨迹
	Trace *ExecutionTrace `json:"trace,omitempty"`

	// Digest 本次执行的摘要
	Digest Digest `json:"digest"`
}

// IsSuccess 判断脚本是否成功完成
func (r *ScriptResult) IsSuccess() bool {
	return r != nil && r.State == ScriptCompleted && r.Effects.IsSuccess()
}
