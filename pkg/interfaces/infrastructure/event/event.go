// Package event 提供沙箱系统的事件总线接口定义
//
// 🎯 **事件总线系统 (Event Bus System)**
//
// 本文件定义了沙箱系统的事件总线接口，支持：
// - 标准事件订阅和发布
// - 同步与异步事件处理
// - 事件历史记录
//
// ⚠️ **确定性约束**：
// 执行语义（效果、轨迹）绝不依赖事件总线；总线只承载
// 生命周期通知与批处理进度等旁路信息。
package event

// EventType 事件类型
type EventType string

// 沙箱生命周期与批处理事件类型
const (
	// EventModuleDeployed 模块部署完成
	EventModuleDeployed EventType = "sandbox.module_deployed"
	// EventScriptExecuted 脚本执行完成（成功或中止）
	EventScriptExecuted EventType = "sandbox.script_executed"
	// EventStateReset 沙箱状态重置
	EventStateReset EventType = "sandbox.state_reset"
	// EventReplayStarted 单笔重放开始
	EventReplayStarted EventType = "replay.started"
	// EventReplayFinished 单笔重放结束
	EventReplayFinished EventType = "replay.finished"
	// EventBatchProgress 批量重放进度
	EventBatchProgress EventType = "replay.batch_progress"
)

// Event 事件接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Data 返回事件数据
	Data() interface{}
}

// EventBus 事件总线接口
//
// 注意：事件总线由DI容器自动管理生命周期
type EventBus interface {
	// Subscribe 订阅事件
	Subscribe(eventType EventType, handler interface{}) error

	// SubscribeAsync 异步订阅事件
	// transactional 为true时同一订阅者的回调串行执行
	SubscribeAsync(eventType EventType, handler interface{}, transactional bool) error

	// SubscribeOnce 一次性订阅事件
	SubscribeOnce(eventType EventType, handler interface{}) error

	// Publish 发布事件
	Publish(eventType EventType, args ...interface{})

	// Unsubscribe 取消订阅
	Unsubscribe(eventType EventType, handler interface{}) error

	// WaitAsync 等待所有异步处理完成
	WaitAsync()

	// HasCallback 检查指定事件类型是否有订阅者
	HasCallback(eventType EventType) bool

	// GetEventHistory 获取指定事件类型的历史记录
	// 如果历史功能未启用或没有历史记录，返回nil
	GetEventHistory(eventType EventType) []interface{}
}
