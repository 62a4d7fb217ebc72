// 基于asaskevich/EventBus的事件总线实现
// 承载沙箱生命周期通知与批量重放进度等旁路信息

package event

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
	eventconfig "github.com/sandvm/v1/internal/config/event"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
)

// EventBus 是基于asaskevich/EventBus的实现
//
// 🎯 **设计要点**：
// - 保持与底层asaskevich/EventBus的完全兼容
// - 可选的有界历史记录，供测试和CLI事后查询
// - 执行语义（效果、轨迹）绝不依赖事件总线
type EventBus struct {
	// ================== 基础组件 ==================
	bus    evbus.Bus           // 底层事件总线
	config *eventconfig.Config // 配置

	// ================== 历史记录 ==================
	historyMu    sync.RWMutex                      // 历史记录锁
	eventHistory map[event.EventType][]interface{} // 历史事件存储
}

// New 创建事件总线实例
// 所有事件总线实例必须通过此函数创建，确保配置被正确应用
func New(config *eventconfig.Config) event.EventBus {
	return &EventBus{
		bus:          evbus.New(),
		config:       config,
		eventHistory: make(map[event.EventType][]interface{}),
	}
}

// Subscribe 实现订阅
func (eb *EventBus) Subscribe(eventType event.EventType, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil // 如果事件系统未启用，静默成功
	}
	return eb.bus.Subscribe(string(eventType), handler)
}

// SubscribeAsync 实现异步订阅
func (eb *EventBus) SubscribeAsync(eventType event.EventType, handler interface{}, transactional bool) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	return eb.bus.SubscribeAsync(string(eventType), handler, transactional)
}

// SubscribeOnce 实现一次性订阅
func (eb *EventBus) SubscribeOnce(eventType event.EventType, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	return eb.bus.SubscribeOnce(string(eventType), handler)
}

// Publish 实现发布
func (eb *EventBus) Publish(eventType event.EventType, args ...interface{}) {
	if !eb.config.IsEnabled() {
		return
	}

	eb.saveEventToHistory(eventType, args)

	eb.bus.Publish(string(eventType), args...)
}

// saveEventToHistory 保存事件到有界历史记录
func (eb *EventBus) saveEventToHistory(eventType event.EventType, args []interface{}) {
	if !eb.config.IsHistoryEnabled() {
		return
	}

	eb.historyMu.Lock()
	defer eb.historyMu.Unlock()

	history := eb.eventHistory[eventType]
	if len(args) == 1 {
		history = append(history, args[0])
	} else {
		history = append(history, args)
	}

	// 超出容量时丢弃最旧的记录
	if max := eb.config.GetHistorySize(); len(history) > max {
		history = history[len(history)-max:]
	}
	eb.eventHistory[eventType] = history
}

// GetEventHistory 获取指定类型的事件历史
func (eb *EventBus) GetEventHistory(eventType event.EventType) []interface{} {
	if !eb.config.IsHistoryEnabled() {
		return nil
	}

	eb.historyMu.RLock()
	defer eb.historyMu.RUnlock()

	history := eb.eventHistory[eventType]
	if len(history) == 0 {
		return nil
	}

	// 返回拷贝，避免调用方修改内部切片
	out := make([]interface{}, len(history))
	copy(out, history)
	return out
}

// Unsubscribe 取消订阅
func (eb *EventBus) Unsubscribe(eventType event.EventType, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	return eb.bus.Unsubscribe(string(eventType), handler)
}

// WaitAsync 等待异步处理完成
func (eb *EventBus) WaitAsync() {
	if !eb.config.IsEnabled() {
		return
	}
	eb.bus.WaitAsync()
}

// HasCallback 检查是否有回调
func (eb *EventBus) HasCallback(eventType event.EventType) bool {
	if !eb.config.IsEnabled() {
		return false
	}
	return eb.bus.HasCallback(string(eventType))
}
