package event

// 事件系统默认配置值
// 这些默认值基于事件驱动系统的最佳实践和性能考虑
const (
	// === 基础事件配置 ===

	// defaultEnabled 默认启用事件系统
	// 原因：事件总线承载沙箱生命周期通知和批量重放进度
	// 默认启用保证CLI和测试能够观察执行过程
	defaultEnabled = true

	// defaultBufferSize 默认事件缓冲区大小设为1000
	// 原因：1000个事件的缓冲区能处理批量重放时的突发进度事件
	// 平衡内存使用和事件处理能力，避免因缓冲区满而丢失事件
	defaultBufferSize = 1000

	// defaultMaxWorkers 默认事件处理工作者数量设为10
	// 原因：10个工作者能够并行处理多个事件，提高系统响应性
	// 避免单一工作者成为瓶颈，同时控制资源消耗
	defaultMaxWorkers = 10

	// defaultMaxSubscribers 默认最大订阅者数量设为1000
	// 原因：限制订阅者数量避免事件分发成为性能瓶颈
	defaultMaxSubscribers = 1000

	// === 历史记录配置 ===

	// defaultEnableHistory 默认启用事件历史记录
	// 原因：历史记录让测试和CLI能够在事件发生后查询执行过程
	// 事件总线不参与执行语义，历史只是旁路观测数据
	defaultEnableHistory = true

	// defaultHistorySize 默认单类型历史条数设为100
	// 原因：100条覆盖一次批量重放的进度事件序列
	// 有界保留避免长时间运行时历史无限增长
	defaultHistorySize = 100
)
