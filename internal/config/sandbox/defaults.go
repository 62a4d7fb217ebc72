// Package sandbox provides default configuration values for the simulation environment.
package sandbox

// 模拟环境配置默认值
const (
	// defaultSender 默认发送者地址
	// 原因：固定的可识别测试地址，脚本未指定发送者时使用
	defaultSender = "0x000000000000000000000000000000000000000000000000000000000000cafe"

	// defaultEpoch 默认初始纪元号设为0
	// 原因：与新建链状态一致，回放时由交易记录覆盖
	defaultEpoch = uint64(0)
)
