// Package clock provides clock interfaces.
package clock

import "time"

// Clock 提供统一的时间源接口（基础设施层接口）
//
// 用于回放计时等墙钟场景，测试中可替换为Mock实现。
// 合约可见的确定性时钟不走此接口，由虚拟机执行上下文
// 内的计数器单独实现。
type Clock interface {
	// Now 获取当前时间
	Now() time.Time

	// Since 计算从指定时间到现在的持续时间
	Since(t time.Time) time.Duration

	// Unix 获取当前Unix时间戳（秒）
	Unix() int64

	// UnixNano 获取当前Unix时间戳（纳秒）
	UnixNano() int64
}
