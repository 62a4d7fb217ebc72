package natives

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// contextFunctions 执行上下文与确定性原生函数
//
// 时钟与随机数是确定性合成的：时钟 = 基准 + 步进 × 访问次数，
// 随机流 = 哈希链(种子 ‖ 计数器)。同一配置下两次执行读到
// 完全相同的序列。
func (n *Natives) contextFunctions() map[string]interface{} {
	return map[string]interface{}{
		// ctx_sender - 获取发送者地址（写入WASM内存）
		// 签名: (addr_ptr: u32) -> (status: u32)
		// 写入32字节地址到addr_ptr
		"ctx_sender": func(ctx context.Context, m api.Module, addrPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			if !writeBytes(m, addrPtr, ec.Sender[:]) {
				ec.RecordNative("ctx_sender", StatusMemory)
				return StatusMemory
			}
			ec.RecordNative("ctx_sender", StatusOK)
			return StatusOK
		},

		// ctx_epoch - 获取执行纪元
		// 签名: () -> (epoch: u64)
		// 上下文缺失时返回MaxUint64作哨兵，与纪元0区分
		"ctx_epoch": func(ctx context.Context) uint64 {
			ec, ok := n.exec(ctx)
			if !ok {
				return math.MaxUint64
			}
			ec.RecordNative("ctx_epoch", StatusOK)
			return ec.Epoch
		},

		// ctx_fresh_id - 派生新鲜对象ID（写入WASM内存）
		// 签名: (id_ptr: u32) -> (status: u32)
		// ID = blake2b-256(执行摘要 ‖ LE计数器)，计数器跨命令持续，
		// 保证同一脚本内派生的ID互不重复且可复现
		"ctx_fresh_id": func(ctx context.Context, m api.Module, idPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			id := ec.NextFreshID()
			if !writeBytes(m, idPtr, id[:]) {
				ec.RecordNative("ctx_fresh_id", StatusMemory)
				return StatusMemory
			}
			ec.RecordNative("ctx_fresh_id", StatusOK)
			return StatusOK
		},

		// clock_now_ms - 确定性时钟（epoch毫秒）
		// 签名: () -> (now_ms: u64)
		"clock_now_ms": func(ctx context.Context) uint64 {
			ec, ok := n.exec(ctx)
			if !ok {
				return math.MaxUint64
			}
			now := ec.ClockNowMS()
			ec.RecordNative("clock_now_ms", StatusOK)
			return now
		},

		// random_bytes - 确定性随机字节（写入WASM内存）
		// 签名: (out_ptr: u32, len: u32) -> (status: u32)
		"random_bytes": func(ctx context.Context, m api.Module, outPtr, length uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			buf := ec.RandomBytes(int(length))
			if !writeBytes(m, outPtr, buf) {
				ec.RecordNative("random_bytes", StatusMemory)
				return StatusMemory
			}
			ec.RecordNative("random_bytes", StatusOK)
			return StatusOK
		},
	}
}
