// Package natives 实现合约字节码可调用的宿主函数层
//
// 🎯 **核心职责**：为解释执行的合约提供与沙箱世界交互的全部原语
//
// 📋 **函数家族**：
// - 上下文：ctx_sender / ctx_epoch / ctx_fresh_id
// - 参数与结果：arg_len / arg_read / result_emit
// - 确定性时钟与随机：clock_now_ms / random_bytes
// - 密码学：hash_* 真实计算，crypto_verify_* 按模式放行或中止
// - 对象生命周期：object_new / object_delete / object_transfer /
//   object_freeze / object_share / object_exists
// - 动态字段：field_add / field_contains / field_borrow /
//   field_borrow_mut / field_remove
// - 事件与中止：event_emit / abort
//
// ⚠️ **关键约束**：
// 宿主函数注册进env模块后全程复用，一切逐次执行的状态
// （发送者、计数器、仓库句柄）从ctx动态提取，绝不闭包捕获。
// 内存访问全部做边界检查，越界返回状态码而非Go panic；
// 合约中止先在执行上下文落账，再以陷阱穿出解释器。
package natives

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	vmctx "github.com/sandvm/v1/internal/core/vm/context"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/crypto"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/types"
)

// Natives 宿主函数层
//
// 只持有无状态服务：日志与哈希。逐次执行的可变状态经
// ctx 中的 ExecutionContext 流动。
type Natives struct {
	logger log.Logger
	hasher crypto.HashManager
}

// New 创建宿主函数层
func New(logger log.Logger, hasher crypto.HashManager) *Natives {
	return &Natives{logger: logger, hasher: hasher}
}

// BuildHostFunctions 构建完整的宿主函数映射
//
// 返回的映射交由运行时注册到env模块，只注册一次。
func (n *Natives) BuildHostFunctions() map[string]interface{} {
	fns := make(map[string]interface{})
	for _, family := range []map[string]interface{}{
		n.contextFunctions(),
		n.argFunctions(),
		n.cryptoFunctions(),
		n.objectFunctions(),
		n.fieldFunctions(),
		n.eventFunctions(),
	} {
		for name, fn := range family {
			fns[name] = fn
		}
	}
	return fns
}

// exec 从ctx提取执行上下文
func (n *Natives) exec(ctx context.Context) (*vmctx.ExecutionContext, bool) {
	ec, ok := vmctx.FromContext(ctx)
	if !ok && n.logger != nil {
		n.logger.Error("宿主函数调用缺少执行上下文")
	}
	return ec, ok
}

// readBytes 从线性内存读取字节（带边界检查）
func readBytes(m api.Module, ptr, length uint32) ([]byte, bool) {
	mem := m.Memory()
	if mem == nil {
		return nil, false
	}
	if length == 0 {
		return []byte{}, true
	}
	return mem.Read(ptr, length)
}

// writeBytes 向线性内存写入字节（带边界检查）
func writeBytes(m api.Module, ptr uint32, data []byte) bool {
	mem := m.Memory()
	if mem == nil {
		return false
	}
	if len(data) == 0 {
		return true
	}
	return mem.Write(ptr, data)
}

// readObjectID 从线性内存读取32字节对象ID
func readObjectID(m api.Module, ptr uint32) (types.ObjectID, bool) {
	var id types.ObjectID
	raw, ok := readBytes(m, ptr, 32)
	if !ok {
		return id, false
	}
	copy(id[:], raw)
	return id, true
}

// readAddress 从线性内存读取32字节地址
func readAddress(m api.Module, ptr uint32) (types.Address, bool) {
	var addr types.Address
	raw, ok := readBytes(m, ptr, 32)
	if !ok {
		return addr, false
	}
	copy(addr[:], raw)
	return addr, true
}

// readable 检查一段内存是否可读（用于形状检查，内容即读即弃）
func readable(m api.Module, ptr, length uint32) bool {
	_, ok := readBytes(m, ptr, length)
	return ok
}
