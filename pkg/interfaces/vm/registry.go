// Package vm 提供虚拟机层的公共接口定义
//
// 📦 **模块注册表与执行引擎契约 (VM Public Contracts)**
//
// 本包定义沙箱虚拟机层对外暴露的稳定接口：
// - Registry：模块注册表，负责字节码的装载、查找、升级与访问追踪
// - Engine：执行引擎，负责单次函数调用的完整生命周期
//
// 🏗️ **设计原则**：
// - 仅依赖 pkg/types，不引入任何实现细节
// - 实现位于 internal/core，经由 fx 装配后以本接口形态注入
// - 合约主动中止(abort)是正常产物而非Go错误
package vm

import (
	"context"

	"github.com/sandvm/v1/pkg/types"
)

// Registry 模块注册表公共接口
//
// 🎯 **核心职责**：
//   - 按 (地址, 名称) 装载与查找合约模块字节码
//   - 幂等装载：相同ID相同字节码的重复装载为无操作
//   - 升级管理：版本号单调递增，旧编译产物失效
//   - 访问追踪：按观察顺序记录每次装载/查找/升级
//
// ⚠️ **注意**：
//   - 相同ID不同字节码的装载会失败，升级是唯一的替换途径
//   - 查找永不修改字节码，注册表在环境状态重置后仍然保留
type Registry interface {
	// Load 装载一批模块字节码
	//
	// 装载时会通过运行时编译一次以验证字节码合法性。
	//
	// 参数：
	//   - ctx: 上下文
	//   - modules: 待装载的模块列表（ID + 字节码）
	//
	// 返回：
	//   - error: 字节码无效或与已装载模块冲突时返回错误
	Load(ctx context.Context, modules []types.ModuleBytes) error

	// Get 按ID查找模块
	//
	// 每次查找都会记录一条访问追踪。
	//
	// 参数：
	//   - ctx: 上下文
	//   - id: 模块ID
	//
	// 返回：
	//   - *types.CompiledModule: 已编译模块（含字节码与版本）
	//   - error: 模块不存在时返回错误
	Get(ctx context.Context, id types.ModuleID) (*types.CompiledModule, error)

	// Has 判断模块是否已装载（不产生访问追踪）
	Has(id types.ModuleID) bool

	// List 返回全部已装载模块的ID（确定性排序）
	List() []types.ModuleID

	// Upgrade 升级模块字节码
	//
	// 替换字节码并递增版本号，旧的编译缓存条目同步失效。
	//
	// 参数：
	//   - ctx: 上下文
	//   - id: 模块ID（必须已装载）
	//   - bytecode: 新字节码
	//
	// 返回：
	//   - error: 模块不存在或新字节码无效时返回错误
	Upgrade(ctx context.Context, id types.ModuleID, bytecode []byte) error

	// AccessTrace 返回按观察顺序排列的访问记录
	AccessTrace() []types.ModuleAccess

	// ResetTrace 清空访问记录（模块本身保留）
	ResetTrace()

	// Clone 创建只读快照
	//
	// 快照与原注册表共享已编译产物，供批量回放的并行工作者使用。
	Clone() Registry
}
