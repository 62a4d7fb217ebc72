// Package types provides WASM module type definitions.
package types

// WASM模块相关类型定义
//
// 🎯 **模块制品类型系统**
//
// 合约模块以 WASM 字节码为载体，由 (地址, 模块名) 唯一寻址。
// 注册表持有编译后的制品，供执行沙箱按需实例化。

// ModuleBytes 待注册的模块字节码
type ModuleBytes struct {
	// ID 模块标识符
	ID ModuleID `json:"id"`

	// Bytecode WASM字节码
	Bytecode []byte `json:"bytecode"`
}

// CompiledModule 已通过编译验证的模块制品
//
// 设计说明：
// - 只承载字节码与元数据，不持有wazero编译产物：编译产物与
//   创建它的运行时绑定，批量回放的并行工作者各有自己的运行时，
//   产物经运行时的内容寻址编译缓存按需物化
// - 不缓存导出函数清单，标准用法是实例化后通过
//   api.Module.ExportedFunction(name) 按需查询
type CompiledModule struct {
	// ID 模块标识符
	ID ModuleID `json:"id"`

	// Bytecode 原始WASM字节码（升级比对与重编译用）
	Bytecode []byte `json:"bytecode"`

	// Hash 字节码内容哈希（32字节）
	Hash []byte `json:"hash"`

	// Version 模块版本，注册时为1，每次升级递增
	Version uint32 `json:"version"`

	// CompiledAt 通过编译验证的时间戳（Unix秒）
	CompiledAt int64 `json:"compiled_at"`
}

// ==================== 访问轨迹 ====================

// ModuleAccessOp 注册表访问操作种类
type ModuleAccessOp string

const (
	ModuleAccessLoad    ModuleAccessOp = "load"    // 首次注册
	ModuleAccessGet     ModuleAccessOp = "get"     // 查询命中
	ModuleAccessUpgrade ModuleAccessOp = "upgrade" // 字节码升级
)

// ModuleAccess 注册表访问轨迹条目
//
// Seq 为注册表内单调递增的观察序号，记录顺序即观察顺序。
type ModuleAccess struct {
	Seq int64          `json:"seq"`
	ID  ModuleID       `json:"id"`
	Op  ModuleAccessOp `json:"op"`
}
