// Package sandbox 提供模拟环境层的公共接口定义
//
// 🏖️ **模拟环境契约 (Sandbox Public Contracts)**
//
// 本包定义离线沙箱对外暴露的稳定接口：
// - Environment：模拟环境，持有规范对象存储并编排脚本执行
// - Replayer：交易回放器，对照链上记录校验本地执行效果
//
// 🏗️ **设计原则**：
// - 仅依赖 pkg/types，不引入任何实现细节
// - 环境是规范存储的唯一所有者，外部通过显式借用访问
// - 状态重置保留已部署模块，只清空对象与计数器
package sandbox

import (
	"context"

	"github.com/sandvm/v1/pkg/types"
)

// ExecOptions 单次脚本执行的选项
type ExecOptions struct {
	Sender types.Address // 发送者地址（零值时使用环境默认发送者）
	Epoch  uint64        // 纪元号（0时使用环境当前纪元）

	// Digest 执行摘要（零值时由环境派生）
	//
	// 新鲜对象ID从摘要派生，回放时传入链上交易摘要
	// 可复现记录中的对象ID序列。
	Digest types.Digest

	// GasBudget 合成燃料占位对象的初始余额
	GasBudget uint64

	// GasRef 预置燃料对象引用（回放路径），nil时按需合成
	GasRef *types.ObjectRef
}

// Environment 模拟环境公共接口
//
// 🎯 **核心职责**：
//   - 持有规范对象存储、模块注册表与执行引擎
//   - Deploy/Execute/ResetState 三大生命周期操作
//   - 为测试安排提供对象播种辅助方法
//
// ⚠️ **注意**：
//   - ResetState 清空对象并重置计数器，已部署模块保留
//   - 同一环境上的执行是串行的，并发调用会阻塞等待
type Environment interface {
	// Deploy 在指定地址下发布一批命名模块
	//
	// 参数：
	//   - ctx: 上下文
	//   - address: 发布地址
	//   - modules: 模块名 → 字节码
	//
	// 返回：
	//   - error: 字节码无效或与已装载模块冲突时返回错误
	Deploy(ctx context.Context, address types.Address, modules map[string][]byte) error

	// Execute 执行一个脚本并返回完整结果
	//
	// 构建脚本级执行上下文（发送者、纪元、新鲜度计数器），
	// 逐条执行命令，提交或回滚对象存储，产出效果与追踪。
	//
	// 参数：
	//   - ctx: 上下文
	//   - script: 待执行脚本（输入 + 命令序列）
	//   - opts: 执行选项
	//
	// 返回：
	//   - *types.ScriptResult: 状态机终态、效果、逐命令结果与追踪
	//   - error: 仅基础设施故障；脚本中止体现在结果的状态里
	Execute(ctx context.Context, script *types.Script, opts ExecOptions) (*types.ScriptResult, error)

	// SeedObject 直接写入一个对象（测试安排用）
	//
	// 绕过脚本流程向规范存储写入对象，版本从1开始。
	SeedObject(ctx context.Context, obj *types.Object) error

	// SeedCoin 铸造一枚指定余额的代币对象（测试安排用）
	//
	// 返回新建对象的ID。
	SeedCoin(ctx context.Context, owner types.Address, balance uint64) (types.ObjectID, error)

	// ReadObject 读取规范存储中的对象当前状态
	ReadObject(ctx context.Context, id types.ObjectID) (*types.Object, error)

	// ResetState 重置环境状态
	//
	// 清空全部对象与新鲜度计数器，已部署模块与访问追踪设施保留。
	ResetState(ctx context.Context) error

	// Epoch 返回当前纪元号
	Epoch() uint64

	// AdvanceEpoch 将纪元号递增1并返回新值
	AdvanceEpoch() uint64
}
