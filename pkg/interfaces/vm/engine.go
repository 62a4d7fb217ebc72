package vm

import (
	"context"

	"github.com/sandvm/v1/pkg/types"
)

// Engine 执行引擎公共接口
//
// 🎯 **核心职责**：
//   - 完成单次合约函数调用的完整生命周期：
//     查找模块 → 实例化 → 解析导出函数 → 解析类型参数 → 调用 → 收集结果
//   - 区分基础设施失败与合约预期中止：
//     前者作为Go错误返回，后者封装进 CallOutcome
//
// 📋 **上下文约定**：
//   - 调用方须先通过执行上下文辅助函数将本次执行的
//     ExecutionContext 附加到 ctx，宿主函数从 ctx 中取回它
//   - 参数与结果经由宿主函数在引擎与模块之间传输
//
// 🔄 **调用流程**：
//  1. 脚本执行器构建执行上下文并附加到 ctx
//  2. 调用 Call 执行单条命令
//  3. 检查 CallOutcome.Status 区分成功与中止
type Engine interface {
	// Call 调用指定模块的导出函数
	//
	// 📋 **参数**:
	//   - ctx: 已附加执行上下文的上下文
	//   - module: 模块ID
	//   - function: 导出函数名
	//   - typeArgs: 类型参数列表（对照已知类型域解析）
	//   - args: BCS序列化的调用参数
	//
	// 🔧 **返回值**:
	//   - *types.CallOutcome: 调用产物
	//     - Status: Success 或 Aborted
	//     - Abort: 中止详情（模块、函数、状态码）
	//     - Results: 模块经由宿主函数发射的返回值
	//   - error: 模块缺失、函数缺失、类型解析失败或运行时故障
	Call(ctx context.Context, module types.ModuleID, function string, typeArgs []types.TypeTag, args [][]byte) (*types.CallOutcome, error)

	// Close 关闭引擎并释放运行时资源
	Close(ctx context.Context) error
}
