// Package engine 实现执行装置：装载模块、解析函数与类型参数、驱动解释器
//
// 🎯 **核心职责**：把一次函数调用从模块ID一路送进wazero并收回结果
//
// 📋 **调用流程**：
//  1. 经注册表取编译模块（缺失/编译失败 → 模块装载错误）
//  2. 实例化（宿主函数已在构造时注册进env模块）
//  3. 解析导出函数（缺失 → 函数不存在错误）
//  4. 解析类型参数（结构类型必须指向已装载模块）
//  5. 调用；合约中止折叠为调用结果
//  6. 从执行上下文的结果槽位收取返回值
//
// ⚠️ **错误边界**：
// 基础设施故障（实例化失败、超时）以error向上传播；
// 合约中止是预期结果，折叠进CallOutcome，error为nil。
package engine

import (
	"context"
	"errors"
	"fmt"

	vmctx "github.com/sandvm/v1/internal/core/vm/context"
	"github.com/sandvm/v1/internal/core/vm/natives"
	"github.com/sandvm/v1/internal/core/vm/runtime"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/interfaces/vm"
	"github.com/sandvm/v1/pkg/types"
)

// Service 执行装置
type Service struct {
	logger   log.Logger
	runtime  *runtime.Runtime
	registry vm.Registry
}

// 确保Service实现vm.Engine接口
var _ vm.Engine = (*Service)(nil)

// New 创建执行装置并注册宿主函数
//
// 宿主函数在此一次性注册进env模块；后续所有调用复用同一批
// 函数，各自从ctx提取执行上下文。
func New(logger log.Logger, rt *runtime.Runtime, registry vm.Registry, nats *natives.Natives) (*Service, error) {
	if err := rt.RegisterHostFunctions(nats.BuildHostFunctions()); err != nil {
		return nil, fmt.Errorf("注册宿主函数: %w", err)
	}
	return &Service{
		logger:   logger,
		runtime:  rt,
		registry: registry,
	}, nil
}

// Call 执行一次合约函数调用
//
// ctx必须已携带执行上下文（脚本执行器负责装配）。
// 返回值语义：
//   - (outcome, nil)：执行有了结论——成功或合约中止
//   - (nil, err)：基础设施故障，本次调用没有合约语义上的结论
func (s *Service) Call(ctx context.Context, module types.ModuleID, function string, typeArgs []types.TypeTag, args [][]byte) (*types.CallOutcome, error) {
	ec, ok := vmctx.FromContext(ctx)
	if !ok {
		return nil, types.ExecErrorf(types.FailureInternal, "调用缺少执行上下文")
	}

	// 1. 取编译模块
	compiled, err := s.registry.Get(ctx, module)
	if err != nil {
		return nil, types.NewExecError(types.FailureModuleLoad, fmt.Errorf("装载模块 %s: %w", module, err))
	}
	ec.RecordModule(module)

	// 2. 类型参数解析（在实例化之前，失败时不浪费实例）
	if err := s.resolveTypeArgs(ec, typeArgs); err != nil {
		return nil, err
	}

	// 3. 物化编译产物并实例化
	// 编译产物与运行时绑定，经本装置运行时的内容寻址缓存取得：
	// 注册表装载时已验证过字节码，这里通常是缓存命中
	wazeroCompiled, err := s.runtime.Compile(ctx, compiled.Bytecode)
	if err != nil {
		return nil, types.NewExecError(types.FailureModuleLoad, fmt.Errorf("编译模块 %s: %w", module, err))
	}
	instance, err := s.runtime.Instantiate(ctx, wazeroCompiled, compiled.Hash)
	if err != nil {
		return nil, types.NewExecError(types.FailureModuleLoad, fmt.Errorf("实例化模块 %s: %w", module, err))
	}
	defer func() {
		if cerr := s.runtime.CloseInstance(context.Background(), instance); cerr != nil && s.logger != nil {
			s.logger.Warnf("销毁实例失败: %v", cerr)
		}
	}()

	// 4. 解析导出函数
	fn := instance.ExportedFunction(function)
	if fn == nil {
		return nil, types.ExecErrorf(types.FailureFunctionNotFound, "模块 %s 未导出函数 %q", module, function)
	}
	if def := fn.Definition(); len(def.ParamTypes()) != 0 {
		// 合约入口不携带wasm参数，参数经arg_read原生函数读取
		return nil, types.ExecErrorf(types.FailureFunctionNotFound, "函数 %s::%s 的签名携带wasm参数，不是合约入口", module, function)
	}

	// 5. 装配命令槽位并调用
	ec.BeginCommand(module, function, args)

	callCtx := ctx
	if timeout := s.runtime.CallTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, callErr := fn.Call(callCtx)

	// 6. 结论折叠：先看落账的中止，再看错误链，最后才是基础设施故障
	if abort := ec.PendingAbort; abort != nil {
		if s.logger != nil {
			s.logger.Debugf("合约中止: %s", abort.Info())
		}
		info := abort.Info()
		return &types.CallOutcome{
			Status:  types.ExecutionFailure,
			Abort:   &info,
			Results: nil,
		}, nil
	}
	if callErr != nil {
		if abort, ok := types.AsAbortError(callErr); ok {
			info := abort.Info()
			return &types.CallOutcome{Status: types.ExecutionFailure, Abort: &info}, nil
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, types.NewExecError(types.FailureInternal, fmt.Errorf("执行超时: %s::%s: %w", module, function, callErr))
		}
		return nil, types.NewExecError(types.FailureInternal, fmt.Errorf("执行 %s::%s: %w", module, function, callErr))
	}

	return &types.CallOutcome{
		Status:  types.ExecutionSuccess,
		Results: ec.TakeResults(),
	}, nil
}

// resolveTypeArgs 解析类型参数
//
// 原生类型与向量总是可解析；结构类型必须指向注册表中
// 已装载的模块，解析成功的模块计入执行轨迹。
func (s *Service) resolveTypeArgs(ec *vmctx.ExecutionContext, typeArgs []types.TypeTag) error {
	for i := range typeArgs {
		if err := s.resolveTag(ec, &typeArgs[i]); err != nil {
			return types.NewExecError(types.FailureTypeResolution, fmt.Errorf("类型参数[%d]: %w", i, err))
		}
	}
	return nil
}

func (s *Service) resolveTag(ec *vmctx.ExecutionContext, tag *types.TypeTag) error {
	if tag.IsZero() {
		return fmt.Errorf("类型标签为空")
	}
	if tag.Kind == types.TypeKindVector {
		if tag.Elem == nil {
			return fmt.Errorf("向量缺少元素类型")
		}
		return s.resolveTag(ec, tag.Elem)
	}
	if !tag.IsStruct() {
		return nil
	}
	owner := types.ModuleID{Address: tag.Address, Name: tag.Module}
	if !s.registry.Has(owner) {
		return fmt.Errorf("结构类型 %s 指向未装载模块 %s", tag, owner)
	}
	ec.RecordModule(owner)
	for i := range tag.TypeParams {
		if err := s.resolveTag(ec, &tag.TypeParams[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭执行装置与底层运行时
func (s *Service) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}
