package sandbox

import (
	"context"

	"go.uber.org/fx"

	sandboxcfg "github.com/sandvm/v1/internal/config/sandbox"
	vmconfig "github.com/sandvm/v1/internal/config/vm"
	logimpl "github.com/sandvm/v1/internal/core/infrastructure/log"
	"github.com/sandvm/v1/pkg/interfaces/config"
	eventif "github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	storageif "github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/types"
	metricsutil "github.com/sandvm/v1/pkg/utils/metrics"
)

// ModuleParams 模拟环境模块输入依赖
type ModuleParams struct {
	fx.In

	Logger      log.Logger
	Provider    config.Provider
	MemoryStore storageif.MemoryStore `optional:"true"` // 编译缓存标记（可选）
	EventBus    eventif.EventBus      `optional:"true"` // 事件总线（可选）
}

// ModuleOutput 模拟环境模块输出服务
type ModuleOutput struct {
	fx.Out

	Env         *Environment          // 具体类型（回放器需要完整生命周期）
	Environment sandboxif.Environment // 公共接口
}

// Module 返回模拟环境模块
func Module() fx.Option {
	return fx.Module("sandbox",
		fx.Provide(ProvideEnvironment),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEnvironment 装配模拟环境
func ProvideEnvironment(params ModuleParams) (ModuleOutput, error) {
	appConfig := params.Provider.GetAppConfig()
	var userSandbox *types.UserSandboxConfig
	var userVM *types.UserVMConfig
	if appConfig != nil {
		userSandbox = appConfig.Sandbox
		userVM = appConfig.VM
	}

	logger := logimpl.NewModuleLogger(params.Logger, "sandbox")
	env, err := New(logger, sandboxcfg.New(userSandbox), vmconfig.New(userVM), params.MemoryStore, params.EventBus)
	if err != nil {
		return ModuleOutput{}, err
	}

	// 注册为内存上报器，对象存储与编译缓存纳入内存监控
	metricsutil.RegisterMemoryReporter(env)

	return ModuleOutput{Env: env, Environment: env}, nil
}

// registerLifecycle 挂接关闭钩子
func registerLifecycle(lc fx.Lifecycle, env *Environment, logger log.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("正在关闭模拟环境...")
			return env.Close(ctx)
		},
	})
}
