package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/sandvm/v1/internal/config"
	"github.com/sandvm/v1/internal/core/infrastructure/crypto"
	"github.com/sandvm/v1/internal/core/infrastructure/event"
	log "github.com/sandvm/v1/internal/core/infrastructure/log"
	"github.com/sandvm/v1/internal/core/infrastructure/metrics"
	"github.com/sandvm/v1/internal/core/infrastructure/storage"
	"github.com/sandvm/v1/internal/core/replay"
	"github.com/sandvm/v1/internal/core/sandbox"
	cryptoif "github.com/sandvm/v1/pkg/interfaces/infrastructure/crypto"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	runtimeutil "github.com/sandvm/v1/pkg/utils/runtime"
	"go.uber.org/fx"
)

// Framework layers
const (
	// 基础设施层
	LayerInfrastructure = "infrastructure"
	// 通信与数据层
	LayerCommunication = "communication"
	// 业务逻辑层
	LayerBusiness = "business"
	// 应用层
	LayerApplication = "application"
)

// Bootstrap 应用引导程序
type Bootstrap struct {
	opts  *options
	fxApp *fx.App

	// 业务服务实例（启动后由fx生命周期钩子设置）
	env       sandboxif.Environment
	replayer  sandboxif.Replayer
	addresses cryptoif.AddressManager
}

// NewBootstrap 创建引导程序
func NewBootstrap(opts *options) *Bootstrap {
	return &Bootstrap{
		opts: opts,
	}
}

// storeServices 存储业务服务实例（由fx生命周期钩子调用）
func (b *Bootstrap) storeServices(env sandboxif.Environment, replayer sandboxif.Replayer, addresses cryptoif.AddressManager) {
	b.env = env
	b.replayer = replayer
	b.addresses = addresses
}

// GetEnvironment 获取模拟环境实例
func (b *Bootstrap) GetEnvironment() sandboxif.Environment {
	return b.env
}

// GetReplayer 获取回放器实例
func (b *Bootstrap) GetReplayer() sandboxif.Replayer {
	return b.replayer
}

// GetAddressManager 获取地址管理器实例
func (b *Bootstrap) GetAddressManager() cryptoif.AddressManager {
	return b.addresses
}

// SetupInfrastructureLayer 设置基础设施层模块
func (b *Bootstrap) SetupInfrastructureLayer() []fx.Option {
	return []fx.Option{
		config.Module(),  // 1. 配置(不依赖其他)
		log.Module(),     // 2. 日志(依赖配置)
		crypto.Module(),  // 3. 密码学(依赖配置)
		metrics.Module(), // 4. 内存监控(依赖配置和日志)

		// 在基础设施层开始时推进进度
		fx.Invoke(func(lifecycle fx.Lifecycle) {
			lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					// 基础设施启动完成
					return nil
				},
			})
		}),
	}
}

// SetupCommunicationLayer 设置通信与数据层模块
func (b *Bootstrap) SetupCommunicationLayer() []fx.Option {
	return []fx.Option{
		// 通信与数据层模块（依赖基础设施层）
		event.Module(),   // 事件(依赖基础设施)
		storage.Module(), // 存储(依赖基础设施)

		// 在通信与数据层开始时推进进度
		fx.Invoke(func(lifecycle fx.Lifecycle) {
			lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					// 通信与数据层启动完成
					return nil
				},
			})
		}),
	}
}

// SetupBusinessLayer 设置业务逻辑层模块
func (b *Bootstrap) SetupBusinessLayer() []fx.Option {
	// 业务逻辑层模块(依赖通信与数据层)
	// 注意：加载顺序必须遵循模块间的依赖关系，从底层基础模块到上层应用模块
	// 模拟环境 -> 回放服务
	return []fx.Option{
		// 第一层：模拟环境（装载WASM虚拟机、模块注册表与对象存储）
		sandbox.Module(), // 1. 模拟环境（被回放服务依赖）

		// 第二层：回放服务（依赖模拟环境、存储与事件总线）
		replay.Module(), // 2. 链上交易回放（归档客户端+记录缓存+比对）

		// 在业务逻辑层开始时推进进度
		fx.Invoke(func(lifecycle fx.Lifecycle) {
			lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					// 业务逻辑层启动完成
					return nil
				},
			})
		}),
	}
}

// SetupApplicationLayer 设置应用层模块
func (b *Bootstrap) SetupApplicationLayer() []fx.Option {
	// 应用层模块(依赖所有其他层)
	// 命令行入口位于 cmd/sandvm，通过 Start 驱动容器后直接调用业务服务，
	// 不作为fx模块装配
	return []fx.Option{
		AppModule, // 应用核心模块

		// 在启动时存储业务服务引用供App访问器使用
		fx.Invoke(func(env sandboxif.Environment, replayer sandboxif.Replayer, addresses cryptoif.AddressManager, lifecycle fx.Lifecycle) {
			lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					// 存储服务引用到bootstrap实例
					b.storeServices(env, replayer, addresses)
					fmt.Println("✅ 模拟服务已就绪")
					return nil
				},
			})
		}),
	}
}

// SetupModules 设置所有应用模块
func (b *Bootstrap) SetupModules() ([]fx.Option, error) {
	var allModules []fx.Option

	// 按照依赖顺序添加各层模块
	infraModules := b.SetupInfrastructureLayer()
	allModules = append(allModules, infraModules...)

	commModules := b.SetupCommunicationLayer()
	allModules = append(allModules, commModules...)

	businessModules := b.SetupBusinessLayer()
	allModules = append(allModules, businessModules...)

	appModules := b.SetupApplicationLayer()
	allModules = append(allModules, appModules...)

	return allModules, nil
}

// CreateFxApp 创建并配置fx应用
func (b *Bootstrap) CreateFxApp() error {
	// 获取所有模块
	modules, err := b.SetupModules()
	if err != nil {
		return err
	}

	// 配置fx应用选项
	appOptions := []fx.Option{
		// 加载所有模块
		fx.Options(modules...),

		// 禁用fx内部日志
		fx.NopLogger,

		// 生命周期钩子
		fx.Invoke(func(lifecycle fx.Lifecycle) {
			lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					fmt.Println("准备启动应用")
					return nil
				},
				OnStop: func(ctx context.Context) error {
					fmt.Println("准备停止应用")
					return nil
				},
			})
		}),
	}

	// 创建fx应用
	b.fxApp = fx.New(appOptions...)
	return nil
}

// StartApp 启动应用程序
func (b *Bootstrap) StartApp(ctx context.Context) error {
	fmt.Println("正在启动应用...")

	if err := b.fxApp.Start(ctx); err != nil {
		fmt.Printf("启动失败: %v\n", err)
		return fmt.Errorf("启动应用失败: %w", err)
	}

	return nil
}

// StopApp 停止应用程序
func (b *Bootstrap) StopApp(ctx context.Context) error {
	fmt.Println("正在停止应用...")

	if err := b.fxApp.Stop(ctx); err != nil {
		fmt.Printf("停止失败: %v\n", err)
		return fmt.Errorf("停止应用失败: %w", err)
	}

	return nil
}

// validateDependencyInjection 验证依赖注入的完整性
// 检查关键组件是否正确初始化，特别是容易出现空指针的组件
func (b *Bootstrap) validateDependencyInjection() error {
	if b.fxApp == nil {
		return fmt.Errorf("fx应用未初始化")
	}

	// 简单验证：检查fx应用是否正常运行
	// 如果依赖注入有问题，fx应用启动时就会失败
	// 这里主要是记录验证过程，实际的验证由fx框架在启动时完成

	fmt.Println("🔍 正在验证核心组件依赖注入...")
	fmt.Println("   - Environment: 由fx框架在启动时验证")
	fmt.Println("   - Replayer: 由fx框架在启动时验证")
	fmt.Println("   - Logger: 由fx框架在启动时验证")
	fmt.Println("   - EventBus: 由fx框架在启动时验证")
	fmt.Println("   - 所有依赖关系: 由fx框架在启动时验证")

	return nil
}

// BootstrapApp 执行完整的引导过程并返回应用实例
func BootstrapApp(options ...Option) (App, error) {
	// 处理配置选项
	opts := newOptions(options...)

	// 容器环境下按cgroup上限收缩GOMEMLIMIT，显式设置过的环境变量优先
	if applied, limit, err := runtimeutil.ApplyCgroupMemoryLimit(0.8); err == nil && applied {
		fmt.Printf("📊 GOMEMLIMIT 已按cgroup上限设置 (上限 %d MB)\n", limit/1024/1024)
	}

	// 创建引导对象
	bootstrap := NewBootstrap(opts)

	// 创建fx应用
	if err := bootstrap.CreateFxApp(); err != nil {
		return nil, fmt.Errorf("创建应用失败: %w", err)
	}

	// 启动应用 - 使用有超时的启动Context
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer startupCancel()

	// 启动应用组件
	if err := bootstrap.StartApp(startupCtx); err != nil {
		return nil, err
	}

	// 依赖注入完整性检查
	if err := bootstrap.validateDependencyInjection(); err != nil {
		fmt.Printf("⚠️  依赖注入完整性检查失败: %v\n", err)
		fmt.Println("系统将继续运行，但可能存在功能异常")
		// 不返回错误，允许系统继续运行，但记录问题
	} else {
		fmt.Println("✅ 依赖注入完整性检查通过")
	}

	// 创建应用实例
	app := &internalApp{
		fxApp:     bootstrap.fxApp,
		bootstrap: bootstrap,
	}

	return app, nil
}

// WaitForSignal 等待退出信号
func WaitForSignal() os.Signal {
	signals := make(chan os.Signal, 1)
	// 在不同平台上监听不同的信号
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	return <-signals
}
