package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandvm/v1/pkg/interfaces/config"
	cryptoif "github.com/sandvm/v1/pkg/interfaces/infrastructure/crypto"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
	"go.uber.org/fx"
)

// AppModule 应用模块定义
var AppModule = fx.Options(
	// 提供应用配置选项，供config模块使用
	fx.Provide(ProvideAppOptions),
)

// ProvideAppOptions 提供应用配置选项实例
// 这个函数为依赖注入系统提供config.AppOptions接口的实现
func ProvideAppOptions(lifecycle fx.Lifecycle) config.AppOptions {
	fmt.Println("🔧 开始加载应用配置...")

	// 尝试从配置文件加载配置（支持自定义路径与嵌入配置）
	appOptions := loadConfig()

	// 在应用启动时记录日志
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			fmt.Println("✅ 应用配置选项已初始化")
			return nil
		},
	})

	return appOptions
}

// 🔧 零值陷阱处理说明：
// 为了区分"用户未设置"和"用户设置为零值"，配置结构使用指针类型：
// - nil: 表示用户未在配置文件中设置该字段，将使用系统默认值
// - &value: 表示用户明确设置了该值，即使是零值（如0、false、""）也会被采用
//
// 示例：
// "gas_tolerance": 0  → 用户明确要求燃料比对零容差
// 省略"gas_tolerance" → 使用系统默认容差
//
// 这种设计避免了以下问题：
// 1. 用户想设置0但被默认值覆盖
// 2. 用户想设置false但被默认的true覆盖
// 3. 用户想设置空字符串但被默认字符串覆盖

// loadConfig 解析应用配置并准备数据目录
func loadConfig() config.AppOptions {
	// 首先创建默认配置
	defaultOptions := newOptions()
	defaultOptions.appConfig = resolveAppConfig()

	// 根据配置自动创建数据目录
	if err := createDataDirectories(defaultOptions); err != nil {
		fmt.Printf("⚠️  创建数据目录失败: %v\n", err)
		// 不返回错误，允许系统继续运行，但记录问题
	}

	return defaultOptions
}

// resolveAppConfig 按优先级解析配置：嵌入配置 > 配置文件 > 默认值
// 任何一步失败都回落默认配置，最后套用编程式覆盖项
func resolveAppConfig() *types.AppConfig {
	appConfig := &types.AppConfig{}

	if data := configPayload(); data != nil {
		parsed := &types.AppConfig{}
		if err := json.Unmarshal(data, parsed); err != nil {
			fmt.Printf("解析配置文件失败: %v，使用默认配置\n", err)
		} else {
			appConfig = parsed
			fmt.Println("配置应用完成：已使用统一配置结构")
		}
	}

	applyConfigOverrides(appConfig)
	return appConfig
}

// configPayload 取回原始配置内容，嵌入配置优先于配置文件
func configPayload() []byte {
	if len(globalEmbeddedConfig) > 0 {
		fmt.Println("已使用嵌入配置")
		return globalEmbeddedConfig
	}

	// 确定配置文件路径
	configPath := getConfigFilePath()

	// 检查配置文件是否存在
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("配置文件 %s 不存在，使用默认配置\n", configPath)
		return nil
	}

	// 读取文件内容
	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Printf("读取配置文件失败: %v，使用默认配置\n", err)
		return nil
	}

	fmt.Printf("已成功加载配置文件: %s\n", configPath)
	return data
}

// applyConfigOverrides 套用通过Option设置的节级覆盖
// 覆盖以节为单位整体替换，与配置文件的字段级合并区分开
func applyConfigOverrides(appConfig *types.AppConfig) {
	overrides := globalConfigOverrides
	if overrides == nil {
		return
	}

	if overrides.VM != nil {
		appConfig.VM = overrides.VM
	}
	if overrides.Sandbox != nil {
		appConfig.Sandbox = overrides.Sandbox
	}
	if overrides.Replay != nil {
		appConfig.Replay = overrides.Replay
	}
	if overrides.Log != nil {
		appConfig.Log = overrides.Log
	}
}

// createDataDirectories 根据配置自动创建数据目录结构
func createDataDirectories(opts config.AppOptions) error {
	// 获取配置信息
	appConfig := opts.GetAppConfig()
	if appConfig == nil {
		return fmt.Errorf("无法获取应用配置")
	}

	var directories []string

	// 1. 创建数据根目录
	if appConfig.DataDir != nil && *appConfig.DataDir != "" {
		directories = append(directories, *appConfig.DataDir)
		fmt.Printf("📁 检测到数据目录: %s\n", *appConfig.DataDir)
	}

	// 2. 创建存储目录
	if appConfig.Storage != nil {
		if appConfig.Storage.File != nil && appConfig.Storage.File.RootPath != nil {
			directories = append(directories, *appConfig.Storage.File.RootPath)
			fmt.Printf("📁 检测到文件存储路径: %s\n", *appConfig.Storage.File.RootPath)
		}
		if appConfig.Storage.Badger != nil && appConfig.Storage.Badger.Dir != nil {
			directories = append(directories, *appConfig.Storage.Badger.Dir)
			fmt.Printf("💾 检测到Badger存储路径: %s\n", *appConfig.Storage.Badger.Dir)
		}
	}

	// 3. 创建日志目录
	if appConfig.Log != nil && appConfig.Log.Dir != nil {
		directories = append(directories, *appConfig.Log.Dir)
		fmt.Printf("📝 检测到日志路径: %s\n", *appConfig.Log.Dir)
	}

	// 4. 创建回放缓存目录
	if appConfig.Replay != nil && appConfig.Replay.CacheDir != nil {
		directories = append(directories, *appConfig.Replay.CacheDir)
		fmt.Printf("🔄 检测到回放缓存路径: %s\n", *appConfig.Replay.CacheDir)
	}

	// 创建所有目录
	for _, dir := range directories {
		if dir == "" {
			continue
		}

		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("创建目录 %s 失败: %v", dir, err)
		}

		fmt.Printf("✅ 目录已创建: %s\n", dir)
	}

	if len(directories) > 0 {
		fmt.Printf("🎯 共创建 %d 个数据目录\n", len(directories))
	}

	return nil
}

// App 是模拟沙箱应用的对外接口
type App interface {
	// Stop 停止应用
	Stop() error

	// Wait 等待应用收到退出信号
	Wait()

	// GetEnvironment 获取模拟环境实例
	GetEnvironment() sandboxif.Environment

	// GetReplayer 获取回放器实例
	GetReplayer() sandboxif.Replayer

	// GetAddressManager 获取地址管理器实例
	GetAddressManager() cryptoif.AddressManager
}

// internalApp 模拟沙箱应用的内部实现
type internalApp struct {
	fxApp     *fx.App
	bootstrap *Bootstrap
}

// Stop 停止应用
func (a *internalApp) Stop() error {
	fmt.Println("🛑 停止应用...")

	// 停止fx应用（包括所有生命周期钩子）
	// 增加超时时间，确保数据库有足够时间完成同步和关闭
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return a.bootstrap.StopApp(ctx)
}

// Wait 等待应用收到退出信号
func (a *internalApp) Wait() {
	fmt.Println("🔄 应用正在运行，按 Ctrl+C 停止...")

	// 创建信号通道
	signals := make(chan os.Signal, 1)

	// 监听中断信号和终止信号
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	// 阻塞等待信号
	sig := <-signals
	fmt.Printf("\n🛑 收到信号 %v，正在优雅退出...\n", sig)

	// 调用Stop方法停止应用
	if err := a.Stop(); err != nil {
		fmt.Printf("⚠️ 停止应用时出错: %v\n", err)
	}
}

// GetEnvironment 获取模拟环境实例
func (a *internalApp) GetEnvironment() sandboxif.Environment {
	return a.bootstrap.GetEnvironment()
}

// GetReplayer 获取回放器实例
func (a *internalApp) GetReplayer() sandboxif.Replayer {
	return a.bootstrap.GetReplayer()
}

// GetAddressManager 获取地址管理器实例
func (a *internalApp) GetAddressManager() cryptoif.AddressManager {
	return a.bootstrap.GetAddressManager()
}

// Start 启动模拟沙箱应用
func Start(appOptions ...Option) (App, error) {
	// 处理选项
	opts := newOptions(appOptions...)

	// 如果指定了配置文件路径，设置全局变量
	if opts.configFilePath != "" {
		SetConfigFilePath(opts.configFilePath)
	}

	// 嵌入配置与节级覆盖通过全局变量传递给容器内的配置装载
	if len(opts.embeddedConfig) > 0 {
		globalEmbeddedConfig = opts.embeddedConfig
	}
	globalConfigOverrides = opts.appConfig

	return BootstrapApp(appOptions...)
}

// globalConfigPath 全局配置文件路径变量
var globalConfigPath string

// globalEmbeddedConfig 嵌入配置内容，优先于配置文件
var globalEmbeddedConfig []byte

// globalConfigOverrides 编程式节级覆盖，最后套用
var globalConfigOverrides *types.AppConfig

// SetConfigFilePath 设置全局配置文件路径
func SetConfigFilePath(path string) {
	globalConfigPath = path
}

// getConfigFilePath 获取配置文件路径
func getConfigFilePath() string {
	// 1. 优先使用环境变量 SVM_CONFIG_PATH
	if envPath := os.Getenv("SVM_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	// 2. 其次使用全局变量（通过SetConfigFilePath设置）
	if globalConfigPath != "" {
		return globalConfigPath
	}

	// 3. 最后使用默认配置路径
	return "configs/sandvm.json"
}
