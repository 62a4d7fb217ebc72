package replay

import (
	"context"

	"go.uber.org/fx"

	replaycfg "github.com/sandvm/v1/internal/config/replay"
	fileconfig "github.com/sandvm/v1/internal/config/storage/file"
	logimpl "github.com/sandvm/v1/internal/core/infrastructure/log"
	"github.com/sandvm/v1/internal/core/infrastructure/storage/file"
	"github.com/sandvm/v1/internal/core/sandbox"
	"github.com/sandvm/v1/pkg/interfaces/config"
	eventif "github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
)

// ModuleParams 回放模块输入依赖
type ModuleParams struct {
	fx.In

	Logger      log.Logger
	Provider    config.Provider
	Env         *sandbox.Environment
	BadgerStore storage.BadgerStore `optional:"true"` // badger缓存后端（可选）
	MemoryStore storage.MemoryStore `optional:"true"` // 记录热缓存（可选）
	EventBus    eventif.EventBus    `optional:"true"` // 事件总线（可选）
}

// ModuleOutput 回放模块输出服务
type ModuleOutput struct {
	fx.Out

	Service  *Service           // 具体类型（CLI需要归档客户端配置）
	Replayer sandboxif.Replayer // 公共接口
	Client   *ArchiveClient     // 归档客户端（连接生命周期由模块管理）
}

// Module 返回回放模块
func Module() fx.Option {
	return fx.Module("replay",
		fx.Provide(ProvideReplayer),
		fx.Invoke(registerArchiveLifecycle),
	)
}

// ProvideReplayer 装配归档客户端、记录缓存与回放服务
//
// 🔄 **缓存后端选择**：
// file 后端使用独立于共享文件存储的目录（ReplayOptions.CacheDir），
// 避免缓存条目与快照等业务文件混放；badger 后端复用共享的
// BadgerStore，条目以前缀隔离。热层始终复用共享 MemoryStore。
func ProvideReplayer(params ModuleParams) ModuleOutput {
	cfg := replaycfg.NewFromOptions(params.Provider.GetReplay())
	opts := cfg.GetOptions()

	logger := logimpl.NewModuleLogger(params.Logger, "replay")

	var files storage.FileStore
	if opts.CacheBackend != cacheBackendBadger && opts.CacheDir != "" {
		fileOpts := params.Provider.GetFile()
		fileOpts.RootPath = opts.CacheDir
		files = file.New(fileconfig.NewFromOptions(fileOpts), logger)
	}

	client := NewArchiveClient(opts)
	cache := NewRecordCache(opts, files, params.BadgerStore, params.MemoryStore, logger)
	service := NewService(logger, cfg, client, cache, params.Env, params.EventBus)

	return ModuleOutput{
		Service:  service,
		Replayer: service,
		Client:   client,
	}
}

// registerArchiveLifecycle 注册归档客户端的关闭钩子
func registerArchiveLifecycle(lc fx.Lifecycle, client *ArchiveClient, logger log.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("正在关闭归档客户端...")
			return client.Close()
		},
	})
}
