// Package runtime 封装wazero WebAssembly运行时
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	vmconfig "github.com/sandvm/v1/internal/config/vm"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
	"github.com/sandvm/v1/pkg/utils"
)

// Runtime 基于wazero的确定性WASM运行时
//
// 🎯 **核心职责**：封装wazero运行时，提供模块编译、实例化与销毁能力
//
// 基于 github.com/tetratelabs/wazero v1.9.0 实现。
//
// 📋 **设计特点**：
// - 编译缓存：按字节码SHA-256缓存已编译模块，重复装载零开销
// - 宿主函数只注册一次：env模块不允许重复实例化，
//   每次执行的状态一律从ctx中动态提取
// - 确定性隔离：不实例化WASI，合约只能通过env宿主函数观察世界，
//   时钟与随机数由原生层确定性合成
// - 超时中断：启用CloseOnContextDone，ctx超时能真正打断死循环字节码
//
// 🔗 **依赖关系**：
// - wazero：WebAssembly运行时引擎
// - storage.MemoryStore：编译缓存标记存储（跨组件命中判定）
type Runtime struct {
	logger log.Logger

	// wazero运行时实例
	runtime wazero.Runtime

	// 编译缓存标记（可序列化的验证条目，不承载编译产物本体）
	cache storage.MemoryStore

	// 进程内编译模块缓存（真实可复用对象，避免重复编译）
	compiled      sync.Map // map[string]wazero.CompiledModule
	compiledCount int
	compiledMutex sync.Mutex

	// 宿主函数注册状态
	hostRegistered bool
	hostMutex      sync.Mutex

	// 实例名序号（进程内单调递增，避免同名模块实例冲突）
	instanceSeq uint64

	opts *vmconfig.VMOptions
}

// New 创建wazero运行时
//
// 📋 **参数说明**：
//   - logger: 日志服务
//   - cfg: 虚拟机配置（编译模式、内存页上限、超时）
//   - cache: 编译缓存标记存储（可为nil，表示不记录标记）
func New(logger log.Logger, cfg *vmconfig.Config, cache storage.MemoryStore) *Runtime {
	opts := cfg.GetOptions()

	ctx := context.Background()
	rc := wazero.NewRuntimeConfig()
	if !opts.UseCompiler {
		rc = wazero.NewRuntimeConfigInterpreter()
	}
	if opts.MaxMemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(uint32(opts.MaxMemoryPages))
	}
	// ctx取消/超时时强制关闭执行中的模块，否则死循环字节码无法被打断
	rc = rc.WithCloseOnContextDone(true)
	if opts.UseCompiler {
		rc = rc.WithCompilationCache(wazero.NewCompilationCache())
	}

	// ⚠️ 刻意不实例化WASI：
	// wasi_snapshot_preview1 的 clock_time_get / random_get 直通宿主机，
	// 会破坏"同一脚本两次执行产生完全相同效果"的确定性承诺。
	// 沙箱合约的时间与随机数只能通过env宿主函数获取。
	return &Runtime{
		logger:  logger,
		runtime: wazero.NewRuntimeWithConfig(ctx, rc),
		cache:   cache,
		opts:    opts,
	}
}

// Compile 编译WASM模块字节码
//
// 🎯 **编译流程**：
//  1. 按字节码SHA-256查进程内缓存，命中直接返回
//  2. wazero编译字节码（编译即校验，非法字节码在此报错）
//  3. 写入进程内缓存与可验证标记
//
// 同一字节码无论被多少个模块ID引用，只编译一次。
func (r *Runtime) Compile(ctx context.Context, bytecode []byte) (wazero.CompiledModule, error) {
	key := cacheKey(bytecode)

	// 1. 进程内缓存命中：直接返回已编译模块
	if v, ok := r.compiled.Load(key); ok {
		if cm, ok := v.(wazero.CompiledModule); ok {
			return cm, nil
		}
		r.compiled.Delete(key)
	}

	// 2. 标记层检查：标记有效但进程内无编译产物时继续编译并回填
	// （wazero.CompiledModule 无法序列化，标记只用于跨实例命中判定）
	if r.cache != nil {
		if raw, exists, err := r.cache.Get(ctx, key); err == nil && exists && len(raw) > 0 {
			var marker compileMarker
			if err := json.Unmarshal(raw, &marker); err == nil && marker.validFor(r.opts, bytecode) {
				if r.logger != nil {
					r.logger.Debugf("编译标记命中，进程内无产物，重新编译: %s", key[:16])
				}
			}
		}
	}

	// 3. 编译
	cm, err := r.runtime.CompileModule(ctx, bytecode)
	if err != nil {
		return nil, fmt.Errorf("wazero编译失败: %w", err)
	}

	// 4. 写入进程内缓存（容量超限时整体清空重建）
	r.storeCompiled(ctx, key, cm)

	// 5. 写入可验证标记
	if r.cache != nil {
		if raw, err := json.Marshal(newCompileMarker(r.opts, bytecode)); err == nil {
			_ = r.cache.Set(ctx, key, raw, time.Hour)
		}
	}

	return cm, nil
}

// storeCompiled 写入进程内编译缓存，超出容量时整体清空
//
// 批量重放的工作集通常远小于容量上限，整体清空比LRU记账简单且
// 足够：清空后的下一轮编译会立即回填热模块。
func (r *Runtime) storeCompiled(ctx context.Context, key string, cm wazero.CompiledModule) {
	r.compiledMutex.Lock()
	defer r.compiledMutex.Unlock()

	if r.opts.CompileCacheSize > 0 && r.compiledCount >= r.opts.CompileCacheSize {
		r.compiled.Range(func(k, v interface{}) bool {
			if old, ok := v.(wazero.CompiledModule); ok {
				_ = old.Close(ctx)
			}
			r.compiled.Delete(k)
			return true
		})
		r.compiledCount = 0
		if r.logger != nil {
			r.logger.Debugf("编译缓存达到容量上限(%d)，整体清空", r.opts.CompileCacheSize)
		}
	}

	r.compiled.Store(key, cm)
	r.compiledCount++
}

// Invalidate 失效指定字节码的编译缓存
//
// 模块升级后旧字节码的编译产物必须失效，否则升级前后的
// 调用会命中同一份产物。
func (r *Runtime) Invalidate(ctx context.Context, bytecode []byte) {
	key := cacheKey(bytecode)

	r.compiledMutex.Lock()
	if v, ok := r.compiled.Load(key); ok {
		if cm, ok := v.(wazero.CompiledModule); ok {
			_ = cm.Close(ctx)
		}
		r.compiled.Delete(key)
		if r.compiledCount > 0 {
			r.compiledCount--
		}
	}
	r.compiledMutex.Unlock()

	if r.cache != nil {
		_ = r.cache.Delete(ctx, key)
	}
}

// Instantiate 基于已编译模块创建实例
//
// 实例名由字节码哈希与进程内序号拼出，保证同一模块可以
// 在一次脚本中被多条命令反复实例化。start函数被禁用：
// 合约入口只能是显式导出的函数。
func (r *Runtime) Instantiate(ctx context.Context, cm wazero.CompiledModule, hash []byte) (api.Module, error) {
	r.compiledMutex.Lock()
	r.instanceSeq++
	seq := r.instanceSeq
	r.compiledMutex.Unlock()

	name := fmt.Sprintf("m%x_%d", shortHash(hash), seq)
	modConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions()

	mod, err := r.runtime.InstantiateModule(ctx, cm, modConfig)
	if err != nil {
		return nil, fmt.Errorf("wazero实例化失败: %w", err)
	}
	return mod, nil
}

// CloseInstance 销毁模块实例，释放线性内存
func (r *Runtime) CloseInstance(ctx context.Context, mod api.Module) error {
	if mod == nil {
		return nil
	}
	if err := mod.Close(ctx); err != nil {
		return fmt.Errorf("销毁实例失败: %w", err)
	}
	return nil
}

// RegisterHostFunctions 注册宿主函数
//
// ⚠️ **关键约束**：env模块只能实例化一次。
// wazero不允许重复实例化同名模块，第二次调用会报
// "module[env] has already been instantiated"。
//
// ✅ **解决方案**：
//  1. 宿主函数只注册一次（这里的once守卫）
//  2. 所有宿主函数从ctx参数动态提取执行上下文（不闭包捕获）
//  3. 后续执行复用同一批宿主函数，但各自携带新的执行上下文
func (r *Runtime) RegisterHostFunctions(fns map[string]interface{}) error {
	r.hostMutex.Lock()
	defer r.hostMutex.Unlock()

	if r.hostRegistered {
		return nil
	}
	if len(fns) == 0 {
		return nil
	}

	builder := r.runtime.NewHostModuleBuilder("env")
	for name, fn := range fns {
		builder.NewFunctionBuilder().
			WithFunc(fn).
			Export(name)
	}

	if _, err := builder.Instantiate(context.Background()); err != nil {
		return fmt.Errorf("宿主模块实例化失败: %w", err)
	}

	r.hostRegistered = true
	if r.logger != nil {
		r.logger.Debugf("宿主函数注册成功（共%d个函数）", len(fns))
	}
	return nil
}

// CallTimeout 单次调用的超时时长（0表示不限制）
func (r *Runtime) CallTimeout() time.Duration {
	if r.opts.ExecTimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(r.opts.ExecTimeoutSecs) * time.Second
}

// CompiledCount 进程内编译缓存条目数（供内存报告使用）
func (r *Runtime) CompiledCount() int {
	r.compiledMutex.Lock()
	defer r.compiledMutex.Unlock()
	return r.compiledCount
}

// Close 关闭运行时，释放全部编译产物与实例
func (r *Runtime) Close(ctx context.Context) error {
	if r.runtime != nil {
		return r.runtime.Close(ctx)
	}
	return nil
}

// cacheKey 生成编译缓存键
func cacheKey(bytecode []byte) string {
	return utils.CompileCacheKey(bytecode)
}

// shortHash 取哈希前8字节用于实例命名
func shortHash(hash []byte) []byte {
	if len(hash) >= 8 {
		return hash[:8]
	}
	return hash
}
