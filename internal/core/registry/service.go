// Package registry 实现模块注册表
//
// 🎯 **核心职责**：按 (地址, 名称) 装载、查找与升级合约模块字节码
//
// 📋 **设计特点**：
// - 装载即验证：字节码在装载时经运行时编译一次，非法字节码进不了表
// - 幂等装载：相同ID相同字节码的重复装载为无操作，
//   相同ID不同字节码冲突报错，升级是唯一的替换途径
// - 访问追踪：每次装载/查找/升级按观察顺序落一条轨迹
// - 只读克隆：批量回放的并行工作者共享字节码快照，互不加锁
package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sandvm/v1/internal/core/vm/runtime"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/interfaces/vm"
	"github.com/sandvm/v1/pkg/types"
)

// Service 模块注册表
type Service struct {
	logger log.Logger

	// runtime 装载验证与升级失效用；只读克隆不持有
	runtime *runtime.Runtime

	mu      sync.RWMutex
	modules map[types.ModuleID]*types.CompiledModule

	traceMu  sync.Mutex
	trace    []types.ModuleAccess
	traceSeq int64

	// readonly 只读快照拒绝装载与升级
	readonly bool
}

// 确保Service实现vm.Registry接口
var _ vm.Registry = (*Service)(nil)

// New 创建模块注册表
func New(logger log.Logger, rt *runtime.Runtime) *Service {
	return &Service{
		logger:  logger,
		runtime: rt,
		modules: make(map[types.ModuleID]*types.CompiledModule),
	}
}

// Load 装载一批模块字节码
//
// 整批原子：任一模块冲突或编译失败则整批拒绝，表保持原样。
// 装载是部署路径上的低频操作，全程持锁换取这条不变式。
func (s *Service) Load(ctx context.Context, modules []types.ModuleBytes) error {
	if s.readonly {
		return wrapRegistry("load", errReadonly)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. 全量预检：与在表模块以及批内重复的冲突
	staged := make([]*types.CompiledModule, 0, len(modules))
	batch := make(map[types.ModuleID][]byte, len(modules))
	for _, m := range modules {
		prior, inBatch := batch[m.ID]
		if !inBatch {
			if existing, ok := s.modules[m.ID]; ok {
				prior, inBatch = existing.Bytecode, true
			}
		}
		if inBatch {
			if bytes.Equal(prior, m.Bytecode) {
				continue // 幂等：相同字节码重复装载
			}
			return wrapModule("load", m.ID, types.ErrModuleConflict)
		}
		batch[m.ID] = m.Bytecode
		staged = append(staged, compileStub(m))
	}

	// 2. 编译验证（编译即校验，非法字节码在此报错）
	for _, cm := range staged {
		if _, err := s.runtime.Compile(ctx, cm.Bytecode); err != nil {
			return wrapModule("load", cm.ID, err)
		}
	}

	// 3. 落表并记录轨迹
	for _, cm := range staged {
		s.modules[cm.ID] = cm
	}
	for _, m := range modules {
		s.record(m.ID, types.ModuleAccessLoad)
	}
	if s.logger != nil {
		s.logger.Debugf("装载模块 %d 个（新增 %d 个）", len(modules), len(staged))
	}
	return nil
}

// Get 按ID查找模块并记录访问轨迹
func (s *Service) Get(ctx context.Context, id types.ModuleID) (*types.CompiledModule, error) {
	s.mu.RLock()
	cm, ok := s.modules[id]
	s.mu.RUnlock()
	if !ok {
		return nil, wrapModule("get", id, types.ErrModuleNotFound)
	}
	s.record(id, types.ModuleAccessGet)

	// 浅拷贝返回：字节码切片共享但视为不可变，结构体本身防调用方改写
	cp := *cm
	return &cp, nil
}

// Has 判断模块是否已装载（不记轨迹）
func (s *Service) Has(id types.ModuleID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.modules[id]
	return ok
}

// List 返回全部模块ID，按 (地址, 名称) 字典序
func (s *Service) List() []types.ModuleID {
	s.mu.RLock()
	out := make([]types.ModuleID, 0, len(s.modules))
	for id := range s.modules {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Address[:], out[j].Address[:]); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Upgrade 升级模块字节码
//
// 版本号递增，旧字节码的编译缓存条目同步失效。
func (s *Service) Upgrade(ctx context.Context, id types.ModuleID, bytecode []byte) error {
	if s.readonly {
		return wrapRegistry("upgrade", errReadonly)
	}

	s.mu.Lock()
	old, ok := s.modules[id]
	if !ok {
		s.mu.Unlock()
		return wrapModule("upgrade", id, types.ErrModuleNotFound)
	}

	if _, err := s.runtime.Compile(ctx, bytecode); err != nil {
		s.mu.Unlock()
		return wrapModule("upgrade", id, err)
	}

	oldBytecode := old.Bytecode
	next := compileStub(types.ModuleBytes{ID: id, Bytecode: bytecode})
	next.Version = old.Version + 1
	s.modules[id] = next
	s.mu.Unlock()

	// 字节码相同的升级只递增版本，缓存条目仍然有效
	if !bytes.Equal(oldBytecode, bytecode) {
		s.runtime.Invalidate(ctx, oldBytecode)
	}
	s.record(id, types.ModuleAccessUpgrade)
	if s.logger != nil {
		s.logger.Infof("模块升级: %s v%d -> v%d", id, next.Version-1, next.Version)
	}
	return nil
}

// AccessTrace 返回按观察顺序排列的访问记录
func (s *Service) AccessTrace() []types.ModuleAccess {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	out := make([]types.ModuleAccess, len(s.trace))
	copy(out, s.trace)
	return out
}

// ResetTrace 清空访问记录
func (s *Service) ResetTrace() {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	s.trace = nil
}

// Clone 创建只读快照
//
// 快照共享字节码（装载后不可变，按值共享安全），轨迹独立起算；
// 装载与升级在快照上被拒绝。工作者的运行时按需经各自的
// 编译缓存物化产物，快照不绑定任何运行时。
func (s *Service) Clone() vm.Registry {
	s.mu.RLock()
	modules := make(map[types.ModuleID]*types.CompiledModule, len(s.modules))
	for id, cm := range s.modules {
		cp := *cm
		modules[id] = &cp
	}
	s.mu.RUnlock()

	return &Service{
		logger:   s.logger,
		modules:  modules,
		readonly: true,
	}
}

// record 追加一条访问轨迹
func (s *Service) record(id types.ModuleID, op types.ModuleAccessOp) {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	s.trace = append(s.trace, types.ModuleAccess{Seq: s.traceSeq, ID: id, Op: op})
	s.traceSeq++
}

// compileStub 构造通过验证前的模块制品
func compileStub(m types.ModuleBytes) *types.CompiledModule {
	h := sha256.Sum256(m.Bytecode)
	return &types.CompiledModule{
		ID:         m.ID,
		Bytecode:   m.Bytecode,
		Hash:       h[:],
		Version:    1,
		CompiledAt: time.Now().Unix(),
	}
}

// wrapModule 带模块身份包装错误
func wrapModule(op string, id types.ModuleID, err error) error {
	return fmt.Errorf("%s module %s: %w", op, id, err)
}

// wrapRegistry 包装注册表级错误
func wrapRegistry(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
