// Package objects 实现对象仓库与动态字段运行时
//
// 🎯 **核心职责**：
// - 维护带版本、带类型、带所有者的对象表（竞技场模型）
// - 动态字段：父对象按键派生子对象，父子关系存于旁路索引
// - 定向转移暂存区：stage/take 恰好一次消费
// - 脚本原子性：快照/回滚 + 单次提交集中记账版本
//
// 🏗️ **设计理念**：
// - 对象图不持有递归引用，父子关系只存在于旁路索引中
// - 读取返回深拷贝，仓库状态只能经由写入方法改变
// - 脚本期间对象版本保持不变，Commit 为每个被触达对象
//   统一记一次 +1，无论脚本内触达多少次
// - 错误永不panic，全部折叠为 pkg/types 哨兵错误
//
// ⚠️ **并发模型**：
// - 单脚本执行严格串行，仓库锁只防御借用边界上的误用
// - 批量回放为每个工作者配独立仓库，实例间互不共享
package objects

import (
	"bytes"
	"sort"
	"sync"

	"github.com/sandvm/v1/pkg/types"
)

// Store 对象仓库
//
// 💾 对象以ID为键平铺存放，删除只留墓碑不腾出ID。
// 脚本内的全部写入先落到 pending 工作集，Commit 时
// 一次性完成版本递增并产出变更清单。
type Store struct {
	// === 并发保护 ===

	mu sync.RWMutex

	// === 对象表 ===

	// objects 存活对象表
	objects map[types.ObjectID]*types.Object

	// tombstones 删除墓碑：ID → 删除前版本
	tombstones map[types.ObjectID]uint64

	// === 动态字段索引 ===

	// fields 父对象 → 字段键 → 子对象ID
	fields map[types.ObjectID]map[string]types.ObjectID

	// === 接收暂存区 ===

	// receives (父, 子) → 暂存条目
	receives map[receiveKey]*stagedReceive

	// === 脚本工作集 ===

	// pending 本脚本内被触达对象的待提交变更
	pending map[types.ObjectID]*pendingChange
}

// receiveKey 接收暂存区的复合键
type receiveKey struct {
	Parent types.ObjectID
	Child  types.ObjectID
}

// stagedReceive 暂存的定向转移
//
// consumed 置位后条目保留，用于区分"已消费"与"从未暂存"。
type stagedReceive struct {
	value    []byte
	consumed bool
}

// pendingChange 单个对象的待提交变更
//
// created/deleted 为生命周期标志，mutation 记录突变家族
// （内容、转移、共享、冻结）中的主导种类。owner 与 typ
// 保存最后一次观察到的值，供对象删除后仍能产出变更记录。
type pendingChange struct {
	created     bool
	deleted     bool
	mutation    types.ChangeKind
	prevVersion uint64
	owner       types.Owner
	typ         types.TypeTag
}

// NewStore 创建空对象仓库
func NewStore() *Store {
	return &Store{
		objects:    make(map[types.ObjectID]*types.Object),
		tombstones: make(map[types.ObjectID]uint64),
		fields:     make(map[types.ObjectID]map[string]types.ObjectID),
		receives:   make(map[receiveKey]*stagedReceive),
		pending:    make(map[types.ObjectID]*pendingChange),
	}
}

// ==================== 对象生命周期 ====================

// Create 创建新对象
//
// 对象版本被强制置为1。ID 已被存活对象或墓碑占用时创建失败，
// 被删除的ID永不复用。
func (s *Store) Create(obj *types.Object) error {
	if obj == nil {
		return wrapStore("create", types.ErrObjectNotFound)
	}
	if obj.ID.IsZero() {
		return wrapObject("create", obj.ID, types.ErrObjectNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, live := s.objects[obj.ID]; live {
		return wrapObject("create", obj.ID, types.ErrObjectExists)
	}
	if _, dead := s.tombstones[obj.ID]; dead {
		return wrapObject("create", obj.ID, types.ErrObjectExists)
	}

	stored := obj.Clone()
	stored.Version = 1
	s.objects[stored.ID] = stored

	p := s.pendingFor(stored.ID, 0)
	p.created = true
	p.owner = stored.Owner
	p.typ = stored.Type
	return nil
}

// Import 导入一个既有对象，保留其版本号
//
// 回放路径用它按链上记录的版本还原输入对象。导入不产生
// 待提交变更：被导入的对象视为脚本开始前就存在的状态。
// 版本为0时按1处理。
func (s *Store) Import(obj *types.Object) error {
	if obj == nil {
		return wrapStore("import", types.ErrObjectNotFound)
	}
	if obj.ID.IsZero() {
		return wrapObject("import", obj.ID, types.ErrObjectNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, live := s.objects[obj.ID]; live {
		return wrapObject("import", obj.ID, types.ErrObjectExists)
	}
	if _, dead := s.tombstones[obj.ID]; dead {
		return wrapObject("import", obj.ID, types.ErrObjectExists)
	}

	stored := obj.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	s.objects[stored.ID] = stored
	return nil
}

// Get 按ID读取对象
//
// 返回深拷贝。从未创建和已删除的对象一律视为不存在。
func (s *Store) Get(id types.ObjectID) (*types.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[id]
	if !ok {
		return nil, wrapObject("get", id, types.ErrObjectNotFound)
	}
	return obj.Clone(), nil
}

// GetByType 按ID读取对象并校验其类型
//
// "对象不存在"与"对象存在但类型不符"是两种失败，
// 调用方需分别以 ErrObjectNotFound 与 ErrWrongType 判别。
func (s *Store) GetByType(id types.ObjectID, tag types.TypeTag) (*types.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[id]
	if !ok {
		return nil, wrapObject("get_by_type", id, types.ErrObjectNotFound)
	}
	if !obj.Type.Equal(tag) {
		return nil, wrapType("get_by_type", id, obj.Type, tag)
	}
	return obj.Clone(), nil
}

// Update 替换对象内容
//
// 冻结对象拒绝写入。版本不在此处递增，由 Commit 统一记账。
func (s *Store) Update(id types.ObjectID, contents []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.writable("update", id)
	if err != nil {
		return err
	}

	obj.Contents = append([]byte(nil), contents...)
	s.markMutated(obj, types.ChangeMutated)
	return nil
}

// SetOwner 变更对象所有者
func (s *Store) SetOwner(id types.ObjectID, owner types.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.writable("set_owner", id)
	if err != nil {
		return err
	}

	obj.Owner = owner
	s.markMutated(obj, types.ChangeTransferred)
	return nil
}

// Freeze 冻结对象使其永久不可变
//
// 冻结后任何写入（含再次冻结与删除）都返回 ErrImmutable。
func (s *Store) Freeze(id types.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.writable("freeze", id)
	if err != nil {
		return err
	}

	obj.Owner = types.ImmutableOwner()
	s.markMutated(obj, types.ChangeFrozen)
	return nil
}

// Share 将对象转为共享所有
func (s *Store) Share(id types.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.writable("share", id)
	if err != nil {
		return err
	}

	obj.Owner = types.SharedOwner()
	s.markMutated(obj, types.ChangeShared)
	return nil
}

// Delete 删除对象并留下墓碑
//
// 墓碑占住ID：Exists 为假、WasDeleted 为真，重新创建同ID失败。
func (s *Store) Delete(id types.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.writable("delete", id)
	if err != nil {
		return err
	}

	s.removeLocked(obj, true)
	return nil
}

// Exists 判断对象是否存活
func (s *Store) Exists(id types.ObjectID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[id]
	return ok
}

// WasDeleted 判断对象是否曾被删除
func (s *Store) WasDeleted(id types.ObjectID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tombstones[id]
	return ok
}

// ==================== 检视 ====================

// Stats 仓库规模统计
type Stats struct {
	// Live 存活对象数
	Live int `json:"live"`

	// Tombstones 墓碑数
	Tombstones int `json:"tombstones"`

	// Fields 动态字段条目总数
	Fields int `json:"fields"`

	// StagedReceives 未消费的暂存接收数
	StagedReceives int `json:"staged_receives"`

	// Pending 待提交变更数
	Pending int `json:"pending"`

	// ContentBytes 存活对象内容字节总量
	ContentBytes int `json:"content_bytes"`
}

// Len 返回存活对象数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// All 返回全部存活对象的深拷贝，按ID字典序排列
func (s *Store) All() []*types.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Object, 0, len(s.objects))
	for _, obj := range s.objects {
		out = append(out, obj.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

// Stats 返回仓库规模统计
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Live:       len(s.objects),
		Tombstones: len(s.tombstones),
		Pending:    len(s.pending),
	}
	for _, kv := range s.fields {
		st.Fields += len(kv)
	}
	for _, r := range s.receives {
		if !r.consumed {
			st.StagedReceives++
		}
	}
	for _, obj := range s.objects {
		st.ContentBytes += len(obj.Contents)
	}
	return st
}

// Reset 清空仓库的全部状态
//
// 对象、墓碑、字段索引、暂存区与工作集一并清空。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[types.ObjectID]*types.Object)
	s.tombstones = make(map[types.ObjectID]uint64)
	s.fields = make(map[types.ObjectID]map[string]types.ObjectID)
	s.receives = make(map[receiveKey]*stagedReceive)
	s.pending = make(map[types.ObjectID]*pendingChange)
}

// ==================== 内部辅助 ====================

// writable 取出可写对象，冻结对象与缺失对象分别报错
//
// 调用方必须已持有写锁。
func (s *Store) writable(op string, id types.ObjectID) (*types.Object, error) {
	obj, ok := s.objects[id]
	if !ok {
		return nil, wrapObject(op, id, types.ErrObjectNotFound)
	}
	if obj.Owner.Kind == types.OwnerImmutable {
		return nil, wrapObject(op, id, types.ErrImmutable)
	}
	return obj, nil
}

// pendingFor 取出或建立对象的待提交变更条目
//
// prevVersion 仅在新建条目时生效。调用方必须已持有写锁。
func (s *Store) pendingFor(id types.ObjectID, prevVersion uint64) *pendingChange {
	p, ok := s.pending[id]
	if !ok {
		p = &pendingChange{prevVersion: prevVersion}
		s.pending[id] = p
	}
	return p
}

// markMutated 记录一次突变并保留主导种类
//
// 种类按信息量排序：冻结 > 共享 > 转移 > 内容突变。
// 调用方必须已持有写锁。
func (s *Store) markMutated(obj *types.Object, kind types.ChangeKind) {
	p := s.pendingFor(obj.ID, obj.Version)
	if mutationRank(kind) > mutationRank(p.mutation) {
		p.mutation = kind
	}
	p.owner = obj.Owner
	p.typ = obj.Type
}

// removeLocked 摘除对象并记录删除变更
//
// tombstone 为真时留下墓碑（普通删除）；为假时直接腾出ID
// （动态字段移除后允许同键重建）。调用方必须已持有写锁。
func (s *Store) removeLocked(obj *types.Object, tombstone bool) {
	p := s.pendingFor(obj.ID, obj.Version)
	p.deleted = true
	p.owner = obj.Owner
	p.typ = obj.Type

	delete(s.objects, obj.ID)
	if tombstone {
		s.tombstones[obj.ID] = obj.Version
	}
}

// mutationRank 突变种类的主导级别
func mutationRank(kind types.ChangeKind) int {
	switch kind {
	case types.ChangeFrozen:
		return 4
	case types.ChangeShared:
		return 3
	case types.ChangeTransferred:
		return 2
	case types.ChangeMutated:
		return 1
	default:
		return 0
	}
}
