package objects

import (
	"bytes"
	"sort"

	"github.com/sandvm/v1/pkg/types"
)

// 脚本原子性与版本记账
//
// 🎯 **提交协议**：
// 执行器在脚本开始前取快照；脚本中止时用快照回滚，规范仓库
// 分毫不动；脚本完成时调用 Commit，此刻才为每个被触达对象
// 递增一次版本并产出变更清单。中止脚本的"部分效果"经由
// PendingChanges 只读预览取得，预览不改动仓库。

// Snapshot 仓库的完整深拷贝快照
//
// 快照与仓库不共享任何可变内存，同一快照可以恢复多次。
type Snapshot struct {
	objects    map[types.ObjectID]*types.Object
	tombstones map[types.ObjectID]uint64
	fields     map[types.ObjectID]map[string]types.ObjectID
	receives   map[receiveKey]stagedReceive
	pending    map[types.ObjectID]pendingChange
}

// Snapshot 捕获仓库当前状态的深拷贝
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		objects:    make(map[types.ObjectID]*types.Object, len(s.objects)),
		tombstones: make(map[types.ObjectID]uint64, len(s.tombstones)),
		fields:     make(map[types.ObjectID]map[string]types.ObjectID, len(s.fields)),
		receives:   make(map[receiveKey]stagedReceive, len(s.receives)),
		pending:    make(map[types.ObjectID]pendingChange, len(s.pending)),
	}
	for id, obj := range s.objects {
		snap.objects[id] = obj.Clone()
	}
	for id, v := range s.tombstones {
		snap.tombstones[id] = v
	}
	for parent, kv := range s.fields {
		inner := make(map[string]types.ObjectID, len(kv))
		for k, child := range kv {
			inner[k] = child
		}
		snap.fields[parent] = inner
	}
	for k, r := range s.receives {
		snap.receives[k] = stagedReceive{
			value:    append([]byte(nil), r.value...),
			consumed: r.consumed,
		}
	}
	for id, p := range s.pending {
		snap.pending[id] = *p
	}
	return snap
}

// Restore 将仓库恢复到快照时刻的状态
//
// 恢复同样以深拷贝进行，快照在恢复后仍然可用。
func (s *Store) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[types.ObjectID]*types.Object, len(snap.objects))
	for id, obj := range snap.objects {
		s.objects[id] = obj.Clone()
	}
	s.tombstones = make(map[types.ObjectID]uint64, len(snap.tombstones))
	for id, v := range snap.tombstones {
		s.tombstones[id] = v
	}
	s.fields = make(map[types.ObjectID]map[string]types.ObjectID, len(snap.fields))
	for parent, kv := range snap.fields {
		inner := make(map[string]types.ObjectID, len(kv))
		for k, child := range kv {
			inner[k] = child
		}
		s.fields[parent] = inner
	}
	s.receives = make(map[receiveKey]*stagedReceive, len(snap.receives))
	for k, r := range snap.receives {
		s.receives[k] = &stagedReceive{
			value:    append([]byte(nil), r.value...),
			consumed: r.consumed,
		}
	}
	s.pending = make(map[types.ObjectID]*pendingChange, len(snap.pending))
	for id, p := range snap.pending {
		cp := p
		s.pending[id] = &cp
	}
}

// ==================== 提交 ====================

// Commit 提交本脚本的全部待定变更
//
// 为每个被触达对象递增恰好一次版本（创建即为版本1，不再
// 额外递增），清空工作集并返回按对象ID字典序排列的变更清单。
func (s *Store) Commit() []types.ObjectChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := s.changesLocked(true)
	s.pending = make(map[types.ObjectID]*pendingChange)
	return changes
}

// PendingChanges 只读预览当前工作集对应的变更清单
//
// 版本号按"提交后将会是"的值呈现，仓库状态不发生任何改变；
// 供中止脚本报告部分效果使用。
func (s *Store) PendingChanges() []types.ObjectChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changesLocked(false)
}

// changesLocked 计算工作集的变更清单
//
// apply 为真时同步把版本递增写回存活对象。调用方必须已持有锁
// （apply 为真时须为写锁）。
func (s *Store) changesLocked(apply bool) []types.ObjectChange {
	changes := make([]types.ObjectChange, 0, len(s.pending))

	for id, p := range s.pending {
		live := s.objects[id]
		change := types.ObjectChange{ID: id, Owner: p.owner, Type: p.typ}
		if live != nil {
			change.Owner = live.Owner
			change.Type = live.Type
		}

		switch {
		case p.deleted:
			// 同脚本内创建又删除的对象以其出生版本1入账
			change.Kind = types.ChangeDeleted
			change.PrevVersion = p.prevVersion
			change.Version = p.prevVersion
			if p.created {
				change.Version = 1
			}
		case p.created:
			change.Kind = types.ChangeCreated
			change.PrevVersion = 0
			change.Version = 1
		default:
			kind := p.mutation
			if kind == "" {
				kind = types.ChangeMutated
			}
			change.Kind = kind
			change.PrevVersion = p.prevVersion
			change.Version = p.prevVersion + 1
			if apply && live != nil {
				live.Version = p.prevVersion + 1
			}
		}
		changes = append(changes, change)
	}

	sort.Slice(changes, func(i, j int) bool {
		return bytes.Compare(changes[i].ID[:], changes[j].ID[:]) < 0
	})
	return changes
}

// DiscardPending 丢弃工作集而不产出变更
//
// 供快照恢复之外的轻量复位使用（例如环境状态重置）。
func (s *Store) DiscardPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[types.ObjectID]*pendingChange)
}
