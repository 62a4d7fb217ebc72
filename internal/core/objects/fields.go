package objects

import (
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/sandvm/v1/pkg/types"
)

// 动态字段运行时
//
// 🎯 **父子存储模型**：
// 字段值以独立子对象存放（所有者为父对象），父子关系只
// 记录在旁路索引 parent → key → childID 中，对象表本身
// 保持平铺，嵌套任意深度也不会形成所有权环。
//
// 📋 **错误区分**：
// "字段不存在"（ErrFieldNotFound）与"字段存在但值类型不符"
// （ErrFieldWrongType）是两种失败。字段身份只由 (父ID, 键)
// 决定，值类型在读取时比对，因此换一个类型标签查询同一个键
// 命中的是同一个字段。

// DeriveFieldID 派生动态字段子对象的ID
//
// 子ID = blake2b-256(父ID ‖ 值类型标签规范串 ‖ 键字节)。
// 同一 (父, 标签, 键) 组合的派生结果恒定，移除后重建得到
// 相同的子ID。
func DeriveFieldID(parent types.ObjectID, tag types.TypeTag, key []byte) types.ObjectID {
	h, _ := blake2b.New256(nil)
	h.Write(parent[:])
	h.Write([]byte(tag.String()))
	h.Write(key)

	var id types.ObjectID
	copy(id[:], h.Sum(nil))
	return id
}

// AddField 为父对象添加动态字段
//
// 子对象以值类型为类型、以父对象为所有者创建，父对象记一次
// 内容突变。同键字段已存在时返回 ErrObjectExists。
func (s *Store) AddField(parent types.ObjectID, key []byte, tag types.TypeTag, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentObj, err := s.writable("add_field", parent)
	if err != nil {
		return err
	}

	kv := s.fields[parent]
	if _, exists := kv[string(key)]; exists {
		return wrapField("add", parent, key, types.ErrObjectExists)
	}

	childID := DeriveFieldID(parent, tag, key)
	if _, live := s.objects[childID]; live {
		return wrapField("add", parent, key, types.ErrObjectExists)
	}
	if _, dead := s.tombstones[childID]; dead {
		return wrapField("add", parent, key, types.ErrObjectExists)
	}

	child := &types.Object{
		ID:       childID,
		Version:  1,
		Type:     tag,
		Owner:    types.ChildOf(parent),
		Contents: append([]byte(nil), value...),
	}
	s.objects[childID] = child

	if kv == nil {
		kv = make(map[string]types.ObjectID)
		s.fields[parent] = kv
	}
	kv[string(key)] = childID

	cp := s.pendingFor(childID, 0)
	cp.created = true
	cp.owner = child.Owner
	cp.typ = child.Type

	s.markMutated(parentObj, types.ChangeMutated)
	return nil
}

// GetField 读取动态字段的值
//
// 返回值的深拷贝。expect 非空时比对存储值的类型标签，
// 不符返回 ErrFieldWrongType。
func (s *Store) GetField(parent types.ObjectID, key []byte, expect types.TypeTag) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	child, err := s.fieldChild("get_field", parent, key, expect)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), child.Contents...), nil
}

// GetFieldMut 以可变方式借出动态字段的值
//
// 除返回值拷贝外，子对象与父对象各记一次待提交突变：
// 可变借用等同于声明本脚本会改动该字段。
func (s *Store) GetFieldMut(parent types.ObjectID, key []byte, expect types.TypeTag) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentObj, err := s.writable("get_field_mut", parent)
	if err != nil {
		return nil, err
	}
	child, err := s.fieldChild("get_field_mut", parent, key, expect)
	if err != nil {
		return nil, err
	}

	s.markMutated(child, types.ChangeMutated)
	s.markMutated(parentObj, types.ChangeMutated)
	return append([]byte(nil), child.Contents...), nil
}

// SetField 写回动态字段的值
//
// 键必须已存在，子对象与父对象各记一次突变。
func (s *Store) SetField(parent types.ObjectID, key []byte, expect types.TypeTag, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentObj, err := s.writable("set_field", parent)
	if err != nil {
		return err
	}
	child, err := s.fieldChild("set_field", parent, key, expect)
	if err != nil {
		return err
	}

	child.Contents = append([]byte(nil), value...)
	s.markMutated(child, types.ChangeMutated)
	s.markMutated(parentObj, types.ChangeMutated)
	return nil
}

// RemoveField 移除动态字段并返回其值
//
// 子对象被摘除且不留墓碑，同一 (父, 标签, 键) 此后可以重建；
// 这一点与普通对象删除不同，普通删除的ID永不复用。
func (s *Store) RemoveField(parent types.ObjectID, key []byte, expect types.TypeTag) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentObj, err := s.writable("remove_field", parent)
	if err != nil {
		return nil, err
	}
	child, err := s.fieldChild("remove_field", parent, key, expect)
	if err != nil {
		return nil, err
	}

	value := append([]byte(nil), child.Contents...)
	s.removeLocked(child, false)
	delete(s.fields[parent], string(key))
	if len(s.fields[parent]) == 0 {
		delete(s.fields, parent)
	}

	s.markMutated(parentObj, types.ChangeMutated)
	return value, nil
}

// HasField 判断动态字段是否存在（不校验值类型）
func (s *Store) HasField(parent types.ObjectID, key []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	childID, ok := s.fields[parent][string(key)]
	if !ok {
		return false
	}
	_, live := s.objects[childID]
	return live
}

// ChildrenOf 返回父对象的全部字段子对象ID
//
// 结果按键字节序排列，保证枚举顺序确定。
func (s *Store) ChildrenOf(parent types.ObjectID) []types.ObjectID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kv := s.fields[parent]
	if len(kv) == 0 {
		return nil
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		if _, live := s.objects[kv[k]]; live {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]types.ObjectID, 0, len(keys))
	for _, k := range keys {
		out = append(out, kv[k])
	}
	return out
}

// fieldChild 查出字段子对象并校验值类型
//
// 索引缺失、子对象缺失归为 ErrFieldNotFound；类型不符归为
// ErrFieldWrongType。调用方必须已持有锁。
func (s *Store) fieldChild(op string, parent types.ObjectID, key []byte, expect types.TypeTag) (*types.Object, error) {
	childID, ok := s.fields[parent][string(key)]
	if !ok {
		return nil, wrapField(op, parent, key, types.ErrFieldNotFound)
	}
	child, live := s.objects[childID]
	if !live {
		return nil, wrapField(op, parent, key, types.ErrFieldNotFound)
	}
	if !expect.IsZero() && !child.Type.Equal(expect) {
		return nil, wrapField(op, parent, key, types.ErrFieldWrongType)
	}
	return child, nil
}
