package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandvm/v1/pkg/types"
)

var (
	testOwnerA = types.MustParseAddress("0xa1")
	testOwnerB = types.MustParseAddress("0xb2")
	coinTag    = types.MustParseTypeTag("0x2::coin::Coin")
	counterTag = types.MustParseTypeTag("0x7::counter::Counter")
)

// newTestObject 构造一个地址所有的测试对象
func newTestObject(id string, contents []byte) *types.Object {
	return &types.Object{
		ID:       types.MustParseObjectID(id),
		Type:     coinTag,
		Owner:    types.OwnedBy(testOwnerA),
		Contents: contents,
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore()
	obj := newTestObject("0x100", []byte{10, 0, 0, 0, 0, 0, 0, 0})

	t.Run("创建后版本为1", func(t *testing.T) {
		require.NoError(t, store.Create(obj))

		got, err := store.Get(obj.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Version)
		assert.Equal(t, obj.Contents, got.Contents)
		assert.Equal(t, types.OwnerAddress, got.Owner.Kind)
	})

	t.Run("重复创建同ID失败", func(t *testing.T) {
		err := store.Create(newTestObject("0x100", nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrObjectExists)
	})

	t.Run("读取返回深拷贝", func(t *testing.T) {
		got, err := store.Get(obj.ID)
		require.NoError(t, err)
		got.Contents[0] = 0xFF

		again, err := store.Get(obj.ID)
		require.NoError(t, err)
		assert.Equal(t, byte(10), again.Contents[0], "外部改写拷贝不应影响仓库")
	})

	t.Run("读取不存在的对象", func(t *testing.T) {
		_, err := store.Get(types.MustParseObjectID("0xdead"))
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrObjectNotFound)
	})

	t.Run("零ID拒绝创建", func(t *testing.T) {
		err := store.Create(&types.Object{Type: coinTag})
		assert.Error(t, err)
	})
}

func TestStoreImport(t *testing.T) {
	store := NewStore()

	t.Run("导入保留记录的版本", func(t *testing.T) {
		obj := newTestObject("0x150", []byte{7})
		obj.Version = 5
		require.NoError(t, store.Import(obj))

		got, err := store.Get(obj.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), got.Version)
		assert.Equal(t, 0, store.Stats().Pending, "导入不产生待提交变更")
	})

	t.Run("导入后的突变从记录版本继续递增", func(t *testing.T) {
		id := types.MustParseObjectID("0x150")
		require.NoError(t, store.Update(id, []byte{8}))
		changes := store.Commit()

		require.Len(t, changes, 1)
		assert.Equal(t, uint64(5), changes[0].PrevVersion)
		assert.Equal(t, uint64(6), changes[0].Version)
	})

	t.Run("零版本按1处理", func(t *testing.T) {
		obj := newTestObject("0x151", nil)
		require.NoError(t, store.Import(obj))

		got, err := store.Get(obj.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Version)
	})

	t.Run("已存在的ID拒绝导入", func(t *testing.T) {
		obj := newTestObject("0x150", nil)
		assert.ErrorIs(t, store.Import(obj), types.ErrObjectExists)
	})
}

func TestStoreGetByType(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Create(newTestObject("0x200", nil)))

	t.Run("类型匹配", func(t *testing.T) {
		got, err := store.GetByType(types.MustParseObjectID("0x200"), coinTag)
		require.NoError(t, err)
		assert.True(t, got.Type.Equal(coinTag))
	})

	t.Run("类型不符与不存在是两种错误", func(t *testing.T) {
		_, err := store.GetByType(types.MustParseObjectID("0x200"), counterTag)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrWrongType)
		assert.NotErrorIs(t, err, types.ErrObjectNotFound)

		_, err = store.GetByType(types.MustParseObjectID("0x999"), coinTag)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrObjectNotFound)
		assert.NotErrorIs(t, err, types.ErrWrongType)
	})
}

func TestStoreVersionBumpOncePerCommit(t *testing.T) {
	store := NewStore()
	id := types.MustParseObjectID("0x300")
	require.NoError(t, store.Create(newTestObject("0x300", []byte{1})))
	store.Commit()

	// 同一脚本内触达三次，提交后只递增一次
	require.NoError(t, store.Update(id, []byte{2}))
	require.NoError(t, store.Update(id, []byte{3}))
	require.NoError(t, store.SetOwner(id, types.OwnedBy(testOwnerB)))
	changes := store.Commit()

	require.Len(t, changes, 1)
	assert.Equal(t, uint64(1), changes[0].PrevVersion)
	assert.Equal(t, uint64(2), changes[0].Version)

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
	assert.Equal(t, []byte{3}, got.Contents)

	// 下一个脚本再触达，版本继续严格递增
	require.NoError(t, store.Update(id, []byte{4}))
	changes = store.Commit()
	require.Len(t, changes, 1)
	assert.Equal(t, uint64(3), changes[0].Version)
}

func TestStoreFreeze(t *testing.T) {
	store := NewStore()
	id := types.MustParseObjectID("0x400")
	require.NoError(t, store.Create(newTestObject("0x400", []byte{1})))
	require.NoError(t, store.Freeze(id))

	t.Run("冻结后拒绝一切写入", func(t *testing.T) {
		assert.ErrorIs(t, store.Update(id, []byte{2}), types.ErrImmutable)
		assert.ErrorIs(t, store.SetOwner(id, types.OwnedBy(testOwnerB)), types.ErrImmutable)
		assert.ErrorIs(t, store.Share(id), types.ErrImmutable)
		assert.ErrorIs(t, store.Delete(id), types.ErrImmutable)
		assert.ErrorIs(t, store.Freeze(id), types.ErrImmutable)
	})

	t.Run("冻结对象仍可读取", func(t *testing.T) {
		got, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, types.OwnerImmutable, got.Owner.Kind)
	})
}

func TestStoreShare(t *testing.T) {
	store := NewStore()
	id := types.MustParseObjectID("0x500")
	require.NoError(t, store.Create(newTestObject("0x500", []byte{1})))
	require.NoError(t, store.Share(id))

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.OwnerShared, got.Owner.Kind)

	// 共享对象仍然可写
	assert.NoError(t, store.Update(id, []byte{2}))
}

func TestStoreDeleteTombstone(t *testing.T) {
	store := NewStore()
	id := types.MustParseObjectID("0x600")
	require.NoError(t, store.Create(newTestObject("0x600", []byte{1})))
	store.Commit()

	require.NoError(t, store.Delete(id))

	t.Run("删除后查不到", func(t *testing.T) {
		assert.False(t, store.Exists(id))
		assert.True(t, store.WasDeleted(id))

		_, err := store.Get(id)
		assert.ErrorIs(t, err, types.ErrObjectNotFound)
	})

	t.Run("墓碑阻止同ID重建", func(t *testing.T) {
		err := store.Create(newTestObject("0x600", nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrObjectExists)
	})

	t.Run("重复删除报不存在", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(id), types.ErrObjectNotFound)
	})
}

func TestStoreAllSortedAndStats(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Create(newTestObject("0x30", nil)))
	require.NoError(t, store.Create(newTestObject("0x10", nil)))
	require.NoError(t, store.Create(newTestObject("0x20", nil)))

	all := store.All()
	require.Len(t, all, 3)
	assert.Equal(t, "0x10", all[0].ID.String())
	assert.Equal(t, "0x20", all[1].ID.String())
	assert.Equal(t, "0x30", all[2].ID.String())
	assert.Equal(t, 3, store.Len())

	require.NoError(t, store.Delete(types.MustParseObjectID("0x20")))

	st := store.Stats()
	assert.Equal(t, 2, st.Live)
	assert.Equal(t, 1, st.Tombstones)
	assert.Equal(t, 3, st.Pending)
}

func TestStoreReset(t *testing.T) {
	store := NewStore()
	id := types.MustParseObjectID("0x700")
	require.NoError(t, store.Create(newTestObject("0x700", []byte{1})))
	require.NoError(t, store.Delete(id))
	require.NoError(t, store.StageReceive(types.MustParseObjectID("0x1"), types.MustParseObjectID("0x2"), []byte("v")))

	store.Reset()

	st := store.Stats()
	assert.Equal(t, Stats{}, st)
	assert.False(t, store.WasDeleted(id), "重置后墓碑一并清空")

	// 重置后同ID可以重新创建
	assert.NoError(t, store.Create(newTestObject("0x700", nil)))
}
