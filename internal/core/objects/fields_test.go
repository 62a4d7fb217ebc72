package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandvm/v1/pkg/types"
)

var u64Tag = types.NewPrimitiveTag(types.TypeKindU64)

func TestDeriveFieldID(t *testing.T) {
	parent := types.MustParseObjectID("0x1000")
	key := []byte("balance")

	t.Run("派生结果确定", func(t *testing.T) {
		a := DeriveFieldID(parent, u64Tag, key)
		b := DeriveFieldID(parent, u64Tag, key)
		assert.Equal(t, a, b)
		assert.False(t, a.IsZero())
	})

	t.Run("父ID或键或标签不同则派生不同", func(t *testing.T) {
		base := DeriveFieldID(parent, u64Tag, key)
		assert.NotEqual(t, base, DeriveFieldID(types.MustParseObjectID("0x1001"), u64Tag, key))
		assert.NotEqual(t, base, DeriveFieldID(parent, u64Tag, []byte("other")))
		assert.NotEqual(t, base, DeriveFieldID(parent, coinTag, key))
	})
}

func TestFieldAddGetRemove(t *testing.T) {
	store := NewStore()
	parent := types.MustParseObjectID("0x1100")
	require.NoError(t, store.Create(newTestObject("0x1100", nil)))
	key := []byte("score")
	value := []byte{42, 0, 0, 0, 0, 0, 0, 0}

	t.Run("添加并读取", func(t *testing.T) {
		require.NoError(t, store.AddField(parent, key, u64Tag, value))
		assert.True(t, store.HasField(parent, key))

		got, err := store.GetField(parent, key, u64Tag)
		require.NoError(t, err)
		assert.Equal(t, value, got)
	})

	t.Run("子对象随字段创建", func(t *testing.T) {
		childID := DeriveFieldID(parent, u64Tag, key)
		child, err := store.Get(childID)
		require.NoError(t, err)
		assert.Equal(t, types.OwnerObject, child.Owner.Kind)
		assert.Equal(t, parent, child.Owner.Parent())
		assert.True(t, child.Type.Equal(u64Tag))
	})

	t.Run("同键重复添加失败", func(t *testing.T) {
		err := store.AddField(parent, key, u64Tag, value)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrObjectExists)
	})

	t.Run("移除返回值且同键可重建", func(t *testing.T) {
		got, err := store.RemoveField(parent, key, u64Tag)
		require.NoError(t, err)
		assert.Equal(t, value, got)
		assert.False(t, store.HasField(parent, key))

		// 字段移除不留墓碑，派生出的同一子ID允许重建
		require.NoError(t, store.AddField(parent, key, u64Tag, []byte{7}))
		got, err = store.GetField(parent, key, u64Tag)
		require.NoError(t, err)
		assert.Equal(t, []byte{7}, got)
	})
}

func TestFieldAbsentVersusWrongType(t *testing.T) {
	store := NewStore()
	parent := types.MustParseObjectID("0x1200")
	require.NoError(t, store.Create(newTestObject("0x1200", nil)))
	require.NoError(t, store.AddField(parent, []byte("k"), u64Tag, []byte{1}))

	t.Run("字段不存在", func(t *testing.T) {
		_, err := store.GetField(parent, []byte("missing"), u64Tag)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrFieldNotFound)
		assert.NotErrorIs(t, err, types.ErrFieldWrongType)
	})

	t.Run("字段存在但类型不符", func(t *testing.T) {
		_, err := store.GetField(parent, []byte("k"), coinTag)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrFieldWrongType)
		assert.NotErrorIs(t, err, types.ErrFieldNotFound)
	})

	t.Run("零标签跳过类型校验", func(t *testing.T) {
		got, err := store.GetField(parent, []byte("k"), types.TypeTag{})
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, got)
	})

	t.Run("移除同样区分两种失败", func(t *testing.T) {
		_, err := store.RemoveField(parent, []byte("k"), coinTag)
		assert.ErrorIs(t, err, types.ErrFieldWrongType)

		_, err = store.RemoveField(parent, []byte("missing"), u64Tag)
		assert.ErrorIs(t, err, types.ErrFieldNotFound)
	})
}

func TestFieldMutBumpsParentAndChild(t *testing.T) {
	store := NewStore()
	parent := types.MustParseObjectID("0x1300")
	require.NoError(t, store.Create(newTestObject("0x1300", nil)))
	require.NoError(t, store.AddField(parent, []byte("k"), u64Tag, []byte{1}))
	store.Commit()

	_, err := store.GetFieldMut(parent, []byte("k"), u64Tag)
	require.NoError(t, err)

	changes := store.Commit()
	require.Len(t, changes, 2, "可变借用应让父对象与子对象各记一次突变")
	for _, c := range changes {
		assert.Equal(t, types.ChangeMutated, c.Kind)
		assert.Equal(t, uint64(2), c.Version)
	}
}

func TestFieldSetWritesBack(t *testing.T) {
	store := NewStore()
	parent := types.MustParseObjectID("0x1350")
	require.NoError(t, store.Create(newTestObject("0x1350", nil)))
	require.NoError(t, store.AddField(parent, []byte("k"), u64Tag, []byte{1}))

	require.NoError(t, store.SetField(parent, []byte("k"), u64Tag, []byte{9}))

	got, err := store.GetField(parent, []byte("k"), u64Tag)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got)

	assert.ErrorIs(t, store.SetField(parent, []byte("nope"), u64Tag, nil), types.ErrFieldNotFound)
}

func TestFieldChildrenOf(t *testing.T) {
	store := NewStore()
	parent := types.MustParseObjectID("0x1400")
	require.NoError(t, store.Create(newTestObject("0x1400", nil)))

	assert.Empty(t, store.ChildrenOf(parent))

	require.NoError(t, store.AddField(parent, []byte("b"), u64Tag, []byte{2}))
	require.NoError(t, store.AddField(parent, []byte("a"), u64Tag, []byte{1}))
	require.NoError(t, store.AddField(parent, []byte("c"), u64Tag, []byte{3}))

	children := store.ChildrenOf(parent)
	require.Len(t, children, 3)
	assert.Equal(t, DeriveFieldID(parent, u64Tag, []byte("a")), children[0], "子对象按键序枚举")
	assert.Equal(t, DeriveFieldID(parent, u64Tag, []byte("b")), children[1])
	assert.Equal(t, DeriveFieldID(parent, u64Tag, []byte("c")), children[2])

	_, err := store.RemoveField(parent, []byte("b"), u64Tag)
	require.NoError(t, err)
	assert.Len(t, store.ChildrenOf(parent), 2)
}

func TestFieldOnFrozenParent(t *testing.T) {
	store := NewStore()
	parent := types.MustParseObjectID("0x1500")
	require.NoError(t, store.Create(newTestObject("0x1500", nil)))
	require.NoError(t, store.AddField(parent, []byte("k"), u64Tag, []byte{1}))
	require.NoError(t, store.Freeze(parent))

	assert.ErrorIs(t, store.AddField(parent, []byte("k2"), u64Tag, nil), types.ErrImmutable)
	_, err := store.GetFieldMut(parent, []byte("k"), u64Tag)
	assert.ErrorIs(t, err, types.ErrImmutable)
	_, err = store.RemoveField(parent, []byte("k"), u64Tag)
	assert.ErrorIs(t, err, types.ErrImmutable)

	// 只读访问不受冻结影响
	got, err := store.GetField(parent, []byte("k"), u64Tag)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)
}

func TestFieldOnMissingParent(t *testing.T) {
	store := NewStore()
	ghost := types.MustParseObjectID("0xeeee")

	assert.ErrorIs(t, store.AddField(ghost, []byte("k"), u64Tag, nil), types.ErrObjectNotFound)
	assert.False(t, store.HasField(ghost, []byte("k")))
	assert.Empty(t, store.ChildrenOf(ghost))
}
