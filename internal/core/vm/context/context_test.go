package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandvm/v1/internal/core/objects"
	"github.com/sandvm/v1/pkg/types"
)

func newTestCtx() *ExecutionContext {
	digest, _ := types.ParseDigest("0xabcdef")
	return NewExecutionContext(
		digest,
		types.MustParseAddress("0xcafe"),
		3,
		types.DefaultNativeConfig(),
		objects.NewStore(),
	)
}

func TestContextRoundTrip(t *testing.T) {
	ec := newTestCtx()
	ctx := WithExecutionContext(context.Background(), ec)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, ec, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok, "未附加上下文时取回失败")
}

func TestBeginCommandResetsSlots(t *testing.T) {
	ec := newTestCtx()
	mod := types.NewModuleID(types.MustParseAddress("0x2"), "coin")

	ec.BeginCommand(mod, "mint", [][]byte{{1}, {2}})
	ec.Results = append(ec.Results, []byte("r1"))
	before := ec.State.FreshCounter
	ec.NextFreshID()

	ec.BeginCommand(mod, "burn", [][]byte{{3}})

	assert.Equal(t, [][]byte{{3}}, ec.Args, "参数槽位随命令更换")
	assert.Nil(t, ec.Results, "结果槽位随命令清空")
	assert.Equal(t, before+1, ec.State.FreshCounter, "计数器跨命令连续")
	assert.Equal(t, "burn", ec.Function)
}

func TestTakeResults(t *testing.T) {
	ec := newTestCtx()
	ec.Results = [][]byte{[]byte("a"), []byte("b")}

	got := ec.TakeResults()
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)
	assert.Nil(t, ec.Results)
}

func TestAbortWithCallSite(t *testing.T) {
	ec := newTestCtx()
	mod := types.NewModuleID(types.MustParseAddress("0x7"), "vault")
	ec.BeginCommand(mod, "withdraw", nil)

	abort := ec.AbortWith(42)
	assert.Equal(t, uint64(42), abort.Code)
	assert.Equal(t, mod, abort.Module)
	assert.Equal(t, "withdraw", abort.Function)

	info := abort.Info()
	assert.Equal(t, uint64(42), info.Code)
}

func TestTraceSharedSequence(t *testing.T) {
	ec := newTestCtx()
	id := types.MustParseObjectID("0x99")

	ec.RecordNative("object_new", 0)
	ec.RecordObject(id, types.ObjectAccessCreate)
	ec.RecordNative("object_transfer", 0)

	require.Len(t, ec.Trace.Natives, 2)
	require.Len(t, ec.Trace.Objects, 1)
	assert.Equal(t, 0, ec.Trace.Natives[0].Seq)
	assert.Equal(t, 1, ec.Trace.Objects[0].Seq, "原生调用与对象触达共用序号")
	assert.Equal(t, 2, ec.Trace.Natives[1].Seq)
}

func TestEmitEvent(t *testing.T) {
	ec := newTestCtx()
	mod := types.NewModuleID(types.MustParseAddress("0x2"), "coin")
	ec.BeginCommand(mod, "mint", nil)

	tag := types.MustParseTypeTag("0x2::coin::MintEvent")
	data := []byte{1, 2, 3}
	ec.EmitEvent(tag, data)
	ec.EmitEvent(tag, nil)

	require.Len(t, ec.Events, 2)
	assert.Equal(t, 0, ec.Events[0].Seq)
	assert.Equal(t, 1, ec.Events[1].Seq)
	assert.Equal(t, mod, ec.Events[0].Module)
	assert.Equal(t, ec.Sender, ec.Events[0].Sender)

	// 事件数据为拷贝
	data[0] = 0xFF
	assert.Equal(t, byte(1), ec.Events[0].Data[0])
}
