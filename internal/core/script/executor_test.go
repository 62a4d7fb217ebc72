package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandvm/v1/internal/core/infrastructure/crypto/hash"
	"github.com/sandvm/v1/internal/core/objects"
	"github.com/sandvm/v1/internal/core/registry"
	"github.com/sandvm/v1/internal/core/vm/engine"
	vmctx "github.com/sandvm/v1/internal/core/vm/context"
	"github.com/sandvm/v1/internal/core/vm/natives"
	"github.com/sandvm/v1/internal/core/vm/testutil"
	"github.com/sandvm/v1/pkg/types"
)

// harness 一套完整的脚本执行环境：运行时、注册表、引擎与仓库
type harness struct {
	engine   *engine.Service
	registry *registry.Service
	store    *objects.Store
	sender   types.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rt := testutil.NewTestRuntime()
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	reg := registry.New(testutil.NewTestLogger(), rt)
	nats := natives.New(testutil.NewTestLogger(), hash.NewHashService())
	eng, err := engine.New(testutil.NewTestLogger(), rt, reg, nats)
	require.NoError(t, err)

	return &harness{
		engine:   eng,
		registry: reg,
		store:    objects.NewStore(),
		sender:   testutil.TestAddress(0xA1),
	}
}

// newExecutor 为一段脚本准备执行器与执行上下文
func (h *harness) newExecutor(s types.Script, opts Options) (*Executor, *vmctx.ExecutionContext) {
	cfg := testutil.NewTestVMConfig().NativeConfig()
	ec := vmctx.NewExecutionContext(testutil.TestDigest(0xAB), h.sender, 7, cfg, h.store)
	ex := New(testutil.NewTestLogger(), h.engine, h.registry, h.store, ec, s, opts)
	return ex, ec
}

// run 执行脚本并断言执行器本身未被误用
func (h *harness) run(t *testing.T, s types.Script, opts Options) *types.ScriptResult {
	t.Helper()
	ex, _ := h.newExecutor(s, opts)
	result, err := ex.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

// seedCoin 预置一个已提交的余额对象
func (h *harness) seedCoin(t *testing.T, id types.ObjectID, owner types.Owner, balance uint64) {
	t.Helper()
	require.NoError(t, h.store.Create(&types.Object{
		ID:       id,
		Type:     types.GasCoinType(),
		Owner:    owner,
		Contents: coinContents(balance),
	}))
	h.store.Commit()
}

// seedObject 预置一个已提交的普通对象
func (h *harness) seedObject(t *testing.T, obj *types.Object) {
	t.Helper()
	require.NoError(t, h.store.Create(obj))
	h.store.Commit()
}

// balanceOf 读出余额对象的当前余额
func (h *harness) balanceOf(t *testing.T, id types.ObjectID) uint64 {
	t.Helper()
	obj, err := h.store.Get(id)
	require.NoError(t, err)
	bal, ok := coinBalance(obj.Contents)
	require.True(t, ok)
	return bal
}

func (h *harness) mustLoad(t *testing.T, id types.ModuleID, bytecode []byte) {
	t.Helper()
	require.NoError(t, h.registry.Load(context.Background(), []types.ModuleBytes{{ID: id, Bytecode: bytecode}}))
}

func oid(marker byte) types.ObjectID {
	var id types.ObjectID
	id[0] = marker
	return id
}

// changeFor 在变更清单中找指定对象的条目
func changeFor(t *testing.T, changes []types.ObjectChange, id types.ObjectID) types.ObjectChange {
	t.Helper()
	for _, c := range changes {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("变更清单中找不到对象 %s", id)
	return types.ObjectChange{}
}

func TestExecutorStateMachine(t *testing.T) {
	h := newHarness(t)

	t.Run("初始状态为就绪", func(t *testing.T) {
		ex, _ := h.newExecutor(types.Script{}, Options{})
		assert.Equal(t, types.ScriptReady, ex.Status())
	})

	t.Run("完成后拒绝复用", func(t *testing.T) {
		ex, _ := h.newExecutor(types.Script{}, Options{})
		result, err := ex.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.ScriptCompleted, ex.Status())
		assert.True(t, result.IsSuccess())

		_, err = ex.Run(context.Background())
		assert.ErrorIs(t, err, types.ErrScriptConsumed)
	})

	t.Run("中止后同样拒绝复用", func(t *testing.T) {
		s := types.Script{Commands: []types.Command{
			types.NewMakeVector(nil, types.InputArg(9)),
		}}
		ex, _ := h.newExecutor(s, Options{})
		result, err := ex.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.ScriptAborted, ex.Status())
		assert.Equal(t, types.ScriptAborted, result.State)

		_, err = ex.Run(context.Background())
		assert.ErrorIs(t, err, types.ErrScriptConsumed)
	})
}

func TestExecutorEmptyScript(t *testing.T) {
	h := newHarness(t)

	result := h.run(t, types.Script{}, Options{})
	assert.Equal(t, types.ScriptCompleted, result.State)
	require.NotNil(t, result.Effects)
	assert.Equal(t, types.ExecutionSuccess, result.Effects.Status)
	assert.Empty(t, result.Effects.Changes)
	assert.Empty(t, result.Effects.Events)
	assert.Nil(t, result.Effects.GasObject)
	assert.Empty(t, result.CommandResults)
	assert.Equal(t, testutil.TestDigest(0xAB), result.Digest)
}

func TestExecutorGasPlaceholder(t *testing.T) {
	t.Run("不引用燃料则不产生燃料对象", func(t *testing.T) {
		h := newHarness(t)
		s := types.Script{
			Inputs:   []types.Input{types.PureInput([]byte("ab"))},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{GasBudget: 1000})
		assert.True(t, result.IsSuccess())
		assert.Nil(t, result.Effects.GasObject)
		assert.Empty(t, result.Effects.Changes)
		assert.Equal(t, 0, h.store.Len())
	})

	t.Run("合成燃料对象并在末尾落账", func(t *testing.T) {
		h := newHarness(t)
		s := types.Script{
			Inputs: []types.Input{types.PureInput(coinContents(100))},
			Commands: []types.Command{
				types.NewSplitValue(types.GasArg(), types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{GasBudget: 1000})
		require.True(t, result.IsSuccess())
		require.NotNil(t, result.Effects.GasObject)
		gasID := *result.Effects.GasObject

		// 燃料对象以落账变更出现，创建本身不进入效果
		gasChange := changeFor(t, result.Effects.Changes, gasID)
		assert.Equal(t, types.ChangeMutated, gasChange.Kind)
		assert.Equal(t, uint64(1), gasChange.PrevVersion)
		assert.Equal(t, uint64(2), gasChange.Version)

		assert.Equal(t, uint64(900), h.balanceOf(t, gasID))

		// 拆出的新对象归发送者所有
		require.Len(t, result.CommandResults, 1)
		require.Len(t, result.CommandResults[0], 1)
		newCoin := result.CommandResults[0][0]
		require.True(t, newCoin.IsObject())
		assert.Equal(t, uint64(100), h.balanceOf(t, newCoin.Ref.ID))
		assert.Equal(t, types.ChangeCreated, changeFor(t, result.Effects.Changes, newCoin.Ref.ID).Kind)
	})

	t.Run("失败回滚连燃料占位一起消失", func(t *testing.T) {
		h := newHarness(t)
		s := types.Script{
			Inputs: []types.Input{types.PureInput(coinContents(10))},
			Commands: []types.Command{
				types.NewSplitValue(types.GasArg(), types.InputArg(0)),
				types.NewMakeVector(nil, types.ResultArg(9)),
			},
		}
		result := h.run(t, s, Options{GasBudget: 1000})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Nil(t, result.Effects.GasObject)
		assert.Equal(t, 0, h.store.Len())
	})

	t.Run("预置燃料对象直接使用", func(t *testing.T) {
		h := newHarness(t)
		gas := oid(0x51)
		h.seedCoin(t, gas, types.OwnedBy(h.sender), 500)

		s := types.Script{
			Inputs: []types.Input{types.PureInput(coinContents(50))},
			Commands: []types.Command{
				types.NewSplitValue(types.GasArg(), types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{GasRef: &types.ObjectRef{ID: gas}})
		require.True(t, result.IsSuccess())
		require.NotNil(t, result.Effects.GasObject)
		assert.Equal(t, gas, *result.Effects.GasObject)
		assert.Equal(t, uint64(450), h.balanceOf(t, gas))
		assert.Equal(t, types.ChangeMutated, changeFor(t, result.Effects.Changes, gas).Kind)
	})

	t.Run("预置燃料对象版本不匹配", func(t *testing.T) {
		h := newHarness(t)
		gas := oid(0x52)
		h.seedCoin(t, gas, types.OwnedBy(h.sender), 500)

		s := types.Script{Commands: []types.Command{
			types.NewSplitValue(types.GasArg()),
		}}
		result := h.run(t, s, Options{GasRef: &types.ObjectRef{ID: gas, Version: 9}})
		assert.Equal(t, types.ScriptAborted, result.State)
		require.NotNil(t, result.Effects.Failure)
		assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
		assert.Equal(t, -1, result.Effects.Failure.Command)
	})
}

func TestExecutorAbortRollback(t *testing.T) {
	h := newHarness(t)
	abortID := testutil.TestModuleID(0x03, "bank")
	h.mustLoad(t, abortID, testutil.AbortContract("withdraw", 42))

	coin := oid(0x61)
	h.seedCoin(t, coin, types.OwnedBy(h.sender), 100)

	s := types.Script{
		Inputs: []types.Input{
			types.ObjectInput(types.ObjectRef{ID: coin}),
			types.PureInput(coinContents(40)),
		},
		Commands: []types.Command{
			types.NewSplitValue(types.InputArg(0), types.InputArg(1)),
			types.NewMoveCall(abortID, "withdraw", nil),
		},
	}
	result := h.run(t, s, Options{})

	assert.Equal(t, types.ScriptAborted, result.State)
	require.NotNil(t, result.Effects.Failure)
	assert.Equal(t, types.FailureAbort, result.Effects.Failure.Kind)
	assert.Equal(t, 1, result.Effects.Failure.Command)
	require.NotNil(t, result.Effects.Failure.Abort)
	assert.Equal(t, uint64(42), result.Effects.Failure.Abort.Code)
	assert.Equal(t, abortID, result.Effects.Failure.Abort.Module)

	// 失败效果不携带变更与事件，已完成命令的结果保留
	assert.Empty(t, result.Effects.Changes)
	assert.Empty(t, result.Effects.Events)
	require.Len(t, result.CommandResults, 1)

	// 仓库回滚：拆分撤销，新对象消失
	assert.Equal(t, uint64(100), h.balanceOf(t, coin))
	assert.Equal(t, 1, h.store.Len())

	// 轨迹保留完整执行痕迹
	require.NotNil(t, result.Trace)
	assert.NotEmpty(t, result.Trace.Natives)
	assert.NotEmpty(t, result.Trace.Objects)
}

func TestExecutorOwnershipChecks(t *testing.T) {
	t.Run("他人对象拒绝作为输入", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x71)
		h.seedCoin(t, coin, types.OwnedBy(testutil.TestAddress(0xEE)), 10)

		s := types.Script{
			Inputs:   []types.Input{types.ObjectInput(types.ObjectRef{ID: coin})},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
		assert.Equal(t, 0, result.Effects.Failure.Command)
	})

	t.Run("版本钉住不匹配即拒绝", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x72)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)

		s := types.Script{
			Inputs:   []types.Input{types.ObjectInput(types.ObjectRef{ID: coin, Version: 5})},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
	})

	t.Run("共享输入要求对象确为共享", func(t *testing.T) {
		h := newHarness(t)
		owned := oid(0x73)
		h.seedCoin(t, owned, types.OwnedBy(h.sender), 10)

		s := types.Script{
			Inputs:   []types.Input{types.SharedInput(owned, true)},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
	})

	t.Run("共享对象可被任意发送者引用", func(t *testing.T) {
		h := newHarness(t)
		board := oid(0x74)
		require.NoError(t, h.store.Create(&types.Object{
			ID:       board,
			Type:     types.MustParseTypeTag("0x5::game::Board"),
			Owner:    types.SharedOwner(),
			Contents: []byte{1, 2, 3},
		}))
		h.store.Commit()

		s := types.Script{
			Inputs:   []types.Input{types.SharedInput(board, false)},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())
	})
}
