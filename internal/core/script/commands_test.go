package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandvm/v1/internal/core/vm/testutil"
	"github.com/sandvm/v1/pkg/types"
)

func TestExecutorArgumentErrors(t *testing.T) {
	h := newHarness(t)
	noopID := testutil.TestModuleID(0x01, "noop")
	h.mustLoad(t, noopID, testutil.NoopContract("run"))

	cases := []struct {
		name   string
		script types.Script
		cmd    int
	}{
		{
			name: "输入下标越界",
			script: types.Script{Commands: []types.Command{
				types.NewMakeVector(nil, types.InputArg(5)),
			}},
			cmd: 0,
		},
		{
			name: "结果下标越界",
			script: types.Script{Commands: []types.Command{
				types.NewMakeVector(nil, types.ResultArg(3)),
			}},
			cmd: 0,
		},
		{
			name: "嵌套结果元数不足",
			script: types.Script{
				Inputs: []types.Input{types.PureInput([]byte("x"))},
				Commands: []types.Command{
					types.NewMakeVector(nil, types.InputArg(0)),
					types.NewMakeVector(nil, types.NestedResultArg(0, 2)),
				},
			},
			cmd: 1,
		},
		{
			name: "无结果命令不可被引用",
			script: types.Script{
				Commands: []types.Command{
					types.NewMoveCall(noopID, "run", nil),
					types.NewMakeVector(nil, types.ResultArg(0)),
				},
			},
			cmd: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := h.run(t, tc.script, Options{})
			assert.Equal(t, types.ScriptAborted, result.State)
			require.NotNil(t, result.Effects.Failure)
			assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
			assert.Equal(t, tc.cmd, result.Effects.Failure.Command)
			assert.NotEmpty(t, result.Effects.Failure.Message)
		})
	}
}

func TestExecutorMergeThenSplit(t *testing.T) {
	h := newHarness(t)
	coinA := oid(0x31)
	coinB := oid(0x32)
	h.seedCoin(t, coinA, types.OwnedBy(h.sender), 30)
	h.seedCoin(t, coinB, types.OwnedBy(h.sender), 20)

	// 后续命令看到的是合并后的余额：30+20=50，再拆出45
	s := types.Script{
		Inputs: []types.Input{
			types.ObjectInput(types.ObjectRef{ID: coinA}),
			types.ObjectInput(types.ObjectRef{ID: coinB}),
			types.PureInput(coinContents(45)),
		},
		Commands: []types.Command{
			types.NewMergeValues(types.InputArg(0), types.InputArg(1)),
			types.NewSplitValue(types.InputArg(0), types.InputArg(2)),
		},
	}
	result := h.run(t, s, Options{})
	require.True(t, result.IsSuccess())

	assert.Equal(t, uint64(5), h.balanceOf(t, coinA))
	assert.False(t, h.store.Exists(coinB))

	require.Len(t, result.CommandResults, 2)
	assert.Empty(t, result.CommandResults[0])
	require.Len(t, result.CommandResults[1], 1)
	newCoin := result.CommandResults[1][0]
	require.True(t, newCoin.IsObject())
	assert.Equal(t, uint64(45), h.balanceOf(t, newCoin.Ref.ID))

	assert.Equal(t, types.ChangeMutated, changeFor(t, result.Effects.Changes, coinA).Kind)
	assert.Equal(t, types.ChangeDeleted, changeFor(t, result.Effects.Changes, coinB).Kind)
	assert.Equal(t, types.ChangeCreated, changeFor(t, result.Effects.Changes, newCoin.Ref.ID).Kind)

	t.Run("拆分超出余额以保留中止码中止", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x33)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)

		s := types.Script{
			Inputs: []types.Input{
				types.ObjectInput(types.ObjectRef{ID: coin}),
				types.PureInput(coinContents(11)),
			},
			Commands: []types.Command{
				types.NewSplitValue(types.InputArg(0), types.InputArg(1)),
			},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		require.NotNil(t, result.Effects.Failure)
		assert.Equal(t, types.FailureAbort, result.Effects.Failure.Kind)
		require.NotNil(t, result.Effects.Failure.Abort)
		assert.Equal(t, types.AbortInsufficientBalance, result.Effects.Failure.Abort.Code)
		assert.Equal(t, uint64(10), h.balanceOf(t, coin))
	})

	t.Run("拆分数额必须是8字节纯值", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x34)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)

		s := types.Script{
			Inputs: []types.Input{
				types.ObjectInput(types.ObjectRef{ID: coin}),
				types.PureInput([]byte{1, 2, 3}),
			},
			Commands: []types.Command{
				types.NewSplitValue(types.InputArg(0), types.InputArg(1)),
			},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
	})
}

func TestExecutorTransferObjects(t *testing.T) {
	t.Run("转移到普通地址", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x41)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)
		recipient := testutil.TestAddress(0xB2)

		s := types.Script{
			Inputs: []types.Input{
				types.ObjectInput(types.ObjectRef{ID: coin}),
				types.PureInput(recipient[:]),
			},
			Commands: []types.Command{
				types.NewTransferObjects(types.InputArg(1), types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())

		obj, err := h.store.Get(coin)
		require.NoError(t, err)
		assert.Equal(t, types.OwnedBy(recipient), obj.Owner)
		assert.Equal(t, types.ChangeTransferred, changeFor(t, result.Effects.Changes, coin).Kind)
	})

	t.Run("接收者是活跃对象时附带暂存", func(t *testing.T) {
		h := newHarness(t)
		vault := oid(0x42)
		h.seedObject(t, &types.Object{
			ID:       vault,
			Type:     types.MustParseTypeTag("0x5::vault::Vault"),
			Owner:    types.OwnedBy(h.sender),
			Contents: []byte{0xFF},
		})
		coin := oid(0x43)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 25)

		s := types.Script{
			Inputs: []types.Input{
				types.ObjectInput(types.ObjectRef{ID: coin}),
				types.PureInput(vault[:]),
			},
			Commands: []types.Command{
				types.NewTransferObjects(types.InputArg(1), types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())
		assert.True(t, h.store.HasStagedReceive(vault, coin))

		obj, err := h.store.Get(coin)
		require.NoError(t, err)
		assert.Equal(t, types.Address(vault), obj.Owner.Address)
	})

	t.Run("接收者必须是32字节纯地址", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x44)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)

		s := types.Script{
			Inputs: []types.Input{
				types.ObjectInput(types.ObjectRef{ID: coin}),
				types.PureInput([]byte("short")),
			},
			Commands: []types.Command{
				types.NewTransferObjects(types.InputArg(1), types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
	})
}

func TestExecutorReceivingInput(t *testing.T) {
	// stageTo 预置 接收方对象 + 挂在它名下且已暂存的子对象
	stageTo := func(t *testing.T, h *harness, vault, child types.ObjectID, balance uint64) {
		h.seedObject(t, &types.Object{
			ID:       vault,
			Type:     types.MustParseTypeTag("0x5::vault::Vault"),
			Owner:    types.OwnedBy(h.sender),
			Contents: []byte{0xFF},
		})
		h.seedCoin(t, child, types.OwnedBy(types.Address(vault)), balance)
		require.NoError(t, h.store.StageReceive(vault, child, coinContents(balance)))
	}

	t.Run("接收后对象归发送者", func(t *testing.T) {
		h := newHarness(t)
		vault, child := oid(0x45), oid(0x46)
		stageTo(t, h, vault, child, 25)

		s := types.Script{
			Inputs:   []types.Input{types.ReceivingInput(types.ObjectRef{ID: child})},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())

		obj, err := h.store.Get(child)
		require.NoError(t, err)
		assert.Equal(t, types.OwnedBy(h.sender), obj.Owner)
		assert.False(t, h.store.HasStagedReceive(vault, child))
		assert.Equal(t, types.ChangeTransferred, changeFor(t, result.Effects.Changes, child).Kind)
	})

	t.Run("未暂存的对象无法接收", func(t *testing.T) {
		h := newHarness(t)
		vault, child := oid(0x47), oid(0x48)
		h.seedObject(t, &types.Object{
			ID:       vault,
			Type:     types.MustParseTypeTag("0x5::vault::Vault"),
			Owner:    types.OwnedBy(h.sender),
			Contents: []byte{0xFF},
		})
		h.seedCoin(t, child, types.OwnedBy(types.Address(vault)), 5)

		s := types.Script{
			Inputs:   []types.Input{types.ReceivingInput(types.ObjectRef{ID: child})},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureStore, result.Effects.Failure.Kind)
		assert.Contains(t, result.Effects.Failure.Message, "not staged")
	})

	t.Run("已消费的暂存拒绝再次接收", func(t *testing.T) {
		h := newHarness(t)
		vault, child := oid(0x49), oid(0x4A)
		stageTo(t, h, vault, child, 5)
		_, err := h.store.TakeReceive(vault, child)
		require.NoError(t, err)

		s := types.Script{
			Inputs:   []types.Input{types.ReceivingInput(types.ObjectRef{ID: child})},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureStore, result.Effects.Failure.Kind)
		assert.Contains(t, result.Effects.Failure.Message, "already received")
	})

	t.Run("中止回滚撤销接收消费", func(t *testing.T) {
		h := newHarness(t)
		vault, child := oid(0x4B), oid(0x4C)
		stageTo(t, h, vault, child, 5)

		s := types.Script{
			Inputs: []types.Input{types.ReceivingInput(types.ObjectRef{ID: child})},
			Commands: []types.Command{
				types.NewMakeVector(nil, types.InputArg(0)),
				types.NewMakeVector(nil, types.ResultArg(7)),
			},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)

		// 暂存回到未消费状态，下一段脚本仍可接收
		assert.True(t, h.store.HasStagedReceive(vault, child))
	})
}

func TestExecutorMakeVector(t *testing.T) {
	t.Run("纯字节按序拼接", func(t *testing.T) {
		h := newHarness(t)
		s := types.Script{
			Inputs: []types.Input{
				types.PureInput([]byte("ab")),
				types.PureInput([]byte("cd")),
			},
			Commands: []types.Command{
				types.NewMakeVector(nil, types.InputArg(0), types.InputArg(1)),
			},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())
		require.Len(t, result.CommandResults[0], 1)
		assert.Equal(t, []byte("abcd"), result.CommandResults[0][0].Bytes)
		assert.False(t, result.CommandResults[0][0].IsObject())
	})

	t.Run("对象元素拼接ID并校验类型", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x35)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)

		elem := types.GasCoinType()
		s := types.Script{
			Inputs: []types.Input{types.ObjectInput(types.ObjectRef{ID: coin})},
			Commands: []types.Command{
				types.NewMakeVector(&elem, types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())
		assert.Equal(t, coin[:], result.CommandResults[0][0].Bytes)
	})

	t.Run("对象元素类型不符即中止", func(t *testing.T) {
		h := newHarness(t)
		coin := oid(0x36)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)

		elem := types.MustParseTypeTag("0x5::game::Board")
		s := types.Script{
			Inputs: []types.Input{types.ObjectInput(types.ObjectRef{ID: coin})},
			Commands: []types.Command{
				types.NewMakeVector(&elem, types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureArgument, result.Effects.Failure.Kind)
	})
}

func TestExecutorPublishUpgrade(t *testing.T) {
	t.Run("脚本内发布后即可调用", func(t *testing.T) {
		h := newHarness(t)
		addr := testutil.TestAddress(0x42)
		modID := types.NewModuleID(addr, "noop")

		s := types.Script{Commands: []types.Command{
			types.NewPublish(addr, types.NamedModule{Name: "noop", Code: testutil.NoopContract("run")}),
			types.NewMoveCall(modID, "run", nil),
		}}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())
		assert.True(t, h.registry.Has(modID))
	})

	t.Run("发布非法字节码整体失败", func(t *testing.T) {
		h := newHarness(t)
		addr := testutil.TestAddress(0x43)

		s := types.Script{Commands: []types.Command{
			types.NewPublish(addr, types.NamedModule{Name: "bad", Code: testutil.InvalidBytecode()}),
		}}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureModuleLoad, result.Effects.Failure.Kind)
		assert.Equal(t, 0, result.Effects.Failure.Command)
		assert.False(t, h.registry.Has(types.NewModuleID(addr, "bad")))
	})

	t.Run("脚本内升级模块", func(t *testing.T) {
		h := newHarness(t)
		modID := testutil.TestModuleID(0x44, "logic")
		h.mustLoad(t, modID, testutil.NoopContract("run"))

		s := types.Script{Commands: []types.Command{
			types.NewUpgrade(modID, testutil.NoopContract("run_v2")),
		}}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())

		cm, err := h.registry.Get(context.Background(), modID)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), cm.Version)
	})

	t.Run("升级未注册模块失败", func(t *testing.T) {
		h := newHarness(t)
		ghost := testutil.TestModuleID(0x45, "ghost")

		s := types.Script{Commands: []types.Command{
			types.NewUpgrade(ghost, testutil.NoopContract("run")),
		}}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureModuleLoad, result.Effects.Failure.Kind)
	})
}

func TestExecutorMoveCallFlow(t *testing.T) {
	h := newHarness(t)
	echoID := testutil.TestModuleID(0x02, "echo")
	h.mustLoad(t, echoID, testutil.EchoContract("echo"))

	t.Run("结果值可被后续命令引用", func(t *testing.T) {
		payload := make([]byte, 32)
		copy(payload, "chained-result-payload")

		s := types.Script{
			Inputs: []types.Input{types.PureInput(payload)},
			Commands: []types.Command{
				types.NewMoveCall(echoID, "echo", nil, types.InputArg(0)),
				types.NewMakeVector(nil, types.ResultArg(0)),
			},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())
		require.Len(t, result.CommandResults, 2)
		assert.Equal(t, payload, result.CommandResults[0][0].Bytes)
		assert.Equal(t, payload, result.CommandResults[1][0].Bytes)
	})

	t.Run("对象参数以ID字节传入合约", func(t *testing.T) {
		coin := oid(0x37)
		h.seedCoin(t, coin, types.OwnedBy(h.sender), 10)

		s := types.Script{
			Inputs: []types.Input{types.ObjectInput(types.ObjectRef{ID: coin})},
			Commands: []types.Command{
				types.NewMoveCall(echoID, "echo", nil, types.InputArg(0)),
			},
		}
		result := h.run(t, s, Options{})
		require.True(t, result.IsSuccess())
		assert.Equal(t, coin[:], result.CommandResults[0][0].Bytes)
	})

	t.Run("未注册模块折叠为模块加载失败", func(t *testing.T) {
		ghost := testutil.TestModuleID(0x66, "ghost")
		s := types.Script{Commands: []types.Command{
			types.NewMoveCall(ghost, "run", nil),
		}}
		result := h.run(t, s, Options{})
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureModuleLoad, result.Effects.Failure.Kind)
	})
}
