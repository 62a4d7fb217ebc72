package sandbox

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventcfg "github.com/sandvm/v1/internal/config/event"
	sandboxcfg "github.com/sandvm/v1/internal/config/sandbox"
	eventimpl "github.com/sandvm/v1/internal/core/infrastructure/event"
	"github.com/sandvm/v1/internal/core/vm/testutil"
	eventif "github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/types"
)

// testSender 测试环境的默认发送者
var testSender = testutil.TestAddress(0xA1)

// newTestEnv 组建一套完整的测试环境，默认发送者固定、纪元为5
func newTestEnv(t *testing.T, bus eventif.EventBus) *Environment {
	t.Helper()

	senderHex := testSender.Hex()
	epoch := uint64(5)
	cfg := sandboxcfg.New(&types.UserSandboxConfig{
		DefaultSender: &senderHex,
		Epoch:         &epoch,
	})

	env, err := New(testutil.NewTestLogger(), cfg, testutil.NewTestVMConfig(), nil, bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close(context.Background()) })
	return env
}

// deployEcho 部署回声合约并返回模块ID
func deployEcho(t *testing.T, env *Environment) types.ModuleID {
	t.Helper()
	addr := testutil.TestAddress(0x03)
	require.NoError(t, env.Deploy(context.Background(), addr, map[string][]byte{
		"echo": testutil.EchoContract("echo"),
	}))
	return types.NewModuleID(addr, "echo")
}

func leU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func TestEnvironmentDeployAndExecute(t *testing.T) {
	env := newTestEnv(t, nil)
	moduleID := deployEcho(t, env)

	t.Run("部署后即可执行调用", func(t *testing.T) {
		s := &types.Script{
			Inputs: []types.Input{types.PureInput([]byte("ping"))},
			Commands: []types.Command{
				types.NewMoveCall(moduleID, "echo", nil, types.InputArg(0)),
			},
		}
		result, err := env.Execute(context.Background(), s, sandboxif.ExecOptions{})
		require.NoError(t, err)
		require.Equal(t, types.ScriptCompleted, result.State)
		require.Len(t, result.CommandResults, 1)
		require.Len(t, result.CommandResults[0], 1)
		assert.Equal(t, []byte("ping"), result.CommandResults[0][0].Bytes)
	})

	t.Run("空模块表拒绝部署", func(t *testing.T) {
		err := env.Deploy(context.Background(), testutil.TestAddress(0x04), nil)
		assert.Error(t, err)
	})

	t.Run("空脚本指针报错", func(t *testing.T) {
		_, err := env.Execute(context.Background(), nil, sandboxif.ExecOptions{})
		assert.Error(t, err)
	})

	t.Run("未注册模块折叠为脚本失败", func(t *testing.T) {
		s := &types.Script{Commands: []types.Command{
			types.NewMoveCall(types.NewModuleID(testutil.TestAddress(0x09), "ghost"), "run", nil),
		}}
		result, err := env.Execute(context.Background(), s, sandboxif.ExecOptions{})
		require.NoError(t, err)
		assert.Equal(t, types.ScriptAborted, result.State)
		assert.Equal(t, types.FailureModuleLoad, result.Effects.Failure.Kind)
	})
}

func TestEnvironmentSeedCoin(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	coin, err := env.SeedCoin(ctx, testSender, 250)
	require.NoError(t, err)

	obj, err := env.ReadObject(ctx, coin)
	require.NoError(t, err)
	assert.Equal(t, types.OwnerAddress, obj.Owner.Kind)
	assert.Equal(t, testSender, obj.Owner.Address)
	assert.Equal(t, leU64(250), obj.Contents)
	assert.Equal(t, uint64(1), obj.Version)

	t.Run("播种ID单调且互不重复", func(t *testing.T) {
		other, err := env.SeedCoin(ctx, testSender, 1)
		require.NoError(t, err)
		assert.NotEqual(t, coin, other)
	})

	t.Run("默认发送者拥有的对象可直接作为输入", func(t *testing.T) {
		s := &types.Script{
			Inputs: []types.Input{
				types.ObjectInput(types.ObjectRef{ID: coin}),
				types.PureInput(leU64(30)),
			},
			Commands: []types.Command{
				types.NewSplitValue(types.InputArg(0), types.InputArg(1)),
			},
		}
		result, err := env.Execute(ctx, s, sandboxif.ExecOptions{})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())

		src, err := env.ReadObject(ctx, coin)
		require.NoError(t, err)
		assert.Equal(t, leU64(220), src.Contents)

		newCoin := result.CommandResults[0][0]
		require.True(t, newCoin.IsObject())
		split, err := env.ReadObject(ctx, newCoin.Ref.ID)
		require.NoError(t, err)
		assert.Equal(t, leU64(30), split.Contents)
		assert.Equal(t, testSender, split.Owner.Address)
	})
}

func TestEnvironmentResetState(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	moduleID := deployEcho(t, env)

	coin, err := env.SeedCoin(ctx, testSender, 100)
	require.NoError(t, err)
	env.AdvanceEpoch()
	require.Equal(t, uint64(6), env.Epoch())

	require.NoError(t, env.ResetState(ctx))

	t.Run("对象清空", func(t *testing.T) {
		_, err := env.ReadObject(ctx, coin)
		assert.ErrorIs(t, err, types.ErrObjectNotFound)
	})

	t.Run("纪元回到配置初值", func(t *testing.T) {
		assert.Equal(t, uint64(5), env.Epoch())
	})

	t.Run("已部署模块保留", func(t *testing.T) {
		s := &types.Script{
			Inputs: []types.Input{types.PureInput([]byte("pong"))},
			Commands: []types.Command{
				types.NewMoveCall(moduleID, "echo", nil, types.InputArg(0)),
			},
		}
		result, err := env.Execute(ctx, s, sandboxif.ExecOptions{})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())
		assert.Equal(t, []byte("pong"), result.CommandResults[0][0].Bytes)
	})
}

func TestEnvironmentDigestDeterminism(t *testing.T) {
	ctx := context.Background()
	script := func() *types.Script {
		return &types.Script{
			Inputs:   []types.Input{types.PureInput([]byte("x"))},
			Commands: []types.Command{types.NewMakeVector(nil, types.InputArg(0))},
		}
	}

	t.Run("同一环境内摘要单调不同", func(t *testing.T) {
		env := newTestEnv(t, nil)
		r1, err := env.Execute(ctx, script(), sandboxif.ExecOptions{})
		require.NoError(t, err)
		r2, err := env.Execute(ctx, script(), sandboxif.ExecOptions{})
		require.NoError(t, err)
		assert.NotEqual(t, r1.Digest, r2.Digest)
	})

	t.Run("重置后摘要序列重放", func(t *testing.T) {
		env := newTestEnv(t, nil)
		r1, err := env.Execute(ctx, script(), sandboxif.ExecOptions{})
		require.NoError(t, err)

		require.NoError(t, env.ResetState(ctx))
		r2, err := env.Execute(ctx, script(), sandboxif.ExecOptions{})
		require.NoError(t, err)
		assert.Equal(t, r1.Digest, r2.Digest)
	})

	t.Run("两个同配置环境摘要一致", func(t *testing.T) {
		a := newTestEnv(t, nil)
		b := newTestEnv(t, nil)
		ra, err := a.Execute(ctx, script(), sandboxif.ExecOptions{})
		require.NoError(t, err)
		rb, err := b.Execute(ctx, script(), sandboxif.ExecOptions{})
		require.NoError(t, err)
		assert.Equal(t, ra.Digest, rb.Digest)
	})

	t.Run("显式摘要原样采用", func(t *testing.T) {
		env := newTestEnv(t, nil)
		want := testutil.TestDigest(0xD1)
		result, err := env.Execute(ctx, script(), sandboxif.ExecOptions{Digest: want})
		require.NoError(t, err)
		assert.Equal(t, want, result.Digest)
	})
}

func TestEnvironmentBorrowStore(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("归还函数幂等", func(t *testing.T) {
		store, release := env.BorrowStore()
		require.NotNil(t, store)
		release()
		release()

		// 锁已释放，后续借用不阻塞
		_, err := env.SeedCoin(ctx, testSender, 1)
		assert.NoError(t, err)
	})

	t.Run("借用期间执行请求排队", func(t *testing.T) {
		_, release := env.BorrowStore()

		done := make(chan struct{})
		go func() {
			defer close(done)
			s := &types.Script{Commands: []types.Command{types.NewMakeVector(nil)}}
			_, _ = env.Execute(ctx, s, sandboxif.ExecOptions{})
		}()

		select {
		case <-done:
			t.Fatal("执行没有等待仓库归还")
		case <-time.After(50 * time.Millisecond):
		}

		release()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("归还后执行没有继续")
		}
	})
}

func TestEnvironmentMemoryStats(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.SeedCoin(ctx, testSender, 10)
	require.NoError(t, err)
	_, err = env.SeedCoin(ctx, testSender, 20)
	require.NoError(t, err)

	assert.Equal(t, "core.sandbox", env.ModuleName())

	stats := env.CollectMemoryStats()
	assert.Equal(t, "core.sandbox", stats.Module)
	assert.Equal(t, int64(2), stats.Objects)
	assert.Equal(t, int64(16), stats.ApproxBytes)
	assert.Equal(t, int64(0), stats.QueueLength)
}

func TestEnvironmentEvents(t *testing.T) {
	bus := eventimpl.New(eventcfg.New(nil))
	env := newTestEnv(t, bus)
	ctx := context.Background()

	var executed []*types.ScriptResult
	require.NoError(t, bus.Subscribe(eventif.EventScriptExecuted, func(result *types.ScriptResult) {
		executed = append(executed, result)
	}))

	deployEcho(t, env)
	s := &types.Script{Commands: []types.Command{types.NewMakeVector(nil)}}
	_, err := env.Execute(ctx, s, sandboxif.ExecOptions{})
	require.NoError(t, err)
	require.NoError(t, env.ResetState(ctx))

	require.Len(t, executed, 1)
	assert.Equal(t, types.ScriptCompleted, executed[0].State)

	assert.NotEmpty(t, bus.GetEventHistory(eventif.EventModuleDeployed))
	assert.NotEmpty(t, bus.GetEventHistory(eventif.EventStateReset))
}
