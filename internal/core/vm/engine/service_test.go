package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandvm/v1/internal/core/infrastructure/crypto/hash"
	"github.com/sandvm/v1/internal/core/objects"
	"github.com/sandvm/v1/internal/core/registry"
	vmctx "github.com/sandvm/v1/internal/core/vm/context"
	"github.com/sandvm/v1/internal/core/vm/natives"
	"github.com/sandvm/v1/internal/core/vm/testutil"
	"github.com/sandvm/v1/pkg/types"
)

// newTestEngine 组一套完整的执行装置：运行时 + 注册表 + 原生函数
func newTestEngine(t *testing.T, user *types.UserVMConfig) (*Service, *registry.Service) {
	t.Helper()
	rt := testutil.NewTestRuntimeWith(user)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	reg := registry.New(testutil.NewTestLogger(), rt)
	nats := natives.New(testutil.NewTestLogger(), hash.NewHashService())
	eng, err := New(testutil.NewTestLogger(), rt, reg, nats)
	require.NoError(t, err)
	return eng, reg
}

// newCallContext 准备带执行上下文的ctx
func newCallContext(cfg types.NativeConfig) (context.Context, *vmctx.ExecutionContext, *objects.Store) {
	store := objects.NewStore()
	ec := vmctx.NewExecutionContext(testutil.TestDigest(0xAB), testutil.TestAddress(0xA1), 7, cfg, store)
	return vmctx.WithExecutionContext(context.Background(), ec), ec, store
}

func mustLoad(t *testing.T, reg *registry.Service, id types.ModuleID, bytecode []byte) {
	t.Helper()
	require.NoError(t, reg.Load(context.Background(), []types.ModuleBytes{{ID: id, Bytecode: bytecode}}))
}

func TestEngineCallBasics(t *testing.T) {
	eng, reg := newTestEngine(t, nil)

	noopID := testutil.TestModuleID(0x01, "noop")
	echoID := testutil.TestModuleID(0x02, "echo")
	abortID := testutil.TestModuleID(0x03, "fail")
	mustLoad(t, reg, noopID, testutil.NoopContract("run"))
	mustLoad(t, reg, echoID, testutil.EchoContract("echo"))
	mustLoad(t, reg, abortID, testutil.AbortContract("blow_up", 42))

	t.Run("空入口调用成功", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, noopID, "run", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, types.ExecutionSuccess, outcome.Status)
		assert.Nil(t, outcome.Abort)
		assert.Empty(t, outcome.Results)
	})

	t.Run("参数经宿主函数回声为结果", func(t *testing.T) {
		ctx, ec, _ := newCallContext(types.DefaultNativeConfig())
		payload := []byte("hello sandbox")

		outcome, err := eng.Call(ctx, echoID, "echo", nil, [][]byte{payload})
		require.NoError(t, err)
		assert.Equal(t, types.ExecutionSuccess, outcome.Status)
		require.Len(t, outcome.Results, 1)
		assert.Equal(t, payload, outcome.Results[0])

		// 原生调用轨迹按观察顺序记录
		var names []string
		for _, entry := range ec.Trace.Natives {
			names = append(names, entry.Name)
		}
		assert.Equal(t, []string{"arg_read", "result_emit"}, names)
	})

	t.Run("合约中止折叠为调用结果", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, abortID, "blow_up", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, types.ExecutionFailure, outcome.Status)
		require.NotNil(t, outcome.Abort)
		assert.Equal(t, uint64(42), outcome.Abort.Code)
		assert.Equal(t, abortID, outcome.Abort.Module)
		assert.Equal(t, "blow_up", outcome.Abort.Function)
	})

	t.Run("中止后可以继续发起新调用", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, abortID, "blow_up", nil, nil)
		require.NoError(t, err)
		require.NotNil(t, outcome.Abort)

		outcome, err = eng.Call(ctx, noopID, "run", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, types.ExecutionSuccess, outcome.Status)
		assert.Nil(t, outcome.Abort)
	})

	t.Run("未装载模块归类为装载失败", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		_, err := eng.Call(ctx, testutil.TestModuleID(0x99, "ghost"), "run", nil, nil)
		require.Error(t, err)
		assert.Equal(t, types.FailureModuleLoad, types.FailureKindOf(err))
	})

	t.Run("函数不存在归类为找不到函数", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		_, err := eng.Call(ctx, noopID, "no_such_entry", nil, nil)
		require.Error(t, err)
		assert.Equal(t, types.FailureFunctionNotFound, types.FailureKindOf(err))
	})

	t.Run("带WASM参数的导出不是合约入口", func(t *testing.T) {
		badID := testutil.TestModuleID(0x04, "bad")
		mustLoad(t, reg, badID, testutil.BadSignatureContract("typed_entry"))

		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		_, err := eng.Call(ctx, badID, "typed_entry", nil, nil)
		require.Error(t, err)
		assert.Equal(t, types.FailureFunctionNotFound, types.FailureKindOf(err))
	})

	t.Run("缺少执行上下文直接报内部错误", func(t *testing.T) {
		_, err := eng.Call(context.Background(), noopID, "run", nil, nil)
		require.Error(t, err)
		assert.Equal(t, types.FailureInternal, types.FailureKindOf(err))
	})
}

func TestEngineObjectNatives(t *testing.T) {
	eng, reg := newTestEngine(t, nil)

	createID := testutil.TestModuleID(0x01, "creator")
	transferID := testutil.TestModuleID(0x02, "mover")
	mustLoad(t, reg, createID, testutil.ObjectContract("create"))
	mustLoad(t, reg, transferID, testutil.TransferContract("create_and_move"))

	t.Run("合约创建的对象归发送者所有", func(t *testing.T) {
		ctx, ec, store := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, createID, "create", nil, nil)
		require.NoError(t, err)
		require.Equal(t, types.ExecutionSuccess, outcome.Status)

		require.Equal(t, 1, store.Len())
		obj := store.All()[0]
		assert.Equal(t, types.OwnedBy(testutil.TestAddress(0xA1)), obj.Owner)

		// 对象轨迹记录创建访问
		require.NotEmpty(t, ec.Trace.Objects)
		assert.Equal(t, types.ObjectAccessCreate, ec.Trace.Objects[0].Access)
		assert.Equal(t, obj.ID, ec.Trace.Objects[0].ID)

		// 模块轨迹记录被调模块
		assert.Contains(t, ec.Trace.Modules, createID)
	})

	t.Run("合约内转移记录transfer访问", func(t *testing.T) {
		ctx, ec, store := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, transferID, "create_and_move", nil, nil)
		require.NoError(t, err)
		require.Equal(t, types.ExecutionSuccess, outcome.Status)

		require.Equal(t, 1, store.Len())
		assert.Equal(t, types.OwnedBy(testutil.TestAddress(0xA1)), store.All()[0].Owner)

		var kinds []types.ObjectAccessKind
		for _, entry := range ec.Trace.Objects {
			kinds = append(kinds, entry.Access)
		}
		assert.Equal(t, []types.ObjectAccessKind{types.ObjectAccessCreate, types.ObjectAccessTransfer}, kinds)
	})
}

func TestEngineCryptoNatives(t *testing.T) {
	eng, reg := newTestEngine(t, nil)

	verifyID := testutil.TestModuleID(0x01, "verifier")
	hashID := testutil.TestModuleID(0x02, "hasher")
	input := []byte("sandbox hash input")
	mustLoad(t, reg, verifyID, testutil.CryptoContract("check", "ed25519_verify"))
	mustLoad(t, reg, hashID, testutil.HashContract("digest", "hash_sha256", input))

	t.Run("宽容模式形状合法即判真", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, verifyID, "check", nil, nil)
		require.NoError(t, err)
		require.Equal(t, types.ExecutionSuccess, outcome.Status)
		require.Len(t, outcome.Results, 1)
		require.Len(t, outcome.Results[0], 4)
		assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(outcome.Results[0]))
	})

	t.Run("严格模式以保留码中止", func(t *testing.T) {
		cfg := types.DefaultNativeConfig()
		cfg.CryptoMode = types.CryptoStrict

		ctx, _, _ := newCallContext(cfg)
		outcome, err := eng.Call(ctx, verifyID, "check", nil, nil)
		require.NoError(t, err)
		require.Equal(t, types.ExecutionFailure, outcome.Status)
		require.NotNil(t, outcome.Abort)
		assert.Equal(t, types.AbortUnsupportedCrypto, outcome.Abort.Code)
	})

	t.Run("哈希原生函数产出真实摘要", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, hashID, "digest", nil, nil)
		require.NoError(t, err)
		require.Equal(t, types.ExecutionSuccess, outcome.Status)
		require.Len(t, outcome.Results, 1)

		want := sha256.Sum256(input)
		assert.Equal(t, want[:], outcome.Results[0])
	})
}

func TestEngineDeterminism(t *testing.T) {
	eng, reg := newTestEngine(t, nil)

	clockID := testutil.TestModuleID(0x01, "clock")
	randomID := testutil.TestModuleID(0x02, "random")
	freshID := testutil.TestModuleID(0x03, "fresh")
	epochID := testutil.TestModuleID(0x04, "epoch")
	mustLoad(t, reg, clockID, testutil.ClockContract("now"))
	mustLoad(t, reg, randomID, testutil.RandomContract("roll"))
	mustLoad(t, reg, freshID, testutil.FreshIDContract("mint"))
	mustLoad(t, reg, epochID, testutil.EpochContract("which"))

	t.Run("合约时钟按固定步进递增", func(t *testing.T) {
		cfg := types.DefaultNativeConfig()
		ctx, _, _ := newCallContext(cfg)

		outcome, err := eng.Call(ctx, clockID, "now", nil, nil)
		require.NoError(t, err)
		require.Len(t, outcome.Results, 1)
		require.Len(t, outcome.Results[0], 16)

		t0 := binary.LittleEndian.Uint64(outcome.Results[0][:8])
		t1 := binary.LittleEndian.Uint64(outcome.Results[0][8:])
		assert.Equal(t, cfg.ClockBaseMS, t0)
		assert.Equal(t, cfg.ClockBaseMS+cfg.ClockTickMS, t1)
	})

	t.Run("随机流在相同种子与摘要下可复现", func(t *testing.T) {
		run := func() []byte {
			ctx, _, _ := newCallContext(types.DefaultNativeConfig())
			outcome, err := eng.Call(ctx, randomID, "roll", nil, nil)
			require.NoError(t, err)
			require.Len(t, outcome.Results, 1)
			return outcome.Results[0]
		}
		first := run()
		second := run()
		assert.Equal(t, first, second)
		assert.Len(t, first, 16)
	})

	t.Run("新鲜ID由交易摘要派生", func(t *testing.T) {
		run := func(digest types.Digest) []byte {
			store := objects.NewStore()
			ec := vmctx.NewExecutionContext(digest, testutil.TestAddress(0xA1), 7, types.DefaultNativeConfig(), store)
			ctx := vmctx.WithExecutionContext(context.Background(), ec)
			outcome, err := eng.Call(ctx, freshID, "mint", nil, nil)
			require.NoError(t, err)
			require.Len(t, outcome.Results, 1)
			return outcome.Results[0]
		}

		same1 := run(testutil.TestDigest(0xAB))
		same2 := run(testutil.TestDigest(0xAB))
		other := run(testutil.TestDigest(0xCD))
		assert.Equal(t, same1, same2)
		assert.NotEqual(t, same1, other)
	})

	t.Run("纪元号来自执行上下文", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, epochID, "which", nil, nil)
		require.NoError(t, err)
		require.Len(t, outcome.Results, 1)
		assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(outcome.Results[0]))
	})
}

func TestEngineEvents(t *testing.T) {
	eng, reg := newTestEngine(t, nil)

	eventID := testutil.TestModuleID(0x01, "bank")
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	mustLoad(t, reg, eventID, testutil.EventContract("deposit", "0x2::bank::Deposit", payload))

	t.Run("事件携带解析后的类型标签与调用点", func(t *testing.T) {
		ctx, ec, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, eventID, "deposit", nil, nil)
		require.NoError(t, err)
		require.Equal(t, types.ExecutionSuccess, outcome.Status)

		require.Len(t, ec.Events, 1)
		ev := ec.Events[0]
		assert.Equal(t, 0, ev.Seq)
		assert.True(t, ev.Type.Equal(types.NewStructTag(types.MustParseAddress("0x2"), "bank", "Deposit")))
		assert.Equal(t, eventID, ev.Module)
		assert.Equal(t, testutil.TestAddress(0xA1), ev.Sender)
		assert.Equal(t, payload, ev.Data)
	})
}

func TestEngineTypeArgs(t *testing.T) {
	eng, reg := newTestEngine(t, nil)

	noopID := testutil.TestModuleID(0x01, "noop")
	bankID := testutil.TestModuleID(0xAA, "bank")
	mustLoad(t, reg, noopID, testutil.NoopContract("run"))
	mustLoad(t, reg, bankID, testutil.NoopContract("init"))

	t.Run("原生类型参数直接通过", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		outcome, err := eng.Call(ctx, noopID, "run",
			[]types.TypeTag{types.NewPrimitiveTag(types.TypeKindU64)}, nil)
		require.NoError(t, err)
		assert.Equal(t, types.ExecutionSuccess, outcome.Status)
	})

	t.Run("结构类型参数要求定义模块在表", func(t *testing.T) {
		ctx, ec, _ := newCallContext(types.DefaultNativeConfig())
		coinTag := types.NewStructTag(testutil.TestAddress(0xAA), "bank", "Coin")
		outcome, err := eng.Call(ctx, noopID, "run", []types.TypeTag{coinTag}, nil)
		require.NoError(t, err)
		assert.Equal(t, types.ExecutionSuccess, outcome.Status)

		// 类型参数解析也计入模块轨迹
		assert.Contains(t, ec.Trace.Modules, bankID)
	})

	t.Run("未装载模块的结构类型解析失败", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		ghostTag := types.NewStructTag(testutil.TestAddress(0xBB), "ghost", "T")
		_, err := eng.Call(ctx, noopID, "run", []types.TypeTag{ghostTag}, nil)
		require.Error(t, err)
		assert.Equal(t, types.FailureTypeResolution, types.FailureKindOf(err))
	})

	t.Run("向量参数递归解析元素类型", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		nested := types.NewVectorTag(types.NewStructTag(testutil.TestAddress(0xBB), "ghost", "T"))
		_, err := eng.Call(ctx, noopID, "run", []types.TypeTag{nested}, nil)
		require.Error(t, err)
		assert.Equal(t, types.FailureTypeResolution, types.FailureKindOf(err))
	})
}

func TestEngineTimeout(t *testing.T) {
	eng, reg := newTestEngine(t, &types.UserVMConfig{
		ExecTimeoutSecs: testutil.IntPtr(1),
	})

	loopID := testutil.TestModuleID(0x01, "spinner")
	mustLoad(t, reg, loopID, testutil.LoopContract("spin"))

	t.Run("死循环被超时强制打断", func(t *testing.T) {
		ctx, _, _ := newCallContext(types.DefaultNativeConfig())
		_, err := eng.Call(ctx, loopID, "spin", nil, nil)
		require.Error(t, err)
		assert.Equal(t, types.FailureInternal, types.FailureKindOf(err))
	})
}
