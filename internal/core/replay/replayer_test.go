package replay

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventcfg "github.com/sandvm/v1/internal/config/event"
	replaycfg "github.com/sandvm/v1/internal/config/replay"
	sandboxcfg "github.com/sandvm/v1/internal/config/sandbox"
	clockimpl "github.com/sandvm/v1/internal/core/infrastructure/clock"
	eventimpl "github.com/sandvm/v1/internal/core/infrastructure/event"
	"github.com/sandvm/v1/internal/core/sandbox"
	"github.com/sandvm/v1/internal/core/vm/testutil"
	eventif "github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/types"
)

// replaySender 回放测试的固定发送者
var replaySender = testutil.TestAddress(0xA7)

func leU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// newReplayEnv 组建发送者与纪元固定的回放环境
func newReplayEnv(t *testing.T, bus eventif.EventBus) *sandbox.Environment {
	t.Helper()

	senderHex := replaySender.Hex()
	epoch := uint64(5)
	cfg := sandboxcfg.New(&types.UserSandboxConfig{
		DefaultSender: &senderHex,
		Epoch:         &epoch,
	})

	env, err := sandbox.New(testutil.NewTestLogger(), cfg, testutil.NewTestVMConfig(), nil, bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close(context.Background()) })
	return env
}

// stubArchive 内存档案桩，统计取数次数
type stubArchive struct {
	mu      sync.Mutex
	records map[string]*types.ReplayRecord
	fetches int
}

func newStubArchive(records ...*types.ReplayRecord) *stubArchive {
	s := &stubArchive{records: make(map[string]*types.ReplayRecord)}
	for _, rec := range records {
		s.records[rec.Tx.Digest] = rec
	}
	return s
}

func (s *stubArchive) FetchRecord(_ context.Context, digest string) (*types.ReplayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	rec, ok := s.records[digest]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", digest)
	}
	return rec, nil
}

func (s *stubArchive) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// recordedFromEffects 把本地效果转写为链上记录形式
func recordedFromEffects(eff *types.Effects) types.RecordedEffects {
	rec := types.RecordedEffects{Status: string(eff.Status)}
	for _, ch := range eff.ChangesOfKind(types.ChangeCreated) {
		rec.Created = append(rec.Created, types.RecordedChange{ID: ch.ID.Hex(), Version: ch.Version})
	}
	for _, ch := range eff.ChangesOfKind(types.ChangeMutated) {
		rec.Mutated = append(rec.Mutated, types.RecordedChange{ID: ch.ID.Hex(), Version: ch.Version})
	}
	for _, ch := range eff.ChangesOfKind(types.ChangeDeleted) {
		rec.Deleted = append(rec.Deleted, types.RecordedChange{ID: ch.ID.Hex(), Version: ch.Version})
	}
	for _, ev := range eff.Events {
		rec.Events = append(rec.Events, types.RecordedEvent{Type: ev.Type.String(), Data: ev.Data})
	}
	if eff.GasObject != nil {
		rec.GasObject = eff.GasObject.Hex()
	}
	if code, ok := producedAbortCode(eff); ok {
		rec.AbortCode = &code
	}
	return rec
}

// goldenRecord 在一次性环境里真实执行脚本，生成链上口径的记录
//
// 余额250的代币在版本5导入，脚本从中拆出30。效果取自真实执行，
// 新鲜ID从摘要派生，按同一记录回放必然得到逐项一致的本地效果。
func goldenRecord(t *testing.T, digestMarker byte) *types.ReplayRecord {
	t.Helper()

	digest := testutil.TestDigest(digestMarker)
	coin := oid(0x0B)
	seed := &types.Object{
		ID:       coin,
		Version:  5,
		Type:     types.GasCoinType(),
		Owner:    types.OwnedBy(replaySender),
		Contents: leU64(250),
	}

	env := newReplayEnv(t, nil)
	store, release := env.BorrowStore()
	err := store.Import(seed)
	release()
	require.NoError(t, err)

	script := &types.Script{
		Inputs: []types.Input{
			types.ObjectInput(types.ObjectRef{ID: coin, Version: 5}),
			types.PureInput(leU64(30)),
		},
		Commands: []types.Command{
			types.NewSplitValue(types.InputArg(0), types.InputArg(1)),
		},
	}
	result, err := env.Execute(context.Background(), script, sandboxif.ExecOptions{
		Sender: replaySender,
		Epoch:  5,
		Digest: digest,
	})
	require.NoError(t, err)
	require.True(t, result.IsSuccess())

	src := types.InputArg(0)
	return &types.ReplayRecord{
		Tx: types.RecordedTransaction{
			Digest: digest.String(),
			Sender: replaySender.Hex(),
			Epoch:  5,
			Inputs: []types.RecordedInput{
				{Kind: "object", ObjectID: coin.Hex(), Version: 5},
				{Kind: "pure", Value: leU64(30)},
			},
			Commands: []types.RecordedCommand{
				{Kind: "split_value", Source: &src, Amounts: []types.Argument{types.InputArg(1)}},
			},
		},
		Objects: []types.RecordedObject{
			{ID: coin.Hex(), Version: 5, Type: seed.Type.String(), Owner: seed.Owner.String(), Contents: leU64(250)},
		},
		Effects: recordedFromEffects(result.Effects),
	}
}

// tamperedRecord 改写记录中新建对象的ID，制造一处比对偏差
func tamperedRecord(t *testing.T, digestMarker byte) *types.ReplayRecord {
	t.Helper()
	rec := goldenRecord(t, digestMarker)
	require.NotEmpty(t, rec.Effects.Created)
	rec.Effects.Created[0].ID = oid(0xEE).Hex()
	return rec
}

func TestServiceReplay(t *testing.T) {
	golden := goldenRecord(t, 0xD7)
	digest := testutil.TestDigest(0xD7)

	archive := newStubArchive(golden)
	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), archive, nil, newReplayEnv(t, nil), nil)

	rep, err := svc.Replay(context.Background(), digest)
	require.NoError(t, err)

	assert.Equal(t, digest.String(), rep.Digest)
	assert.True(t, rep.Match)
	assert.Equal(t, 1.0, rep.Score)
	assert.Empty(t, rep.Notes)
	assert.False(t, rep.FromCache)
	assert.Equal(t, 1, archive.fetchCount())
	require.NotNil(t, rep.Produced)
	assert.True(t, rep.Produced.IsSuccess())
}

func TestServiceReplayDeterministic(t *testing.T) {
	golden := goldenRecord(t, 0xD7)
	digest := testutil.TestDigest(0xD7)

	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), newStubArchive(golden), nil, newReplayEnv(t, nil), nil)

	// 同一环境连续回放，重置后结果不受前次执行残留影响
	for i := 0; i < 3; i++ {
		rep, err := svc.Replay(context.Background(), digest)
		require.NoError(t, err)
		assert.True(t, rep.Match, "第%d次回放: %v", i+1, rep.Notes)
	}
}

func TestServiceReplayUsesCache(t *testing.T) {
	golden := goldenRecord(t, 0xD7)
	digest := testutil.TestDigest(0xD7)

	archive := newStubArchive(golden)
	cache := NewRecordCache(replaycfg.New(nil).GetOptions(), newTestFileStore(t), nil, nil, testutil.NewTestLogger())
	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), archive, cache, newReplayEnv(t, nil), nil)

	first, err := svc.Replay(context.Background(), digest)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, archive.fetchCount())

	second, err := svc.Replay(context.Background(), digest)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.True(t, second.Match)
	assert.Equal(t, 1, archive.fetchCount())
}

func TestServicePurgeCache(t *testing.T) {
	ctx := context.Background()
	golden := goldenRecord(t, 0xD7)
	digest := testutil.TestDigest(0xD7)

	archive := newStubArchive(golden)
	cache := NewRecordCache(replaycfg.New(nil).GetOptions(), newTestFileStore(t), nil, nil, testutil.NewTestLogger())
	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), archive, cache, newReplayEnv(t, nil), nil)

	_, err := svc.Replay(ctx, digest)
	require.NoError(t, err)

	cached, err := svc.CachedDigests(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{digest.String()}, cached)

	removed, err := svc.PurgeCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	cached, err = svc.CachedDigests(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)

	// 清空后回放重新走归档端点
	rep, err := svc.Replay(ctx, digest)
	require.NoError(t, err)
	assert.False(t, rep.FromCache)
	assert.Equal(t, 2, archive.fetchCount())
}

func TestServiceReplayMismatch(t *testing.T) {
	rec := tamperedRecord(t, 0xD8)
	digest := testutil.TestDigest(0xD8)

	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), newStubArchive(rec), nil, newReplayEnv(t, nil), nil)

	rep, err := svc.Replay(context.Background(), digest)
	require.NoError(t, err)

	assert.False(t, rep.Match)
	assert.InDelta(t, 0.88, rep.Score, 1e-9)
	require.NotEmpty(t, rep.Notes)
	assert.Equal(t, "created", rep.Notes[0].Component)
}

func TestServiceReplayUnknownDigest(t *testing.T) {
	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), newStubArchive(), nil, newReplayEnv(t, nil), nil)

	_, err := svc.Replay(context.Background(), testutil.TestDigest(0xDD))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch record")
	assert.Contains(t, err.Error(), "not found")
}

// tickingArchive 在取数时拨动Mock时钟，让报告耗时可精确断言
type tickingArchive struct {
	inner Archive
	clock *clockimpl.MockClock
	tick  time.Duration
}

func (a *tickingArchive) FetchRecord(ctx context.Context, digest string) (*types.ReplayRecord, error) {
	a.clock.Advance(a.tick)
	return a.inner.FetchRecord(ctx, digest)
}

func TestServiceReplayDuration(t *testing.T) {
	golden := goldenRecord(t, 0xD7)
	digest := testutil.TestDigest(0xD7)

	mock := clockimpl.NewMockClock(time.UnixMilli(1_700_000_000_000))
	archive := &tickingArchive{inner: newStubArchive(golden), clock: mock, tick: 250 * time.Millisecond}
	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), archive, nil, newReplayEnv(t, nil), nil).WithClock(mock)

	rep, err := svc.Replay(context.Background(), digest)
	require.NoError(t, err)
	assert.True(t, rep.Match)
	assert.Equal(t, 250*time.Millisecond, rep.Duration)
}

func TestServiceReplayGasRef(t *testing.T) {
	digest := testutil.TestDigest(0xDB)
	gasCoin := oid(0xC7)
	seed := &types.Object{
		ID:       gasCoin,
		Version:  5,
		Type:     types.GasCoinType(),
		Owner:    types.OwnedBy(replaySender),
		Contents: leU64(1000),
	}

	// 拆分来源是燃料对象本身，记录携带其前置快照
	env := newReplayEnv(t, nil)
	store, release := env.BorrowStore()
	err := store.Import(seed)
	release()
	require.NoError(t, err)

	script := &types.Script{
		Inputs: []types.Input{types.PureInput(leU64(40))},
		Commands: []types.Command{
			types.NewSplitValue(types.GasArg(), types.InputArg(0)),
		},
	}
	result, err := env.Execute(context.Background(), script, sandboxif.ExecOptions{
		Sender:    replaySender,
		Epoch:     5,
		Digest:    digest,
		GasBudget: 1000,
		GasRef:    &types.ObjectRef{ID: gasCoin, Version: 5},
	})
	require.NoError(t, err)
	require.True(t, result.IsSuccess())
	require.NotNil(t, result.Effects.GasObject)
	assert.Equal(t, gasCoin, *result.Effects.GasObject)

	gasSrc := types.GasArg()
	rec := &types.ReplayRecord{
		Tx: types.RecordedTransaction{
			Digest:    digest.String(),
			Sender:    replaySender.Hex(),
			Epoch:     5,
			GasBudget: 1000,
			Inputs:    []types.RecordedInput{{Kind: "pure", Value: leU64(40)}},
			Commands: []types.RecordedCommand{
				{Kind: "split_value", Source: &gasSrc, Amounts: []types.Argument{types.InputArg(0)}},
			},
		},
		Objects: []types.RecordedObject{
			{ID: gasCoin.Hex(), Version: 5, Type: seed.Type.String(), Owner: seed.Owner.String(), Contents: leU64(1000)},
		},
		Effects: recordedFromEffects(result.Effects),
	}

	svc := NewService(testutil.NewTestLogger(), replaycfg.New(nil), newStubArchive(rec), nil, newReplayEnv(t, nil), nil)
	rep, err := svc.Replay(context.Background(), digest)
	require.NoError(t, err)

	assert.True(t, rep.Match, "偏差: %v", rep.Notes)
	assert.Equal(t, 1.0, rep.Score)
}

func TestServiceReplayBatch(t *testing.T) {
	golden := goldenRecord(t, 0xD7)
	tampered := tamperedRecord(t, 0xD8)

	digests := []types.Digest{
		testutil.TestDigest(0xD7),
		testutil.TestDigest(0xD8),
		testutil.TestDigest(0xDD), // 档案里不存在
	}

	bus := eventimpl.New(eventcfg.New(nil))
	cfg := replaycfg.New(nil)
	cfg.GetOptions().Workers = 2
	svc := NewService(testutil.NewTestLogger(), cfg, newStubArchive(golden, tampered), nil, newReplayEnv(t, bus), bus)

	summary, err := svc.ReplayBatch(context.Background(), digests)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.JobID)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Perfect)
	assert.Equal(t, 1, summary.Mismatched)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 0.94, summary.MeanScore, 1e-9)

	// 报告按输入顺序排列
	require.Len(t, summary.Reports, 3)
	assert.True(t, summary.Reports[0].Match)
	assert.False(t, summary.Reports[1].Match)
	assert.Empty(t, summary.Reports[1].Err)
	assert.NotEmpty(t, summary.Reports[2].Err)

	assert.Len(t, bus.GetEventHistory(eventif.EventBatchProgress), 3)
	assert.Len(t, bus.GetEventHistory(eventif.EventReplayStarted), 3)
	assert.Len(t, bus.GetEventHistory(eventif.EventReplayFinished), 3)

	t.Run("空批次", func(t *testing.T) {
		summary, err := svc.ReplayBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, summary.JobID)
		assert.Equal(t, 0, summary.Total)
		assert.Empty(t, summary.Reports)
	})
}
