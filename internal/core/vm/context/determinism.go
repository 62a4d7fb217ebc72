package context

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/sandvm/v1/pkg/types"
)

// 确定性原语
//
// 🎯 同一 (摘要, 配置) 下的两次执行必须产出逐字节一致的
// ID序列、时钟读数与随机流。三者都只依赖上下文内的计数器，
// 与真实时间和系统熵完全隔离。

// NextFreshID 派生下一个新鲜对象ID
//
// ID = blake2b-256(执行摘要 ‖ LE64(计数器))，计数器随后递增。
// 计数器跨命令连续，同一脚本内派生的ID互不重复。
func (c *ExecutionContext) NextFreshID() types.ObjectID {
	var counter [8]byte
	binary.LittleEndian.PutUint64(counter[:], c.State.FreshCounter)
	c.State.FreshCounter++

	h, _ := blake2b.New256(nil)
	h.Write(c.Digest[:])
	h.Write(counter[:])

	var id types.ObjectID
	copy(id[:], h.Sum(nil))
	return id
}

// ClockNowMS 读取确定性时钟
//
// 读数 = 基准 + 步长 × 已访问次数（0起），随后访问次数递增：
// 首次读取返回基准值，之后每次读取严格推进一个步长。
func (c *ExecutionContext) ClockNowMS() uint64 {
	now := c.Config.ClockBaseMS + c.Config.ClockTickMS*c.State.ClockAccesses
	c.State.ClockAccesses++
	return now
}

// RandomBytes 产出确定性随机字节
//
// 流以32字节为块：块i = sha256(种子 ‖ LE64(块计数))，
// 块计数跨调用连续，相同种子下整条流可完整重现。
func (c *ExecutionContext) RandomBytes(n int) []byte {
	if n <= 0 {
		return nil
	}

	out := make([]byte, 0, n)
	var counter [8]byte
	for len(out) < n {
		binary.LittleEndian.PutUint64(counter[:], c.State.RandomCounter)
		c.State.RandomCounter++

		h := sha256.New()
		h.Write(c.Config.RandomSeed)
		h.Write(counter[:])
		out = append(out, h.Sum(nil)...)
	}
	return out[:n]
}
