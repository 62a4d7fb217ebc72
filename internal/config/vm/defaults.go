// Package vm provides default configuration values for the contract VM.
package vm

// 虚拟机配置默认值
const (
	// defaultCryptoMode 默认加密模式设为"permissive"
	// 原因：沙箱的主要用途是离线重放，宽容模式让缺少真实签名的
	// 交易记录也能完整走通执行路径
	defaultCryptoMode = "permissive"

	// defaultClockBaseMS 默认合约时钟基准
	// 原因：一个固定的近代时间点，保证离线执行结果可复现
	defaultClockBaseMS = uint64(1_700_000_000_000)

	// defaultClockTickMS 默认每次访问步进1毫秒
	// 原因：保证同一执行内的连续读钟单调递增且可预测
	defaultClockTickMS = uint64(1)

	// defaultRandomSeed 默认确定性随机种子
	// 原因：固定种子使随机流在任何机器上完全一致
	defaultRandomSeed = "sandvm-deterministic-seed"

	// defaultUseCompiler 默认使用编译器模式
	// 原因：编译执行比解释快一个数量级，批量回放收益明显
	defaultUseCompiler = true

	// defaultMaxMemoryPages 默认线性内存上限设为256页(16MB)
	// 原因：足够容纳常见合约的工作集，同时防止失控分配
	defaultMaxMemoryPages = 256

	// defaultExecTimeoutSecs 默认单次调用超时设为30秒
	// 原因：正常合约调用在毫秒级完成，30秒足以兜住死循环
	defaultExecTimeoutSecs = 30

	// defaultCompileCacheSize 默认编译缓存容量设为256个模块
	// 原因：批量回放会反复调用同一批模块，缓存编译产物避免重复编译
	defaultCompileCacheSize = 256
)
