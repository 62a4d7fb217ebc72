package replay

import "time"

// 回放配置默认值
// 这些默认值面向本地开发的单机回放场景
const (
	// defaultEndpoint 默认归档节点地址
	// 原因：本地节点是开发时最常见的数据源
	defaultEndpoint = "http://127.0.0.1:9000"

	// defaultCacheDir 默认缓存目录
	// 原因：与日志目录并列在数据目录下，便于一次性清理
	defaultCacheDir = "./data/replay-cache"

	// defaultCacheBackend 默认缓存后端设为"file"
	// 原因：每笔交易一个文件便于人工检查和选择性删除，
	// badger后端留给需要大批量记录的场景
	defaultCacheBackend = "file"

	// defaultGasTolerance 默认燃料对象容差设为1
	// 原因：本地合成的燃料对象与链上真实燃料结算的变更次数
	// 普遍相差一次，默认容忍这一差异避免噪音
	defaultGasTolerance = 1

	// defaultWorkers 默认批量工作者数量设为4
	// 原因：单笔回放以CPU为主，4个工作者在普通开发机上
	// 吞吐与内存占用比较均衡
	defaultWorkers = 4

	// defaultRetryAttempts 默认重试次数设为3
	// 原因：瞬时网络故障三次重试基本可恢复，更多重试徒增延迟
	defaultRetryAttempts = 3
)

var (
	// defaultRequestTimeout 默认请求超时设为15秒
	// 原因：归档查询偶有慢响应，15秒兼顾可用性与及时失败
	defaultRequestTimeout = 15 * time.Second

	// defaultRetryBackoff 默认重试退避基准设为500毫秒
	// 原因：指数退避的起点，三次重试总等待约3.5秒
	defaultRetryBackoff = 500 * time.Millisecond
)
