package hash

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"testing"
)

// mustHex 测试辅助：十六进制转字节
func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("无效的十六进制测试向量: %v", err)
	}
	return b
}

func TestSHA256(t *testing.T) {
	hashService := NewHashService()

	testCases := []struct {
		name     string
		input    []byte
		expected string // 标准测试向量
	}{
		{"空数据", []byte{}, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := hashService.SHA256(tc.input)

			if len(result) != 32 {
				t.Errorf("SHA256(%s) 长度 = %d, 期望 32", tc.input, len(result))
			}

			if !bytes.Equal(result, mustHex(t, tc.expected)) {
				t.Errorf("SHA256(%s) = %x, 期望 %s", tc.input, result, tc.expected)
			}

			// 确保相同输入产生相同哈希（幂等性）
			result2 := hashService.SHA256(tc.input)
			if !bytes.Equal(result, result2) {
				t.Errorf("SHA256 不具有幂等性")
			}
		})
	}
}

func TestKeccak256(t *testing.T) {
	hashService := NewHashService()

	// Legacy Keccak向量（以太坊风格），和NIST SHA3-256不同
	testCases := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"空数据", []byte{}, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", []byte("abc"), "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := hashService.Keccak256(tc.input)

			if !bytes.Equal(result, mustHex(t, tc.expected)) {
				t.Errorf("Keccak256(%s) = %x, 期望 %s", tc.input, result, tc.expected)
			}

			// 第二次走缓存，结果必须一致
			result2 := hashService.Keccak256(tc.input)
			if !bytes.Equal(result, result2) {
				t.Errorf("Keccak256 缓存命中后结果不一致")
			}
		})
	}
}

func TestBlake2b256(t *testing.T) {
	hashService := NewHashService()

	testCases := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"空数据", []byte{}, "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"},
		{"abc", []byte("abc"), "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := hashService.Blake2b256(tc.input)

			if len(result) != 32 {
				t.Errorf("Blake2b256(%s) 长度 = %d, 期望 32", tc.input, len(result))
			}

			if !bytes.Equal(result, mustHex(t, tc.expected)) {
				t.Errorf("Blake2b256(%s) = %x, 期望 %s", tc.input, result, tc.expected)
			}
		})
	}
}

func TestRIPEMD160(t *testing.T) {
	hashService := NewHashService()

	testCases := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"空数据", []byte{}, "9c1185a5c5e9fc54612808977ee8f548b2258d31"},
		{"abc", []byte("abc"), "8eb208f7e05d987a9b044a8e98c6b087f15a0bfc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := hashService.RIPEMD160(tc.input)

			if len(result) != 20 {
				t.Errorf("RIPEMD160(%s) 长度 = %d, 期望 20", tc.input, len(result))
			}

			if !bytes.Equal(result, mustHex(t, tc.expected)) {
				t.Errorf("RIPEMD160(%s) = %x, 期望 %s", tc.input, result, tc.expected)
			}
		})
	}
}

func TestDoubleSHA256(t *testing.T) {
	hashService := NewHashService()

	testCases := []struct {
		name  string
		input []byte
	}{
		{"空数据", []byte{}},
		{"Hello World", []byte("Hello World")},
		{"中文", []byte("你好，世界")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := hashService.DoubleSHA256(tc.input)

			if len(result) != 32 {
				t.Errorf("DoubleSHA256(%s) 长度 = %d, 期望 32", tc.input, len(result))
			}

			// 验证DoubleSHA256确实是两次SHA256
			singleHash := hashService.SHA256(tc.input)
			doubleHash := hashService.SHA256(singleHash)
			if !bytes.Equal(doubleHash, result) {
				t.Errorf("DoubleSHA256 不等于两次SHA256")
			}
		})
	}
}

func TestHashCache(t *testing.T) {
	cache := NewHashCache(8)

	key := "testKey"
	value := []byte{1, 2, 3, 4}

	cache.Set(key, value)

	cached, found := cache.Get(key)
	if !found {
		t.Errorf("未能从缓存中找到键 %s", key)
	}

	if !bytes.Equal(cached, value) {
		t.Errorf("缓存值不匹配: 得到 %v, 期望 %v", cached, value)
	}

	// 测试缓存副本（而非引用）
	value[0] = 99
	cached, _ = cache.Get(key)
	if bytes.Equal(cached, value) {
		t.Errorf("缓存没有返回副本，而是返回了引用")
	}
}

func TestHashCacheBounded(t *testing.T) {
	cache := NewHashCache(4)

	// 写满后再写入应触发整体清空
	for i := 0; i < 4; i++ {
		cache.Set(strconv.Itoa(i), []byte{byte(i)})
	}
	if cache.Len() != 4 {
		t.Fatalf("缓存条目数 = %d, 期望 4", cache.Len())
	}

	cache.Set("overflow", []byte{0xFF})
	if cache.Len() != 1 {
		t.Errorf("超限写入后缓存条目数 = %d, 期望 1", cache.Len())
	}

	if _, found := cache.Get("overflow"); !found {
		t.Errorf("超限写入的新条目应该保留")
	}
}

func TestHashServiceMemoryReporting(t *testing.T) {
	hashService := NewHashService()

	// 填充一些缓存条目
	for i := 0; i < 16; i++ {
		hashService.Keccak256([]byte(strconv.Itoa(i)))
		hashService.Blake2b256([]byte(strconv.Itoa(i)))
	}

	stats := hashService.CollectMemoryStats()
	if stats.Module != "infra.crypto.hash" {
		t.Errorf("模块名 = %s, 期望 infra.crypto.hash", stats.Module)
	}
	if stats.CacheItems != 32 {
		t.Errorf("缓存条目数 = %d, 期望 32", stats.CacheItems)
	}

	// 收缩到0应清空全部缓存
	hashService.ShrinkCache(0)
	stats = hashService.CollectMemoryStats()
	if stats.CacheItems != 0 {
		t.Errorf("收缩后缓存条目数 = %d, 期望 0", stats.CacheItems)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	b := []byte{1, 2, 3, 4}
	c := []byte{1, 2, 3, 5}
	d := []byte{1, 2, 3}

	// 相同长度、相同内容
	if !ConstantTimeCompare(a, b) {
		t.Errorf("ConstantTimeCompare 应该返回 true，但返回了 false")
	}

	// 相同长度、不同内容
	if ConstantTimeCompare(a, c) {
		t.Errorf("ConstantTimeCompare 应该返回 false，但返回了 true")
	}

	// 不同长度
	if ConstantTimeCompare(a, d) {
		t.Errorf("ConstantTimeCompare 应该返回 false，但返回了 true")
	}
}

// 基准测试

func BenchmarkSHA256(b *testing.B) {
	hashService := NewHashService()
	data := []byte("benchmark data for SHA256 testing with sufficient length to be meaningful")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hashService.SHA256(data)
	}
}

func BenchmarkBlake2b256(b *testing.B) {
	hashService := NewHashService()
	data := []byte("benchmark data for Blake2b256 testing with sufficient length to be meaningful")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hashService.Blake2b256(data)
	}
}

func BenchmarkKeccak256CacheHit(b *testing.B) {
	hashService := NewHashService()
	data := []byte("benchmark data for cache hit testing")

	// 预热缓存
	hashService.Keccak256(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hashService.Keccak256(data)
	}
}

func BenchmarkKeccak256CacheMiss(b *testing.B) {
	hashService := NewHashService()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// 每次使用不同数据，确保缓存未命中
		data := []byte(strconv.Itoa(i) + "benchmark data")
		hashService.Keccak256(data)
	}
}
