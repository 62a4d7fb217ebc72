package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandvm/v1/pkg/types"
)

// TestGetEnvironment 测试 GetEnvironment() 方法
func TestGetEnvironment(t *testing.T) {
	t.Run("显式配置 dev", func(t *testing.T) {
		cfg := &types.AppConfig{
			Environment: types.StringPtr("dev"),
		}
		provider := NewProvider(cfg)
		assert.Equal(t, "dev", provider.GetEnvironment())
	})

	t.Run("显式配置 prod", func(t *testing.T) {
		cfg := &types.AppConfig{
			Environment: types.StringPtr("prod"),
		}
		provider := NewProvider(cfg)
		assert.Equal(t, "prod", provider.GetEnvironment())
	})

	t.Run("未配置时默认为 dev（本地工具）", func(t *testing.T) {
		cfg := &types.AppConfig{}
		provider := NewProvider(cfg)
		assert.Equal(t, "dev", provider.GetEnvironment())
	})

	t.Run("appConfig 为 nil 时默认为 dev", func(t *testing.T) {
		provider := NewProvider(nil)
		assert.Equal(t, "dev", provider.GetEnvironment())
	})
}

// TestGetVM 测试 GetVM() 方法
func TestGetVM(t *testing.T) {
	t.Run("未配置时使用默认值", func(t *testing.T) {
		provider := NewProvider(&types.AppConfig{})
		opts := provider.GetVM()
		require.NotNil(t, opts)
		assert.Equal(t, "permissive", opts.CryptoMode)
		assert.Equal(t, uint64(1), opts.ClockTickMS)
		assert.True(t, opts.UseCompiler)
	})

	t.Run("用户配置覆盖默认值", func(t *testing.T) {
		cfg := &types.AppConfig{
			VM: &types.UserVMConfig{
				CryptoMode:  types.StringPtr("strict"),
				ClockBaseMS: types.UInt64Ptr(42),
				RandomSeed:  types.StringPtr("fixed-seed"),
			},
		}
		provider := NewProvider(cfg)
		opts := provider.GetVM()
		require.NotNil(t, opts)
		assert.Equal(t, "strict", opts.CryptoMode)
		assert.Equal(t, uint64(42), opts.ClockBaseMS)
		assert.Equal(t, "fixed-seed", opts.RandomSeed)
		// 未覆盖的字段保持默认
		assert.Equal(t, uint64(1), opts.ClockTickMS)
	})
}

// TestGetSandbox 测试 GetSandbox() 方法
func TestGetSandbox(t *testing.T) {
	t.Run("显式配置发送者与纪元", func(t *testing.T) {
		cfg := &types.AppConfig{
			Sandbox: &types.UserSandboxConfig{
				DefaultSender: types.StringPtr("0xabc"),
				Epoch:         types.UInt64Ptr(7),
			},
		}
		provider := NewProvider(cfg)
		opts := provider.GetSandbox()
		require.NotNil(t, opts)
		assert.Equal(t, "0xabc", opts.DefaultSender)
		assert.Equal(t, uint64(7), opts.Epoch)
	})

	t.Run("未配置时使用默认发送者", func(t *testing.T) {
		provider := NewProvider(&types.AppConfig{})
		opts := provider.GetSandbox()
		require.NotNil(t, opts)
		assert.NotEmpty(t, opts.DefaultSender)
		assert.Equal(t, uint64(0), opts.Epoch)
	})
}

// TestGetReplay 测试 GetReplay() 方法
func TestGetReplay(t *testing.T) {
	t.Run("用户配置覆盖默认值", func(t *testing.T) {
		cfg := &types.AppConfig{
			Replay: &types.UserReplayConfig{
				Endpoint:     types.StringPtr("https://archive.example.org"),
				CacheBackend: types.StringPtr("badger"),
				Workers:      types.IntPtr(8),
				GasTolerance: types.IntPtr(0),
			},
		}
		provider := NewProvider(cfg)
		opts := provider.GetReplay()
		require.NotNil(t, opts)
		assert.Equal(t, "https://archive.example.org", opts.Endpoint)
		assert.Equal(t, "badger", opts.CacheBackend)
		assert.Equal(t, 8, opts.Workers)
		assert.Equal(t, 0, opts.GasTolerance)
	})

	t.Run("缓存目录未配置时挂到数据目录下", func(t *testing.T) {
		cfg := &types.AppConfig{
			DataDir: types.StringPtr("./testdata-root"),
		}
		provider := NewProvider(cfg)
		opts := provider.GetReplay()
		require.NotNil(t, opts)
		assert.Contains(t, opts.CacheDir, "replay-cache")
	})
}

// TestValidateMandatoryConfig 测试配置验证
func TestValidateMandatoryConfig(t *testing.T) {
	t.Run("nil 配置直接通过", func(t *testing.T) {
		assert.NoError(t, ValidateMandatoryConfig(nil))
	})

	t.Run("合法配置通过", func(t *testing.T) {
		cfg := &types.AppConfig{
			Environment: types.StringPtr("dev"),
			VM: &types.UserVMConfig{
				CryptoMode:  types.StringPtr("strict"),
				ClockTickMS: types.UInt64Ptr(5),
			},
			Replay: &types.UserReplayConfig{
				CacheBackend: types.StringPtr("file"),
				Workers:      types.IntPtr(2),
			},
		}
		assert.NoError(t, ValidateMandatoryConfig(cfg))
	})

	t.Run("非法加密模式被拒绝", func(t *testing.T) {
		cfg := &types.AppConfig{
			VM: &types.UserVMConfig{
				CryptoMode: types.StringPtr("lenient"),
			},
		}
		err := ValidateMandatoryConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "crypto_mode")
	})

	t.Run("零时钟步进被拒绝", func(t *testing.T) {
		cfg := &types.AppConfig{
			VM: &types.UserVMConfig{
				ClockTickMS: types.UInt64Ptr(0),
			},
		}
		err := ValidateMandatoryConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "clock_tick_ms")
	})

	t.Run("非法缓存后端被拒绝", func(t *testing.T) {
		cfg := &types.AppConfig{
			Replay: &types.UserReplayConfig{
				CacheBackend: types.StringPtr("redis"),
			},
		}
		err := ValidateMandatoryConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache_backend")
	})

	t.Run("无法解析的默认发送者被拒绝", func(t *testing.T) {
		cfg := &types.AppConfig{
			Sandbox: &types.UserSandboxConfig{
				DefaultSender: types.StringPtr("not-an-address"),
			},
		}
		err := ValidateMandatoryConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default_sender")
	})

	t.Run("多个错误聚合上报", func(t *testing.T) {
		cfg := &types.AppConfig{
			Environment: types.StringPtr("staging"),
			VM: &types.UserVMConfig{
				CryptoMode: types.StringPtr("bogus"),
			},
			Replay: &types.UserReplayConfig{
				Workers: types.IntPtr(0),
			},
		}
		err := ValidateMandatoryConfig(cfg)
		require.Error(t, err)
		var verrs *ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.GreaterOrEqual(t, len(verrs.Errors), 3)
	})
}
