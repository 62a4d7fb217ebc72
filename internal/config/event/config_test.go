package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configtypes "github.com/sandvm/v1/pkg/types"
)

// TestNew 测试配置创建
func TestNew(t *testing.T) {
	t.Run("创建默认配置", func(t *testing.T) {
		config := New(nil)
		assert.NotNil(t, config)
		assert.NotNil(t, config.options)

		// 验证基础配置
		assert.True(t, config.IsEnabled())
		assert.Equal(t, defaultBufferSize, config.GetBufferSize())
		assert.Equal(t, defaultMaxWorkers, config.GetMaxWorkers())
		assert.Equal(t, defaultMaxSubscribers, config.GetMaxSubscribers())

		// 验证历史配置
		assert.True(t, config.IsHistoryEnabled())
		assert.Equal(t, defaultHistorySize, config.GetHistorySize())
	})

	t.Run("直接传入选项整体采用", func(t *testing.T) {
		opts := &EventOptions{
			Enabled:       false,
			BufferSize:    5,
			EnableHistory: false,
		}
		config := New(opts)
		assert.False(t, config.IsEnabled())
		assert.Equal(t, 5, config.GetBufferSize())
		assert.False(t, config.IsHistoryEnabled())
	})

	t.Run("用户配置覆盖默认值", func(t *testing.T) {
		userConfig := &configtypes.UserEventConfig{
			Enabled:     configtypes.BoolPtr(true),
			HistorySize: configtypes.IntPtr(16),
		}
		config := New(userConfig)
		assert.True(t, config.IsEnabled())
		assert.Equal(t, 16, config.GetHistorySize())

		// 未覆盖字段保持默认
		assert.Equal(t, defaultBufferSize, config.GetBufferSize())
	})
}

// TestEventOptionsDefaults 测试基础事件配置默认值
func TestEventOptionsDefaults(t *testing.T) {
	options := createDefaultEventOptions()
	require.NotNil(t, options)

	t.Run("基础配置默认值", func(t *testing.T) {
		assert.True(t, options.Enabled)
		assert.Equal(t, defaultBufferSize, options.BufferSize)
		assert.Equal(t, defaultMaxWorkers, options.MaxWorkers)
		assert.Equal(t, defaultMaxSubscribers, options.MaxSubscribers)
	})

	t.Run("历史配置默认值", func(t *testing.T) {
		assert.True(t, options.EnableHistory)
		assert.Equal(t, defaultHistorySize, options.HistorySize)
	})
}

// TestHistorySizeFallback 测试历史条数非法值回退
func TestHistorySizeFallback(t *testing.T) {
	config := New(&EventOptions{Enabled: true, HistorySize: 0, EnableHistory: true})
	assert.Equal(t, defaultHistorySize, config.GetHistorySize())

	config = New(&EventOptions{Enabled: true, HistorySize: -3, EnableHistory: true})
	assert.Equal(t, defaultHistorySize, config.GetHistorySize())
}
