package natives

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sandvm/v1/pkg/types"
)

func TestCryptoVerdict(t *testing.T) {
	t.Run("宽容模式形状合法直接放行", func(t *testing.T) {
		result, code, aborts := cryptoVerdict(types.CryptoPermissive, true)
		assert.False(t, aborts)
		assert.Equal(t, uint32(1), result)
		assert.Zero(t, code)
	})

	t.Run("严格模式以不支持中止", func(t *testing.T) {
		_, code, aborts := cryptoVerdict(types.CryptoStrict, true)
		assert.True(t, aborts)
		assert.Equal(t, types.AbortUnsupportedCrypto, code)
	})

	t.Run("形状非法两种模式都以非法输入中止", func(t *testing.T) {
		for _, mode := range []types.CryptoMode{types.CryptoPermissive, types.CryptoStrict} {
			_, code, aborts := cryptoVerdict(mode, false)
			assert.True(t, aborts, "mode=%s", mode)
			assert.Equal(t, types.AbortBadCryptoInput, code, "mode=%s", mode)
		}
	})
}

func TestMsgShapeOK(t *testing.T) {
	assert.False(t, msgShapeOK(0), "空消息不在定义域内")
	assert.True(t, msgShapeOK(1))
	assert.True(t, msgShapeOK(maxCryptoMsgLen))
	assert.False(t, msgShapeOK(maxCryptoMsgLen+1))
}
