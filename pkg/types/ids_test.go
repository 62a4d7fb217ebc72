package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Run("短形式补零", func(t *testing.T) {
		addr, err := ParseAddress("0x2")
		require.NoError(t, err)
		var want Address
		want[31] = 0x02
		assert.Equal(t, want, addr)
		assert.Equal(t, "0x2", addr.String())
	})

	t.Run("无前缀形式", func(t *testing.T) {
		addr, err := ParseAddress("ff")
		require.NoError(t, err)
		assert.Equal(t, byte(0xFF), addr[31])
	})

	t.Run("完整长度", func(t *testing.T) {
		full := "0x" + "ab" + "00" + "cd" + "000000000000000000000000000000000000000000000000000000000000"
		require.Len(t, full, 2+64)
		addr, err := ParseAddress(full)
		require.NoError(t, err)
		assert.Equal(t, byte(0xAB), addr[0])
		assert.Equal(t, full, addr.Hex())
	})

	t.Run("奇数位十六进制", func(t *testing.T) {
		addr, err := ParseAddress("0xabc")
		require.NoError(t, err)
		assert.Equal(t, byte(0x0A), addr[30])
		assert.Equal(t, byte(0xBC), addr[31])
		assert.Equal(t, "0xabc", addr.String())
	})

	t.Run("空串拒绝", func(t *testing.T) {
		_, err := ParseAddress("")
		assert.Error(t, err)
		_, err = ParseAddress("0x")
		assert.Error(t, err)
	})

	t.Run("超长拒绝", func(t *testing.T) {
		long := make([]byte, 65)
		for i := range long {
			long[i] = 'a'
		}
		_, err := ParseAddress(string(long))
		assert.Error(t, err)
	})

	t.Run("非法字符拒绝", func(t *testing.T) {
		_, err := ParseAddress("0xzz")
		assert.Error(t, err)
	})
}

func TestAddressStringForms(t *testing.T) {
	var zero Address
	assert.Equal(t, "0x0", zero.String())
	assert.True(t, zero.IsZero())

	addr := MustParseAddress("0x0a")
	assert.Equal(t, "0xa", addr.String(), "首个半字节的前导零应去除")
	assert.Equal(t, 2+64, len(addr.Hex()))
}

func TestAddressJSONRoundTrip(t *testing.T) {
	addr := MustParseAddress("0xdeadbeef")
	data, err := json.Marshal(addr)
	require.NoError(t, err)

	var back Address
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, addr, back)

	var bad Address
	assert.Error(t, json.Unmarshal([]byte(`"0xzz"`), &bad))
}

func TestObjectIDFromBytes(t *testing.T) {
	raw := make([]byte, ObjectIDLength)
	raw[0] = 0x11
	id, err := ObjectIDFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(0x11), id[0])

	// 返回的是副本，调用方改动原切片不应影响ID
	raw[0] = 0x22
	assert.Equal(t, byte(0x11), id[0])

	_, err = ObjectIDFromBytes(raw[:16])
	assert.Error(t, err)
}

func TestDigestStringKeepsLength(t *testing.T) {
	d := MustParseDigest("0x1")
	assert.Equal(t, 2+64, len(d.String()), "摘要始终以完整长度呈现")

	raw := make([]byte, DigestLength)
	raw[31] = 0x01
	fromBytes, err := DigestFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, d, fromBytes)
}

func TestParseModuleID(t *testing.T) {
	t.Run("规范形式", func(t *testing.T) {
		id, err := ParseModuleID("0x2::coin")
		require.NoError(t, err)
		assert.Equal(t, "coin", id.Name)
		assert.Equal(t, MustParseAddress("0x2"), id.Address)
		assert.Equal(t, "0x2::coin", id.String())
	})

	t.Run("缺少分隔符", func(t *testing.T) {
		_, err := ParseModuleID("0x2coin")
		assert.Error(t, err)
	})

	t.Run("空模块名", func(t *testing.T) {
		_, err := ParseModuleID("0x2::  ")
		assert.Error(t, err)
	})

	t.Run("非法地址", func(t *testing.T) {
		_, err := ParseModuleID("xyz::coin")
		assert.Error(t, err)
	})
}

func TestModuleIDEqual(t *testing.T) {
	a := NewModuleID(MustParseAddress("0x2"), "coin")
	b := NewModuleID(MustParseAddress("0x2"), "coin")
	c := NewModuleID(MustParseAddress("0x3"), "coin")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.IsZero())
	assert.True(t, ModuleID{}.IsZero())
}
