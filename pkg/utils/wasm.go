package utils

// IsWASMBytecode 检查是否为WASM字节码
//
// 🔑 部署与模块装载共用的前置校验：魔数不匹配的输入直接拒绝，
// 不必进入编译器报一个更难懂的错误。
func IsWASMBytecode(data []byte) bool {
	// WASM魔数检查：0x00 0x61 0x73 0x6D
	wasmMagic := []byte{0x00, 0x61, 0x73, 0x6D}

	if len(data) < 4 {
		return false
	}

	for i := 0; i < 4; i++ {
		if data[i] != wasmMagic[i] {
			return false
		}
	}
	return true
}
