package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/sandvm/v1/internal/core/infrastructure/crypto/address"
	"github.com/sandvm/v1/internal/core/infrastructure/crypto/key"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("SandVM密钥生成工具")
		fmt.Println("用法:")
		fmt.Println("  sandvm-keygen generate <count>    - 生成指定数量的测试账户")
		fmt.Println("  sandvm-keygen recover <mnemonic>  - 从助记词恢复账户")
		fmt.Println("  sandvm-keygen accounts <count>    - 生成测试账户文件")
		fmt.Println("")
		fmt.Println("示例:")
		fmt.Println("  sandvm-keygen generate 5")
		fmt.Println("  sandvm-keygen recover \"abandon ability able ...\"")
		fmt.Println("  sandvm-keygen accounts 3")
		return
	}

	switch os.Args[1] {
	case "generate":
		count := 1
		if len(os.Args) >= 3 {
			fmt.Sscanf(os.Args[2], "%d", &count)
		}
		generateAccounts(count)
	case "recover":
		if len(os.Args) < 3 {
			fmt.Println("❌ 请提供助记词（用引号包住）")
			os.Exit(1)
		}
		recoverAccount(strings.Join(os.Args[2:], " "))
	case "accounts":
		count := 3
		if len(os.Args) >= 3 {
			fmt.Sscanf(os.Args[2], "%d", &count)
		}
		writeAccountsFile(count)
	default:
		fmt.Printf("未知命令: %s\n", os.Args[1])
		os.Exit(1)
	}
}

// account 一个派生完成的测试账户
type account struct {
	Mnemonic   string `json:"mnemonic"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Address    string `json:"address"`
	Display    string `json:"display_address"`
}

// deriveAccount 从助记词派生完整账户
//
// 派生链：助记词 → BIP39种子 → secp256k1密钥对 → 账户地址
func deriveAccount(mnemonic string) (*account, error) {
	seed := bip39.NewSeed(mnemonic, "")
	defer key.SecureWipe(seed)

	keys := key.NewKeyManager()
	privateKey, publicKey, err := keys.KeyPairFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("派生密钥对失败: %w", err)
	}
	defer key.SecureWipe(privateKey)

	addresses := address.NewAddressService(keys)
	addr, err := addresses.PublicKeyToAddress(publicKey)
	if err != nil {
		return nil, fmt.Errorf("推导地址失败: %w", err)
	}

	return &account{
		Mnemonic:   mnemonic,
		PrivateKey: hex.EncodeToString(privateKey),
		PublicKey:  hex.EncodeToString(publicKey),
		Address:    addr.Hex(),
		Display:    addresses.EncodeAddress(addr),
	}, nil
}

// newMnemonic 生成12词助记词
func newMnemonic() (string, error) {
	entropy := make([]byte, 16)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("生成熵失败: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

func generateAccounts(count int) {
	fmt.Printf("🔑 生成 %d 个测试账户\n", count)
	fmt.Println("====================")

	for i := 0; i < count; i++ {
		mnemonic, err := newMnemonic()
		if err != nil {
			log.Fatalf("生成助记词失败: %v", err)
		}

		acct, err := deriveAccount(mnemonic)
		if err != nil {
			log.Fatalf("派生账户失败: %v", err)
		}

		fmt.Printf("账户 %d:\n", i+1)
		fmt.Printf("  助记词: %s\n", acct.Mnemonic)
		fmt.Printf("  私钥: %s\n", acct.PrivateKey)
		fmt.Printf("  公钥: %s\n", acct.PublicKey)
		fmt.Printf("  地址: %s\n", acct.Address)
		fmt.Printf("  显示地址: %s\n", acct.Display)
		fmt.Println()
	}
}

func recoverAccount(mnemonic string) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		fmt.Println("❌ 助记词无效：请检查单词拼写与数量（12/15/18/21/24）")
		os.Exit(1)
	}

	acct, err := deriveAccount(mnemonic)
	if err != nil {
		log.Fatalf("恢复账户失败: %v", err)
	}

	fmt.Println("🔓 账户已恢复")
	fmt.Println("====================")
	fmt.Printf("  私钥: %s\n", acct.PrivateKey)
	fmt.Printf("  公钥: %s\n", acct.PublicKey)
	fmt.Printf("  地址: %s\n", acct.Address)
	fmt.Printf("  显示地址: %s\n", acct.Display)
}

func writeAccountsFile(count int) {
	fmt.Printf("🌱 生成 %d 个测试账户文件\n", count)
	fmt.Println("======================")

	accounts := make([]*account, 0, count)
	for i := 0; i < count; i++ {
		mnemonic, err := newMnemonic()
		if err != nil {
			log.Fatalf("生成助记词失败: %v", err)
		}

		acct, err := deriveAccount(mnemonic)
		if err != nil {
			log.Fatalf("派生账户失败: %v", err)
		}
		accounts = append(accounts, acct)
	}

	jsonData, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		log.Fatalf("JSON编码失败: %v", err)
	}

	filename := "sandbox_accounts.json"
	if err := os.WriteFile(filename, jsonData, 0600); err != nil {
		log.Fatalf("写入文件失败: %v", err)
	}

	fmt.Printf("✅ 测试账户已保存到: %s\n", filename)
	fmt.Println("\n账户地址:")
	for i, acct := range accounts {
		fmt.Printf("  %d. %s (%s)\n", i+1, acct.Address, acct.Display)
	}
	fmt.Println("\n⚠️  文件包含私钥，仅用于本地沙箱测试")
}
