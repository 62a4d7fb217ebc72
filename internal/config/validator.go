package config

import (
	"fmt"
	"strings"

	"github.com/sandvm/v1/pkg/types"
)

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置验证失败 [%s]: %s", e.Field, e.Message)
}

// ValidateMandatoryConfig 验证配置项的合法性
//
// 🎯 **配置验证职责**：在启动时对关键配置做 fail-fast 检查，
// 避免"配置写错但系统静默回退默认值"导致执行语义整体跑偏。
//
// 📋 **验证范围**：
// - vm.crypto_mode: 只接受 permissive | strict
// - vm.clock_tick_ms: 必须 > 0（0会让时钟读数冻结，破坏单调性预期）
// - sandbox.default_sender: 必须是可解析的地址
// - replay.cache_backend: 只接受 file | badger
// - replay.workers / gas_tolerance: 数值范围检查
// - environment: 只接受 dev | test | prod
//
// 参数：
//   - appConfig: 应用配置（nil视为全默认，直接通过）
//
// 返回：
//   - error: 验证失败的错误列表
func ValidateMandatoryConfig(appConfig *types.AppConfig) error {
	if appConfig == nil {
		return nil
	}

	var errors []error

	// 1. 验证运行环境
	if appConfig.Environment != nil {
		env := strings.ToLower(strings.TrimSpace(*appConfig.Environment))
		switch env {
		case "", "dev", "test", "prod":
		default:
			errors = append(errors, &ValidationError{
				Field:   "environment",
				Message: fmt.Sprintf("运行环境无效: %q（期望 dev | test | prod）", env),
			})
		}
	}

	// 2. 验证虚拟机配置
	if appConfig.VM != nil {
		if appConfig.VM.CryptoMode != nil {
			mode := strings.TrimSpace(*appConfig.VM.CryptoMode)
			if mode != string(types.CryptoPermissive) && mode != string(types.CryptoStrict) {
				errors = append(errors, &ValidationError{
					Field:   "vm.crypto_mode",
					Message: fmt.Sprintf("加密模式无效: %q（期望 permissive | strict）", mode),
				})
			}
		}
		if appConfig.VM.ClockTickMS != nil && *appConfig.VM.ClockTickMS == 0 {
			errors = append(errors, &ValidationError{
				Field:   "vm.clock_tick_ms",
				Message: "时钟步进必须 > 0，否则同一执行内的连续读钟不再单调递增",
			})
		}
		if appConfig.VM.ExecTimeoutSecs != nil && *appConfig.VM.ExecTimeoutSecs <= 0 {
			errors = append(errors, &ValidationError{
				Field:   "vm.exec_timeout_secs",
				Message: "执行超时必须 > 0",
			})
		}
		if appConfig.VM.MaxMemoryPages != nil && *appConfig.VM.MaxMemoryPages == 0 {
			errors = append(errors, &ValidationError{
				Field:   "vm.max_memory_pages",
				Message: "线性内存页上限必须 > 0",
			})
		}
	}

	// 3. 验证沙箱配置
	if appConfig.Sandbox != nil && appConfig.Sandbox.DefaultSender != nil {
		if _, err := types.ParseAddress(*appConfig.Sandbox.DefaultSender); err != nil {
			errors = append(errors, &ValidationError{
				Field:   "sandbox.default_sender",
				Message: fmt.Sprintf("默认发送者地址无法解析: %v", err),
			})
		}
	}

	// 4. 验证回放配置
	if appConfig.Replay != nil {
		if appConfig.Replay.CacheBackend != nil {
			backend := strings.TrimSpace(*appConfig.Replay.CacheBackend)
			if backend != "file" && backend != "badger" {
				errors = append(errors, &ValidationError{
					Field:   "replay.cache_backend",
					Message: fmt.Sprintf("缓存后端无效: %q（期望 file | badger）", backend),
				})
			}
		}
		if appConfig.Replay.Workers != nil && *appConfig.Replay.Workers < 1 {
			errors = append(errors, &ValidationError{
				Field:   "replay.workers",
				Message: "工作者数量必须 >= 1",
			})
		}
		if appConfig.Replay.GasTolerance != nil && *appConfig.Replay.GasTolerance < 0 {
			errors = append(errors, &ValidationError{
				Field:   "replay.gas_tolerance",
				Message: "燃料对象容差必须 >= 0",
			})
		}
		if appConfig.Replay.Endpoint != nil {
			endpoint := strings.TrimSpace(*appConfig.Replay.Endpoint)
			if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				errors = append(errors, &ValidationError{
					Field:   "replay.endpoint",
					Message: fmt.Sprintf("归档端点必须是 http(s) URL: %q", endpoint),
				})
			}
		}
	}

	// 5. 验证日志配置
	if appConfig.Log != nil && appConfig.Log.Level != nil {
		level := strings.ToLower(strings.TrimSpace(*appConfig.Log.Level))
		switch level {
		case "debug", "info", "warn", "error", "fatal":
		default:
			errors = append(errors, &ValidationError{
				Field:   "log.level",
				Message: fmt.Sprintf("日志级别无效: %q（期望 debug | info | warn | error | fatal）", level),
			})
		}
	}

	// 如果有错误，返回组合错误
	if len(errors) > 0 {
		return &ValidationErrors{Errors: errors}
	}

	return nil
}

// ValidationErrors 多个验证错误
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	msg := "配置验证失败，发现以下问题：\n"
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}
