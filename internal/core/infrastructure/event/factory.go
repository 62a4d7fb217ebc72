package event

import (
	eventconfig "github.com/sandvm/v1/internal/config/event"
	"github.com/sandvm/v1/pkg/interfaces/config"
	eventInterface "github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"

	"go.uber.org/fx"
)

// ServiceInput 事件服务工厂函数的输入参数
type ServiceInput struct {
	Provider  config.Provider // 配置提供者
	Logger    log.Logger      // 日志记录器（可选）
	Lifecycle fx.Lifecycle    // 生命周期管理
}

// ServiceOutput 事件服务工厂函数的输出结果
type ServiceOutput struct {
	EventBus eventInterface.EventBus // 基础事件总线
}

// CreateEventServices 创建事件服务
func CreateEventServices(input ServiceInput) (ServiceOutput, error) {
	// 获取事件配置选项
	eventOptions := input.Provider.GetEvent()

	// 创建事件配置
	eventCfg := eventconfig.New(eventOptions)

	// 初始化基础事件总线
	eventBus := New(eventCfg)

	// 记录日志
	if input.Logger != nil {
		input.Logger.Info("基础事件总线已初始化")
	}

	return ServiceOutput{
		EventBus: eventBus,
	}, nil
}
