package dashscope

import "strings"

// 全局DashScope服务实例，嵌入器和对话客户端共用同一连接
var globalService *Service

// InitGlobalService 初始化全局DashScope服务，密钥为空时跳过
func InitGlobalService(apiKey string) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return
	}

	globalService = NewService(apiKey)
}

// GetGlobalService 获取全局DashScope服务实例，未初始化时返回nil
func GetGlobalService() *Service {
	return globalService
}

// IsGlobalServiceReady 检查全局服务是否就绪
func IsGlobalServiceReady() bool {
	return globalService != nil && globalService.Ready()
}
