package core

import "strings"

// 评审配置项名称
const (
	OptReviewProvider     = "review_provider"
	OptDebugLogging       = "debug_logging"
	OptExtendedThinking   = "anthropic_extended_thinking"
	OptAnthropicMaxTokens = "anthropic_max_tokens"
	OptThinkingBudget     = "anthropic_thinking_budget"

	// ProviderNone 关闭第二阶段评审
	ProviderNone = "none"

	keyPoolSuffix = "_api_keys"
)

func ModelOption(provider string) string        { return provider + "_model" }
func SystemPromptOption(provider string) string { return provider + "_system_prompt" }
func KeyPoolOption(provider string) string      { return provider + keyPoolSuffix }
func PoolNameOption(provider string) string     { return provider + "_pool_name" }

// IsKeyPoolOption 该配置项保存的是 API Key 池
func IsKeyPoolOption(name string) bool {
	return strings.HasSuffix(name, keyPoolSuffix)
}
