// Package rotation spreads review traffic across pools of upstream API keys.
//
// A KeyPool is the sanitized, ordered list of credentials configured for one
// slot. The KeyRotator remembers per pool where the next request should start
// and runs the in-request failover loop across the pool.
package rotation

import "strings"

// KeyPool 一个命名的 API Key 池
type KeyPool struct {
	// Name 轮询状态的记账名，如 "openrouter"
	Name string
	Keys []string
}

// NewKeyPool 从原始配置值构造 Key 池
func NewKeyPool(name string, raw interface{}) KeyPool {
	return KeyPool{Name: name, Keys: NormalizeKeys(raw)}
}

// Len 返回 Key 数量
func (p KeyPool) Len() int { return len(p.Keys) }

// Empty 池中没有可用 Key
func (p KeyPool) Empty() bool { return len(p.Keys) == 0 }

// NormalizeKeys 将配置值 (单个字符串或字符串列表) 规范化为去空白、非空的 Key 列表。
// 保留原始顺序和重复项：同一个 Key 粘贴两次即获得双倍轮询权重。
// 其他类型一律返回空列表。
func NormalizeKeys(raw interface{}) []string {
	keys := make([]string, 0)

	switch v := raw.(type) {
	case string:
		if k := strings.TrimSpace(v); k != "" {
			keys = append(keys, k)
		}
	case []string:
		for _, item := range v {
			if k := strings.TrimSpace(item); k != "" {
				keys = append(keys, k)
			}
		}
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if k := strings.TrimSpace(s); k != "" {
				keys = append(keys, k)
			}
		}
	}

	return keys
}
