package core

import "context"

// ConfigProvider 只读的评审配置视图 (key/value)
// 取不到或类型不符时返回零值
type ConfigProvider interface {
	Value(name string) (interface{}, bool)
	String(name string) string
	Bool(name string) bool
	Int(name string) int
}

// SecretProvider 抽象密钥加解密
// 用于读取配置时自动解密 API Key
type SecretProvider interface {
	Decrypt(ciphertext string) (string, error)
	Encrypt(plaintext string) (string, error)
}

// Authorizer 评审入口的调用方鉴权
type Authorizer interface {
	Authorize(ctx context.Context, token string) bool
}
