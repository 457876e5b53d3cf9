package core

import (
	"fmt"
	"strings"
)

// EncryptedPrefix 标记加密存储的 Key
const EncryptedPrefix = "enc:"

// NoOpSecretProvider 默认的明文透传 SecretProvider
type NoOpSecretProvider struct{}

func NewNoOpSecretProvider() *NoOpSecretProvider {
	return &NoOpSecretProvider{}
}

func (s *NoOpSecretProvider) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

func (s *NoOpSecretProvider) Encrypt(plaintext string) (string, error) {
	return plaintext, nil
}

// DecryptKeys 解密带 enc: 前缀的条目，其余原样保留
// 解密失败的条目被丢弃并汇总成一个错误返回，其余 Key 仍可使用
func DecryptKeys(sp SecretProvider, keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	var failed int
	for _, k := range keys {
		if !strings.HasPrefix(k, EncryptedPrefix) {
			out = append(out, k)
			continue
		}
		plain, err := sp.Decrypt(strings.TrimPrefix(k, EncryptedPrefix))
		if err != nil {
			failed++
			continue
		}
		out = append(out, plain)
	}
	if failed > 0 {
		return out, fmt.Errorf("failed to decrypt %d of %d keys", failed, len(keys))
	}
	return out, nil
}

// EncryptKey 加密并加上 enc: 前缀
func EncryptKey(sp SecretProvider, plaintext string) (string, error) {
	ct, err := sp.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + ct, nil
}
