package crypto

import (
	"context"
	"strings"
)

const mockPrefix = "mock:"

// MockEncryptor implements Encryptor for local development without KMS.
// Ciphertext is the plaintext with a marker prefix.
type MockEncryptor struct{}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{}
}

func (m *MockEncryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return mockPrefix + plaintext, nil
}

func (m *MockEncryptor) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	plain, _ := strings.CutPrefix(ciphertext, mockPrefix)
	return plain, nil
}
