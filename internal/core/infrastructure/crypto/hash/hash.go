// Package hash 基于 golang.org/x/crypto/sha3 的哈希服务
package hash

import (
	"crypto/sha256"
	"crypto/subtle"
	gohash "hash"

	cryptointf "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/crypto"
	"golang.org/x/crypto/sha3"
)

// 确保HashService实现了cryptointf.HashManager接口
var _ cryptointf.HashManager = (*HashService)(nil)

// HashService 提供哈希计算功能
type HashService struct{}

// NewHashService 创建新的哈希服务
func NewHashService() *HashService {
	return &HashService{}
}

// SHA256 计算SHA-256哈希
func (s *HashService) SHA256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Keccak256 计算Keccak-256哈希（以太坊变体，非NIST SHA3）
func (s *HashService) Keccak256(data []byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// NewKeccak256Hasher 创建流式Keccak-256哈希器
func (s *HashService) NewKeccak256Hasher() gohash.Hash {
	return sha3.NewLegacyKeccak256()
}

// Sum32 将哈希结果转换为定长数组，长度不足时右侧补零
func Sum32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

// ConstantTimeCompare 在常量时间内比较两个哈希值是否相等
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
