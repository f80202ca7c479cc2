// Package crypto 定义合约核心使用的哈希服务接口
package crypto

import "hash"

// HashManager 哈希计算服务
//
// 字节码哈希与状态内容哈希都使用 Keccak-256。
type HashManager interface {
	// SHA256 计算SHA-256哈希
	SHA256(data []byte) []byte

	// Keccak256 计算Keccak-256哈希
	Keccak256(data []byte) []byte

	// NewKeccak256Hasher 流式Keccak-256，用于对大量条目计算哈希
	NewKeccak256Hasher() hash.Hash
}
