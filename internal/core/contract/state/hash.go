package state

import (
	"encoding/binary"
	"sort"

	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/crypto"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// StateHash 按键排序后对 (len(k) k len(v) v) 序列计算 Keccak-256
//
// entries 必须已按键排序。
func StateHash(h crypto.HashManager, entries []types.Entry) [32]byte {
	hasher := h.NewKeccak256Hasher()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, e := range entries {
		n := binary.PutUvarint(lenBuf[:], uint64(len(e.Key)))
		hasher.Write(lenBuf[:n])
		hasher.Write(e.Key)
		n = binary.PutUvarint(lenBuf[:], uint64(len(e.Value)))
		hasher.Write(lenBuf[:n])
		hasher.Write(e.Value)
	}
	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// sortedEntries 将映射转换为按键排序的条目，值为副本
func sortedEntries(m map[string][]byte) []types.Entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.Entry, len(keys))
	for i, k := range keys {
		out[i] = types.Entry{Key: []byte(k), Value: cloneBytes(m[k])}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// diffMaps 两个状态映射之间按键排序的差异
func diffMaps(old, new map[string][]byte) []types.DiffEntry {
	seen := make(map[string]struct{}, len(old)+len(new))
	var keys []string
	for k := range old {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range new {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []types.DiffEntry
	for _, k := range keys {
		ov, inOld := old[k]
		nv, inNew := new[k]
		if inOld && inNew && string(ov) == string(nv) {
			continue
		}
		d := types.DiffEntry{Key: []byte(k)}
		if inOld {
			d.Old = cloneBytes(ov)
		}
		if inNew {
			d.New = cloneBytes(nv)
		}
		out = append(out, d)
	}
	return out
}

func entriesToMap(entries []types.Entry) map[string][]byte {
	m := make(map[string][]byte, len(entries))
	for _, e := range entries {
		m[string(e.Key)] = append([]byte{}, e.Value...)
	}
	return m
}
