package state

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/weisyn/contractcore/internal/core/contract/keys"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

func putMeta(tx storage.Transaction, address types.Address, meta stateMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return tx.Set(keys.StateMeta(address), raw)
}

func putChange(tx storage.Transaction, address types.Address, record types.ChangeRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return tx.Set(keys.Change(address, record.Seq), raw)
}

func snapshotKey(s *types.Snapshot) []byte {
	return keys.Snapshot(s.Address, s.Seq)
}

// encodeSnapshot 快照以 snappy 压缩的 JSON 存储
func encodeSnapshot(s *types.Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeSnapshot(b []byte) (*types.Snapshot, error) {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, err
	}
	var s types.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func putSnapshot(tx storage.Transaction, s *types.Snapshot) error {
	raw, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	return tx.Set(snapshotKey(s), raw)
}

func writeDiffs(tx storage.Transaction, address types.Address, diffs []types.DiffEntry) error {
	for _, d := range diffs {
		key := keys.State(address, d.Key)
		if d.New == nil {
			if err := tx.Delete(key); err != nil {
				return err
			}
			continue
		}
		if err := tx.Set(key, d.New); err != nil {
			return err
		}
	}
	return nil
}

// loadEntries 从存储读取地址的全部状态
func (m *Manager) loadEntries(ctx context.Context, address types.Address) (map[string][]byte, error) {
	prefix := keys.StatePrefix(address)
	raw, err := m.store.PrefixScan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[strings.TrimPrefix(k, string(prefix))] = v
	}
	return out, nil
}

// Load 从存储重建全部地址的状态、快照与变更记录
func (m *Manager) Load(ctx context.Context) error {
	metas, err := m.store.PrefixScan(ctx, []byte(keys.PrefixStateMeta))
	if err != nil {
		return types.ErrRead.Wrap(err, "scan state metadata")
	}

	states := make(map[types.Address]*addrState, len(metas))
	for k, v := range metas {
		address, err := parseAddressHex(strings.TrimPrefix(k, keys.PrefixStateMeta))
		if err != nil {
			return types.ErrCorruptedState.Wrap(err, "state meta key %q", k)
		}
		var meta stateMeta
		if err := json.Unmarshal(v, &meta); err != nil {
			return types.ErrCorruptedState.Wrap(err, "decode state meta of %s", address)
		}

		entries, err := m.loadEntries(ctx, address)
		if err != nil {
			return types.ErrRead.Wrap(err, "load state of %s", address)
		}
		snapshots, err := m.loadSnapshots(ctx, address)
		if err != nil {
			return err
		}
		history, err := m.loadHistory(ctx, address)
		if err != nil {
			return err
		}

		s := &addrState{meta: meta, snapshots: snapshots, history: history}
		s.data.Store(newStateData(entries))
		s.corrupted.Store(meta.Corrupted)
		if meta.Corrupted {
			m.logger.Warnf("地址处于隔离状态: %s (%s)", address, meta.Reason)
		}
		states[address] = s
	}

	m.mu.Lock()
	m.states = states
	m.mu.Unlock()
	m.logger.Infof("合约状态已加载: addresses=%d", len(states))
	return nil
}

func (m *Manager) loadSnapshots(ctx context.Context, address types.Address) ([]*types.Snapshot, error) {
	raw, err := m.store.PrefixScan(ctx, keys.SnapshotPrefix(address))
	if err != nil {
		return nil, types.ErrRead.Wrap(err, "scan snapshots of %s", address)
	}
	out := make([]*types.Snapshot, 0, len(raw))
	for k, v := range raw {
		snap, err := decodeSnapshot(v)
		if err != nil {
			return nil, types.ErrCorruptedState.Wrap(err, "decode snapshot %s", k)
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *Manager) loadHistory(ctx context.Context, address types.Address) ([]types.ChangeRecord, error) {
	raw, err := m.store.PrefixScan(ctx, keys.ChangePrefix(address))
	if err != nil {
		return nil, types.ErrRead.Wrap(err, "scan change history of %s", address)
	}
	out := make([]types.ChangeRecord, 0, len(raw))
	for k, v := range raw {
		var r types.ChangeRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return nil, types.ErrCorruptedState.Wrap(err, "decode change record %s", k)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if len(out) > historyLimit {
		out = out[len(out)-historyLimit:]
	}
	return out, nil
}

func parseAddressHex(h string) (types.Address, error) {
	var a types.Address
	b, err := hex.DecodeString(h)
	if err != nil {
		return a, err
	}
	if len(b) != types.AddressLength {
		return a, fmt.Errorf("address must be %d bytes, got %d", types.AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}
