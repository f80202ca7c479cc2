package registry

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

// storedRecord reg/<addr> 下的注册记录；版本本体单独存放在 ver/<addr>/<seq>
type storedRecord struct {
	Order        uint64                `json:"order"`
	Current      int                   `json:"current"`
	Count        int                   `json:"count"`
	Limits       types.ResourceLimits  `json:"limits"`
	Entries      []historyEntry        `json:"entries"`
	Upgrades     []types.UpgradeRecord `json:"upgrades"`
	Rollbacks    int                   `json:"rollbacks"`
	UpgradeTimes []int64               `json:"upgrade_times,omitempty"`
}

func putRecord(tx storage.Transaction, rec *record) error {
	raw, err := json.Marshal(storedRecord{
		Order:        rec.order,
		Current:      rec.current,
		Count:        len(rec.versions),
		Limits:       rec.limits,
		Entries:      rec.entries,
		Upgrades:     rec.upgrades,
		Rollbacks:    rec.rollbacks,
		UpgradeTimes: rec.upgradeTimes,
	})
	if err != nil {
		return err
	}
	return tx.Set(keys.Registry(rec.address), raw)
}

// putVersion 版本以 snappy 压缩的 JSON 存储
func putVersion(tx storage.Transaction, address types.Address, seq uint64, v *types.Version) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(keys.Version(address, seq), snappy.Encode(nil, raw))
}

func decodeVersion(b []byte) (*types.Version, error) {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, err
	}
	var v types.Version
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Load 从存储重建注册表；记录与版本数量不一致时返回 InconsistentState
func (r *Registry) Load(ctx context.Context) error {
	raw, err := r.store.PrefixScan(ctx, []byte(keys.PrefixRegistry))
	if err != nil {
		return types.ErrRead.Wrap(err, "scan registry")
	}

	records := make(map[types.Address]*record, len(raw))
	var nextOrder uint64
	for k, v := range raw {
		address, err := parseAddressHex(strings.TrimPrefix(k, keys.PrefixRegistry))
		if err != nil {
			return types.ErrCorruptedState.Wrap(err, "registry key %q", k)
		}
		var sr storedRecord
		if err := json.Unmarshal(v, &sr); err != nil {
			return types.ErrCorruptedState.Wrap(err, "decode registry record of %s", address)
		}
		versions, err := r.loadVersions(ctx, address)
		if err != nil {
			return err
		}
		// 版本先于记录写入同一事务，数量只可能相等
		if len(versions) != sr.Count || len(sr.Entries) != sr.Count || sr.Current < 0 || sr.Current >= sr.Count {
			return types.ErrInconsistentState.With("registry record of %s: count=%d versions=%d entries=%d current=%d",
				address, sr.Count, len(versions), len(sr.Entries), sr.Current)
		}
		records[address] = &record{
			address:      address,
			order:        sr.Order,
			versions:     versions,
			entries:      sr.Entries,
			current:      sr.Current,
			limits:       sr.Limits,
			upgrades:     sr.Upgrades,
			rollbacks:    sr.Rollbacks,
			upgradeTimes: sr.UpgradeTimes,
		}
		if sr.Order >= nextOrder {
			nextOrder = sr.Order + 1
		}
	}

	r.mu.Lock()
	r.records = records
	r.nextOrder = nextOrder
	r.mu.Unlock()
	r.logger.Infof("合约注册表已加载: contracts=%d", len(records))
	return nil
}

func (r *Registry) loadVersions(ctx context.Context, address types.Address) ([]*types.Version, error) {
	prefix := keys.VersionPrefix(address)
	raw, err := r.store.PrefixScan(ctx, prefix)
	if err != nil {
		return nil, types.ErrRead.Wrap(err, "scan versions of %s", address)
	}
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]*types.Version, 0, len(names))
	for _, k := range names {
		v, err := decodeVersion(raw[k])
		if err != nil {
			return nil, types.ErrCorruptedState.Wrap(err, "decode version %s", k)
		}
		out = append(out, v)
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
