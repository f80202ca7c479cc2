package registry

import (
	"context"

	"github.com/blang/semver/v4"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

func (r *Registry) validateCode(ctx context.Context, bytecode []byte, abi types.ABI, limits types.ResourceLimits) error {
	if len(bytecode) == 0 {
		return types.ErrInvalidBytecode.With("empty bytecode")
	}
	if max := r.options.MaxBytecodeSize; max > 0 && uint64(len(bytecode)) > max {
		return types.ErrSizeLimitExceeded.With("bytecode size %d exceeds %d", len(bytecode), max)
	}
	names, err := abi.MethodNames()
	if err != nil {
		return err
	}
	if r.sandbox == nil {
		return nil
	}
	if err := r.sandbox.Validate(ctx, bytecode, names, limits); err != nil {
		if types.CodeOf(err) != "" {
			return err
		}
		return types.ErrInvalidBytecode.Wrap(err, "sandbox rejected bytecode")
	}
	return nil
}

func (r *Registry) validateMetadata(md types.Metadata) (semver.Version, error) {
	v, err := md.SemVer()
	if err != nil {
		return v, types.ErrInvalidMetadata.Wrap(err, "version %q is not semver", md.Version)
	}
	if max := r.options.MaxDescriptionLength; max > 0 && len(md.Description) > max {
		return v, types.ErrInvalidMetadata.With("description length %d exceeds %d", len(md.Description), max)
	}
	return v, nil
}

// resolveLimits 零值字段取默认值，并检查配置上限
func (r *Registry) resolveLimits(limits types.ResourceLimits) (types.ResourceLimits, error) {
	def := r.options.DefaultLimits
	if limits.MaxGas == 0 {
		limits.MaxGas = def.MaxGas
	}
	if limits.MaxMemory == 0 {
		limits.MaxMemory = def.MaxMemory
	}
	if limits.MaxStorage == 0 {
		limits.MaxStorage = def.MaxStorage
	}
	if limits.MaxCallDepth == 0 {
		limits.MaxCallDepth = def.MaxCallDepth
	}
	if c := r.options.CeilingMaxGas; c > 0 && limits.MaxGas > c {
		return limits, types.ErrResourceLimitExceeded.With("max_gas %d exceeds ceiling %d", limits.MaxGas, c)
	}
	if c := r.options.CeilingMaxMemory; c > 0 && limits.MaxMemory > c {
		return limits, types.ErrResourceLimitExceeded.With("max_memory %d exceeds ceiling %d", limits.MaxMemory, c)
	}
	return limits, nil
}
