package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotlake/internal/events"
	"github.com/desertthunder/spotlake/internal/shared"
	"github.com/desertthunder/spotlake/internal/storage"
)

// StagingOpts configures a [StagingMover].
type StagingOpts struct {
	Raw       storage.Bucket
	Staging   storage.Bucket
	Contracts ContractLookup
	Logger    *log.Logger
}

// StageResult lists the keys that were moved and the keys left in place for lack of a contract.
type StageResult struct {
	Moved   []string
	Skipped []string
}

// StagingMover promotes raw objects covered by a data contract into the staging area.
type StagingMover struct {
	raw       storage.Bucket
	staging   storage.Bucket
	contracts ContractLookup
	logger    *log.Logger
}

// NewStagingMover builds a mover from opts.
func NewStagingMover(opts StagingOpts) *StagingMover {
	return &StagingMover{
		raw:       opts.Raw,
		staging:   opts.Staging,
		contracts: opts.Contracts,
		logger:    componentLogger(opts.Logger, "staging"),
	}
}

// Move processes every reference in order. The source is deleted only after the copy succeeded.
func (m *StagingMover) Move(ctx context.Context, refs []events.ObjectRef) (*StageResult, error) {
	result := &StageResult{}
	for _, ref := range refs {
		if ref.Bucket != "" && ref.Bucket != m.raw.Name() {
			m.logger.Warn("notification names another bucket", "bucket", ref.Bucket, "raw", m.raw.Name())
		}

		name := keyName(ref.Key)
		if name == "" {
			return result, fmt.Errorf("%w: %q has no key name", shared.ErrMalformedKey, ref.Key)
		}

		if _, err := m.contracts.Get(ctx, name); err != nil {
			if errors.Is(err, shared.ErrContractNotFound) {
				m.logger.Info("no data contract, leaving object", "key", ref.Key, "key_name", name)
				result.Skipped = append(result.Skipped, ref.Key)
				continue
			}
			return result, fmt.Errorf("failed to look up contract %s: %w", name, err)
		}

		if err := storage.Copy(ctx, m.raw, m.staging, ref.Key); err != nil {
			return result, fmt.Errorf("failed to copy %s: %w", ref.Key, err)
		}
		if err := m.raw.Delete(ctx, ref.Key); err != nil {
			return result, fmt.Errorf("failed to delete %s after copy: %w", ref.Key, err)
		}

		m.logger.Info("staged", "key", ref.Key)
		result.Moved = append(result.Moved, ref.Key)
	}
	return result, nil
}
