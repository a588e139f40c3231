package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArchiveRepository is the permanent archival sink. Inserts are keyed by
// svt_id and ignore conflicts, so redelivered records archive once.
type ArchiveRepository struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db, nowFn: func() time.Time { return time.Now().UTC() }}
}

func (r *ArchiveRepository) Archive(ctx context.Context, rec domain.Record, placement domain.Placement) error {
	row := sovereigntyRecordModel{
		SvtID:                rec.ID,
		Did:                  rec.Identity,
		Intent:               rec.Intent,
		TimestampEpoch:       rec.SubmittedAt,
		FinalConsensusWeight: rec.Weight,
		VerificationFlag:     rec.VerificationFlag,
		SourceTopic:          placement.Topic,
		SourcePartition:      placement.Partition,
		SourceOffset:         placement.Offset,
		ArchivedAt:           r.nowFn(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "svt_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: archive %s: %w", domain.ErrSinkFailure, rec.ID, err)
	}
	return nil
}

var _ ports.Sink = (*ArchiveRepository)(nil)
