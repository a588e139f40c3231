package postgres

import "time"

type sovereigntyRecordModel struct {
	SvtID                string    `gorm:"column:svt_id;primaryKey"`
	Did                  string    `gorm:"column:did"`
	Intent               string    `gorm:"column:intent"`
	TimestampEpoch       int64     `gorm:"column:timestamp_epoch"`
	FinalConsensusWeight uint64    `gorm:"column:final_consensus_weight"`
	VerificationFlag     string    `gorm:"column:verification_flag"`
	SourceTopic          string    `gorm:"column:source_topic"`
	SourcePartition      int       `gorm:"column:source_partition"`
	SourceOffset         int64     `gorm:"column:source_offset"`
	ArchivedAt           time.Time `gorm:"column:archived_at"`
}

func (sovereigntyRecordModel) TableName() string { return "sovereignty_records" }
