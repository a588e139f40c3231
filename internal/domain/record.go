package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const (
	// MinimumConsensusWeight is the lowest weight the admission gate accepts.
	MinimumConsensusWeight uint64 = 1000
	// VerifiedFlag is asserted on every admitted record.
	VerifiedFlag = "V"

	ReasonBelowThreshold = "below minimal threshold"

	DefaultTopic         = "AEGIS_SOVEREIGNTY_LOG"
	DefaultConsumerGroup = "THe_Mafia_GothicHippie_Loggers"
)

// Record is a finalized, weight-scored sovereign verification transaction.
type Record struct {
	ID               string
	Identity         string
	Intent           string
	SubmittedAt      int64
	Weight           uint64
	VerificationFlag string
}

// NewRecord builds a record carrying the verified flag.
func NewRecord(id, identity, intent string, submittedAt int64, weight uint64) Record {
	return Record{
		ID:               id,
		Identity:         identity,
		Intent:           intent,
		SubmittedAt:      submittedAt,
		Weight:           weight,
		VerificationFlag: VerifiedFlag,
	}
}

func (r Record) Admissible() bool {
	return r.Weight >= MinimumConsensusWeight
}

// DeriveRecordID hashes the submission content into a stable SVT identifier.
func DeriveRecordID(identity, intent string, submittedAt int64) string {
	h := sha256.New()
	h.Write([]byte(identity))
	h.Write([]byte{0})
	h.Write([]byte(intent))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(submittedAt, 10)))
	return "SVT-" + hex.EncodeToString(h.Sum(nil))[:16]
}
