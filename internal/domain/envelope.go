package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const EnvelopeContentType = "application/json"

// Envelope is the serialized wire form of an admitted record.
type Envelope struct {
	RecordID string
	Weight   uint64
	Intent   string
	Payload  []byte
}

// Key is the partition key used when the envelope is produced.
func (e Envelope) Key() []byte {
	return []byte(e.RecordID)
}

// wireEnvelope field names are a compatibility contract with existing consumers.
type wireEnvelope struct {
	SvtId                string `json:"SvtId"`
	Did                  string `json:"Did"`
	Intent               string `json:"Intent"`
	TimestampEpoch       int64  `json:"TimestampEpoch"`
	FinalConsensusWeight uint64 `json:"FinalConsensusWeight"`
	VerificationFlag     string `json:"VerificationFlag"`
}

// EncodeEnvelope serializes a record. It does not apply the admission gate.
func EncodeEnvelope(r Record) (Envelope, error) {
	if strings.TrimSpace(r.ID) == "" {
		return Envelope{}, fmt.Errorf("%w: svt id is required", ErrEncodeFailure)
	}
	for name, value := range map[string]string{"svt_id": r.ID, "did": r.Identity, "intent": r.Intent} {
		if !utf8.ValidString(value) {
			return Envelope{}, fmt.Errorf("%w: %s is not valid utf-8", ErrEncodeFailure, name)
		}
	}
	payload, err := json.Marshal(wireEnvelope{
		SvtId:                r.ID,
		Did:                  r.Identity,
		Intent:               r.Intent,
		TimestampEpoch:       r.SubmittedAt,
		FinalConsensusWeight: r.Weight,
		VerificationFlag:     VerifiedFlag,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	return Envelope{RecordID: r.ID, Weight: r.Weight, Intent: r.Intent, Payload: payload}, nil
}

// DecodeEnvelope reconstructs a record from its wire form.
func DecodeEnvelope(payload []byte) (Record, error) {
	if len(payload) == 0 {
		return Record{}, fmt.Errorf("%w: empty envelope", ErrDecodeFailure)
	}
	var w wireEnvelope
	if err := json.Unmarshal(payload, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if strings.TrimSpace(w.SvtId) == "" {
		return Record{}, fmt.Errorf("%w: missing SvtId", ErrDecodeFailure)
	}
	if w.VerificationFlag != VerifiedFlag {
		return Record{}, fmt.Errorf("%w: unexpected VerificationFlag %q", ErrDecodeFailure, w.VerificationFlag)
	}
	return Record{
		ID:               w.SvtId,
		Identity:         w.Did,
		Intent:           w.Intent,
		SubmittedAt:      w.TimestampEpoch,
		Weight:           w.FinalConsensusWeight,
		VerificationFlag: w.VerificationFlag,
	}, nil
}
