package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
)

const maxBodyBytes = 4 << 20

type submitRecordRequest struct {
	SvtID                string  `json:"svt_id"`
	Did                  string  `json:"did"`
	Intent               string  `json:"intent"`
	TimestampEpoch       *int64  `json:"timestamp_epoch"`
	FinalConsensusWeight *uint64 `json:"final_consensus_weight"`
}

func (req submitRecordRequest) toRecord() (domain.Record, error) {
	did := strings.TrimSpace(req.Did)
	intent := strings.TrimSpace(req.Intent)
	switch {
	case did == "":
		return domain.Record{}, fmt.Errorf("%w: did is required", domain.ErrInvalidInput)
	case intent == "":
		return domain.Record{}, fmt.Errorf("%w: intent is required", domain.ErrInvalidInput)
	case req.TimestampEpoch == nil:
		return domain.Record{}, fmt.Errorf("%w: timestamp_epoch is required", domain.ErrInvalidInput)
	case req.FinalConsensusWeight == nil:
		return domain.Record{}, fmt.Errorf("%w: final_consensus_weight is required", domain.ErrInvalidInput)
	}
	id := strings.TrimSpace(req.SvtID)
	if id == "" {
		id = domain.DeriveRecordID(did, intent, *req.TimestampEpoch)
	}
	return domain.NewRecord(id, did, intent, *req.TimestampEpoch, *req.FinalConsensusWeight), nil
}

type submitBatchRequest struct {
	Records []submitRecordRequest `json:"records"`
}

type outcomeResponse struct {
	SvtID     string `json:"svt_id"`
	Status    string `json:"status"`
	Topic     string `json:"topic,omitempty"`
	Partition *int   `json:"partition,omitempty"`
	Offset    *int64 `json:"offset,omitempty"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func toOutcomeResponse(o domain.Outcome) outcomeResponse {
	resp := outcomeResponse{SvtID: o.RecordID, Status: string(o.Status)}
	if o.Acknowledged() {
		partition, offset := o.Placement.Partition, o.Placement.Offset
		resp.Topic = o.Placement.Topic
		resp.Partition = &partition
		resp.Offset = &offset
		return resp
	}
	_, resp.Code = mapOutcomeError(o.Err)
	resp.Reason = o.Reason
	return resp
}

func (h *Handler) submitRecord(w http.ResponseWriter, r *http.Request) {
	var req submitRecordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	outcome := h.submitter.Submit(r.Context(), rec)
	if outcome.Acknowledged() {
		writeSuccess(w, http.StatusAccepted, toOutcomeResponse(outcome))
		return
	}
	status, code := mapOutcomeError(outcome.Err)
	writeError(w, r, status, code, fmt.Sprintf("svt %s %s: %s", outcome.RecordID, outcome.Status, outcome.Reason))
}

func (h *Handler) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req submitBatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	if len(req.Records) == 0 {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "records must not be empty")
		return
	}
	if len(req.Records) > h.maxBatch {
		writeError(w, r, http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE", fmt.Sprintf("at most %d records per batch", h.maxBatch))
		return
	}
	recs := make([]domain.Record, 0, len(req.Records))
	for i, item := range req.Records {
		rec, err := item.toRecord()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("records[%d]: %v", i, err))
			return
		}
		recs = append(recs, rec)
	}
	outcomes := h.submitter.SubmitAll(r.Context(), recs)
	out := make([]outcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, toOutcomeResponse(o))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"outcomes": out})
}
