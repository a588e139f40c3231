package domain

import "time"

type OutcomeStatus string

const (
	OutcomeAcknowledged OutcomeStatus = "acknowledged"
	OutcomeFailed       OutcomeStatus = "failed"
	OutcomeRejected     OutcomeStatus = "rejected"
	OutcomeInvalid      OutcomeStatus = "invalid"
)

// Placement is where the log stored an envelope.
type Placement struct {
	Topic     string
	Partition int
	Offset    int64
}

// Outcome is the result of submitting one record. Exactly one of the
// placement or the reason is meaningful, depending on Status.
type Outcome struct {
	RecordID  string
	Status    OutcomeStatus
	Placement Placement
	Reason    string
	Err       error
	At        time.Time
}

func (o Outcome) Acknowledged() bool { return o.Status == OutcomeAcknowledged }

func Acknowledged(recordID string, placement Placement, at time.Time) Outcome {
	return Outcome{RecordID: recordID, Status: OutcomeAcknowledged, Placement: placement, At: at}
}

func Failed(recordID string, err error, at time.Time) Outcome {
	return Outcome{RecordID: recordID, Status: OutcomeFailed, Reason: err.Error(), Err: err, At: at}
}

func Rejected(recordID string, err error, reason string, at time.Time) Outcome {
	return Outcome{RecordID: recordID, Status: OutcomeRejected, Reason: reason, Err: err, At: at}
}

func Invalid(recordID string, err error, at time.Time) Outcome {
	return Outcome{RecordID: recordID, Status: OutcomeInvalid, Reason: err.Error(), Err: err, At: at}
}

// Delivery is one envelope read back from the log.
type Delivery struct {
	Placement Placement
	Key       []byte
	Payload   []byte
	Headers   map[string]string
	Time      time.Time
}
