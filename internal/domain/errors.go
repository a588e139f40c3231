package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid_input")
	ErrPolicyRejection   = errors.New("policy_rejection")
	ErrEncodeFailure     = errors.New("encode_failure")
	ErrPublishFailure    = errors.New("publish_failure")
	ErrDecodeFailure     = errors.New("decode_failure")
	ErrConnectionFailure = errors.New("connection_failure")
	ErrSinkFailure       = errors.New("sink_failure")
	ErrSubscriberClosed  = errors.New("subscriber_closed")
)
