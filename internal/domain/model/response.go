package model

import "github.com/google/uuid"

// SendFailure records a recipient that could not be reached during fan-out.
type SendFailure struct {
	ConnID uuid.UUID `json:"conn_id"`
	Reason string    `json:"reason"`
}

// Response summarises an accepted request. Delivery failures are informational.
type Response struct {
	Recipients int           `json:"recipients"`
	Delivered  int           `json:"delivered"`
	Failures   []SendFailure `json:"failures,omitempty"`
}

// IsOk is true for every accepted request.
func (r *Response) IsOk() bool { return r != nil }
