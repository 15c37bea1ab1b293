//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package workflow

import "errors"

var (
	// ErrMalformedWorkflow is returned when a document is missing a
	// required top-level section or is not valid JSON.
	ErrMalformedWorkflow = errors.New("malformed workflow document")
	// ErrUnknownInputIndex is returned when an input index is out of range.
	ErrUnknownInputIndex = errors.New("unknown input index")
	// ErrValidationFailed is returned when one or more inputs fail
	// validation before submission.
	ErrValidationFailed = errors.New("workflow validation failed")
	// ErrSubmissionFailed is returned when the server rejects an
	// enqueue request.
	ErrSubmissionFailed = errors.New("workflow submission failed")
)
