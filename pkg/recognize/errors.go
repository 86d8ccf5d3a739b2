package recognize

import "errors"

// ErrEmptyInput is returned when no usable text remains after cleaning raw
// OCR output. The caller should ask for a clearer image rather than retry.
var ErrEmptyInput = errors.New("no usable text after cleaning")

// ErrFetch marks a transient failure talking to an external collaborator
// (catalog query or reference-image download). Collaborator implementations
// wrap it so the ladder can recover locally instead of aborting.
var ErrFetch = errors.New("transient fetch failure")
