package ocr

import "errors"

// ErrNoText is returned when OCR produces no usable text from the image.
var ErrNoText = errors.New("no text detected")
