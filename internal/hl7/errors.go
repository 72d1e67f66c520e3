package hl7

import "errors"

var (
	ErrEmptyMessage       = errors.New("hl7: empty message")
	ErrMissingSegmentType = errors.New("hl7: segment missing type code")
	ErrInvalidProfile     = errors.New("hl7: invalid delimiter profile")
)
