package services

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnknownBadge = errors.New("unknown badge")
	ErrUnknownRule  = errors.New("unknown rule")
)
