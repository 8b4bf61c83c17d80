package engine

import "errors"

var (
	ErrNotFound       = errors.New("lending: not found")
	ErrInvalidAddress = errors.New("lending: invalid address")
	ErrInvalidAmount  = errors.New("lending: invalid amount")
	ErrUnauthorized   = errors.New("lending: unauthorized")
	ErrQuotaExceeded  = errors.New("lending: quota exceeded")
	ErrInternal       = errors.New("lending: internal error")
)
