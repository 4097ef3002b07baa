package device

import "codeberg.org/veldt/ventctl/internal/errors"

const (
	ErrOximeterInit    = errors.ErrorCode("device_oximeter_init_failed")
	ErrOximeterOffline = errors.ErrorCode("device_oximeter_offline")
)
