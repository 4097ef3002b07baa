package control

import "codeberg.org/veldt/ventctl/internal/errors"

const (
	// Command errors
	ErrBadPassphrase        = errors.ErrorCode("control_bad_passphrase")
	ErrRateOutOfRange       = errors.ErrorCode("control_rate_out_of_range")
	ErrSaturationOutOfRange = errors.ErrorCode("control_saturation_out_of_range")
)
