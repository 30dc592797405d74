package checkout

import "errors"

var (
	ErrIllegalTransition    = errors.New("illegal checkout transition")
	ErrSubmissionInProgress = errors.New("order submission already in progress")
)
