package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedMarket = errors.New("unsupported market")
	ErrStaleQuote        = errors.New("stale quote")
	ErrNotTwoSided       = errors.New("market not two-sided")
	ErrStaleCredential   = errors.New("stale credential")
	ErrDispatchRejected  = errors.New("dispatch rejected")
	ErrAlreadyDispatched = errors.New("already dispatched")
	ErrFeedDisconnected  = errors.New("feed disconnected")
	ErrCredentialRefresh = errors.New("credential refresh failed")
	ErrLockHeld          = errors.New("lock already held")
	ErrContextDone       = errors.New("context cancelled")
)
