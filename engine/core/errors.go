package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrNotInitialized       = errors.New("not initialized")
	ErrDescriptorAllocation = errors.New("descriptor set allocation failed")
	ErrTransferInFlight     = errors.New("an immediate submit is already in flight")
	ErrFenceTimeout         = errors.New("fence wait timed out")
	ErrDeviceLost           = errors.New("device lost")
	ErrUnknown              = errors.New("unknown")
)

// AssertInitialized reports a broken precondition. The returned error is an
// assertion failure marked with ErrNotInitialized; callers must stop the
// current operation when they get one.
func AssertInitialized(ok bool, format string, args ...interface{}) error {
	if ok {
		return nil
	}
	err := errors.Mark(errors.AssertionFailedWithDepthf(1, format, args...), ErrNotInitialized)
	LogError("%s", err)
	return err
}
