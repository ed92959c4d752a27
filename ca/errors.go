package ca

import "errors"

var (
	// ErrStepFailed indicates a toolchain invocation exited nonzero or did
	// not produce its expected output artifact.
	ErrStepFailed = errors.New("toolchain step failed")
	// ErrToolchainUnavailable indicates the external toolchain binary could
	// not be found or started at all.
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
)
