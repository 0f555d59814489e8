package domain

import "errors"

var (
	// ErrFailoverExhausted is returned when every endpoint and retry has been used up for a call
	ErrFailoverExhausted = errors.New("failover exhausted")

	// ErrNoEndpoints is returned when a provider pool is created without endpoints
	ErrNoEndpoints = errors.New("no rpc endpoints configured")

	// ErrDecodeFailed is attached to a decoded log whose payload could not be decoded
	ErrDecodeFailed = errors.New("event decode failed")

	// ErrUnknownEvent is attached to a decoded log whose signature does not belong to the contract
	ErrUnknownEvent = errors.New("unknown event signature")

	// ErrInvalidCoordinate is returned when a coordinate falls outside the grid
	ErrInvalidCoordinate = errors.New("coordinate outside grid")

	// ErrInvalidAddress is returned when an address is not a 0x-prefixed 40 hex digit string
	ErrInvalidAddress = errors.New("invalid address")

	// ErrCellNotFound is returned when a write needs a cell that has not been minted yet
	ErrCellNotFound = errors.New("cell not found")

	// ErrOwnershipMismatch is returned when a content update comes from someone other than the owner
	ErrOwnershipMismatch = errors.New("ownership mismatch")

	// ErrScanInProgress is returned when a scan pass is requested while another one is running
	ErrScanInProgress = errors.New("scan already in progress")
)
