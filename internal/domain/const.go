package domain

const (
	// Grid constants
	GRID_SIZE = 100

	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"
)
