package farm

import (
	"errors"
	"fmt"

	"github.com/talgya/vertifarm/internal/crops"
)

// Error taxonomy. Every rejected action leaves farm state unchanged.
var (
	// ErrConfiguration is fatal: a registry entry is missing or malformed.
	ErrConfiguration = crops.ErrConfiguration

	// ErrInsufficientResource covers space and budget shortfalls on planting.
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrInsufficientSpace    = fmt.Errorf("%w: space", ErrInsufficientResource)
	ErrInsufficientBudget   = fmt.Errorf("%w: budget", ErrInsufficientResource)

	// ErrInvalidInput rejects caller values outside the legal sets.
	ErrInvalidInput = errors.New("invalid input")
)
