package particles

import "errors"

// Programmer-error conditions. These are never expected at runtime and should be
// propagated up to application setup code.
var (
	ErrAlreadyInitialized = errors.New("particles: already initialized")
	ErrNotInitialized     = errors.New("particles: not initialized")
	ErrRendererInvalid    = errors.New("particles: renderer is not valid")
	ErrSlotOutOfRange     = errors.New("particles: slot out of buffer range")
	ErrSlotNotAllocated   = errors.New("particles: slot is not allocated")
	ErrCapacityExceeded   = errors.New("particles: particle count exceeds renderer capacity")
	ErrEngineRunning      = errors.New("particles: engine is running")
)

// ErrPoolExhausted is reported by StaticEngine.Spawn when no free slot is left.
// It is a normal condition; callers usually drop the spawn.
var ErrPoolExhausted = errors.New("particles: pool exhausted")
