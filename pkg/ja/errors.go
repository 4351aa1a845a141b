package ja

import "errors"

var (
	// ErrInvalidKey reports a key above the container's configured
	// maximum.
	ErrInvalidKey = errors.New("ja: key exceeds the configured maximum")

	// ErrInvalidKeyBits reports an unsupported key size.
	ErrInvalidKeyBits = errors.New("ja: key size must be 8, 16, 32 or 64 bits")

	// ErrOutOfMemory reports that a shadow entry could not be created.
	// No partial state persists.
	ErrOutOfMemory = errors.New("ja: shadow entry allocation failed")

	// errRetry means a locked node had been superseded by a concurrent
	// recompaction; the operation restarts from the root. Never surfaced
	// to callers.
	errRetry = errors.New("ja: node superseded, retry from root")
)
