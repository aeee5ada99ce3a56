package memory

import "errors"

// Sentinel errors for the store. Callers classify failures with errors.Is;
// operational errors wrap these with context via fmt.Errorf("%w: ...").
var (
	// ErrInvalidArgument reports a malformed request, such as an empty
	// retrieval query or empty entry content.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidEntryType reports a type outside the closed enumeration.
	ErrInvalidEntryType = errors.New("invalid entry type")

	// ErrInvalidImportPayload reports an import document that failed
	// validation. Nothing is written when this is returned.
	ErrInvalidImportPayload = errors.New("invalid import payload")

	// ErrStorageCorruption reports persisted data that exists but cannot be
	// parsed into the entry schema. The store never silently discards or
	// repairs a corrupt document.
	ErrStorageCorruption = errors.New("storage corruption")

	// ErrStorageIO reports an underlying read or write failure.
	ErrStorageIO = errors.New("storage i/o failure")
)
