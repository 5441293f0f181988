package common

// Results returned to user mode by the dispatch path itself.
const (
	// InvalidSyscall is returned for identifiers outside the table.
	InvalidSyscall int64 = -1
	// BadAddress is returned when a typed handler's arguments cannot be
	// read from the caller's address space.
	BadAddress int64 = -14
)
