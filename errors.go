package brewery

// Error is a constant error type.
type Error string

func (e Error) Error() string { return string(e) }

// ErrNoRecords is returned by the driver when the source answered
// successfully but had no breweries, so the later stages were skipped.
const ErrNoRecords = Error("no records were returned by the source")
