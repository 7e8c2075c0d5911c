package transfer

// Metrics observes finished deliveries. Implementations must be safe for
// concurrent use; a nil Metrics is valid and records nothing.
type Metrics interface {
	ObserveReport(r *Report)
}

// ObserveReport records r on m when m is non-nil.
func ObserveReport(m Metrics, r *Report) {
	if m != nil && r != nil {
		m.ObserveReport(r)
	}
}
