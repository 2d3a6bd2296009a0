package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	OrdersPlaced      Counter
	OrdersFailed      Counter
	OrdersCanceled    Counter
	PendingResolved   Counter
	PendingTimedOut   Counter
	Rotations         Counter
	RebalanceWarnings Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		OrdersPlaced:      n,
		OrdersFailed:      n,
		OrdersCanceled:    n,
		PendingResolved:   n,
		PendingTimedOut:   n,
		Rotations:         n,
		RebalanceWarnings: n,
	}
}
