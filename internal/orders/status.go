package orders

type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Payment-gated lifecycle. Cancellation is only possible before payment.
var validNext = map[Status]map[Status]bool{
	StatusCreated:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusShipped: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) IsPaid() bool {
	return s == StatusPaid || s == StatusShipped || s == StatusDelivered
}

func (s Status) IsShipped() bool { return s == StatusShipped || s == StatusDelivered }
