package shipping

// Status is the lifecycle state of a shipment.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// validNext keys every status to the statuses it may move to.
// Completed and Cancelled are terminal.
var validNext = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedNext returns a copy so callers can't mutate the table.
func AllowedNext(from Status) []Status {
	return append([]Status(nil), validNext[from]...)
}

// ScanStatus is the lifecycle state of a scan operation.
type ScanStatus string

const (
	ScanActive    ScanStatus = "Active"
	ScanCompleted ScanStatus = "Completed"
	ScanCancelled ScanStatus = "Cancelled"
)
