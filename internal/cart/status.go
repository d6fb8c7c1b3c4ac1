package cart

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusProcessed Status = "PROCESSED"
)

// Processing is one-way: once PROCESSED a cart never goes back.
var validNext = map[Status]map[Status]bool{
	StatusActive:    {StatusProcessed: true},
	StatusProcessed: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
