package command

// Outcome reports what a bus did with one dispatched command.
type Outcome string

const (
	// Delivered: the chain accepted the command and the handler returned cleanly.
	Delivered Outcome = "delivered"
	// Blocked: an interceptor returned Block.
	Blocked Outcome = "blocked"
	// Unhandled: accepted, but no handler is registered for the target.
	Unhandled Outcome = "unhandled"
	// Rejected: the structural hook refused the command (a logged no-op).
	Rejected Outcome = "rejected"
	// Failed: the handler returned an error or panicked.
	Failed Outcome = "failed"
	// Invalid: the command name does not belong to the bus kind.
	Invalid Outcome = "invalid"
)

// Accepted reports whether the interception chain let the command through
// and its structural effects were applied.
func (o Outcome) Accepted() bool {
	return o == Delivered || o == Unhandled || o == Failed
}
