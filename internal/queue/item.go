package queue

// Kind names the collection a queued id belongs to.
type Kind string

const (
	KindNotify Kind = "notify"
	KindSMS    Kind = "sms"
)

// Priority selects the queue tier.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Item is the minimal data placed on the queue.
// Workers load the full document from the store using the ID,
// keeping the queue lightweight and the stored data authoritative.
type Item struct {
	Kind     Kind
	ID       string
	EventID  string
	Priority Priority
}

// DefaultPriority is the tier for a freshly notified document: direct SMS
// jumps ahead of ticket notifications.
func DefaultPriority(k Kind) Priority {
	if k == KindSMS {
		return PriorityHigh
	}
	return PriorityNormal
}
