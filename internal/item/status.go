package item

// Status tracks an item through the pending edit set of a view.
type Status int

const (
	StatusNone Status = iota
	StatusAdded
	StatusModified
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	case StatusRemoved:
		return "removed"
	}
	return "unknown"
}
