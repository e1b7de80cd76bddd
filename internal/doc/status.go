package doc

// ActionStatus is the ordered workflow status lattice. Potential through
// Completed form the main chain; Canceled and Failed are side branches
// (Canceled may still reach Completed, Failed is terminal but permits a
// retry action).
type ActionStatus int

const (
	StatusUnknown ActionStatus = iota
	StatusPotential
	StatusActive
	StatusStaged
	StatusEndorsed
	StatusCompleted
	StatusCanceled
	StatusFailed
)

var statusNames = map[string]ActionStatus{
	"PotentialActionStatus": StatusPotential,
	"ActiveActionStatus":    StatusActive,
	"StagedActionStatus":    StatusStaged,
	"EndorsedActionStatus":  StatusEndorsed,
	"CompletedActionStatus": StatusCompleted,
	"CanceledActionStatus":  StatusCanceled,
	"FailedActionStatus":    StatusFailed,
}

// ParseActionStatus decodes an "actionStatus" value.
func ParseActionStatus(name string) ActionStatus {
	return statusNames[name]
}

// Status returns the document's decoded actionStatus.
func (d Doc) Status() ActionStatus {
	return ParseActionStatus(d.GetString("actionStatus"))
}

// Rank places a status on the main chain; side branches and unknown rank
// below Potential so ordering comparisons against them are never satisfied.
func (s ActionStatus) Rank() int {
	switch s {
	case StatusPotential:
		return 0
	case StatusActive:
		return 1
	case StatusStaged:
		return 2
	case StatusEndorsed:
		return 3
	case StatusCompleted:
		return 4
	}
	return -1
}

// AtLeast reports whether s has reached other on the main chain.
func (s ActionStatus) AtLeast(other ActionStatus) bool {
	return s.Rank() >= 0 && other.Rank() >= 0 && s.Rank() >= other.Rank()
}

// Editable reports whether the action is still being worked on offline
// (Active or Staged).
func (s ActionStatus) Editable() bool {
	return s == StatusActive || s == StatusStaged
}
