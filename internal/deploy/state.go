package deploy

// State is a step of a deployment run.
type State int

const (
	StateStart State = iota
	StateBuilding
	StatePublishingRepo
	StatePublishingCDN
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateBuilding:
		return "building"
	case StatePublishingRepo:
		return "publishing-repo"
	case StatePublishingCDN:
		return "publishing-cdn"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
