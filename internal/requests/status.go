package requests

var transitions = map[Status][]Status{
	StatusDraft:          {StatusSubmitted, StatusRejected},
	StatusSubmitted:      {StatusPending, StatusProcessing, StatusRejected},
	StatusPending:        {StatusProcessing, StatusApproved, StatusRejected},
	StatusProcessing:     {StatusApproved, StatusReadyForPickup, StatusRejected},
	StatusApproved:       {StatusReadyForPickup, StatusCompleted, StatusRejected},
	StatusReadyForPickup: {StatusCompleted, StatusRejected},
}

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Active reports whether the request still counts against a user's open requests.
func (s Status) Active() bool {
	return !s.Terminal()
}

// CanTransition reports whether from may move to to. Staying in the same
// non-terminal status is allowed and only records review metadata.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Predecessors returns every status that may move directly to target.
func Predecessors(target Status) []Status {
	var out []Status
	for _, from := range Statuses() {
		if from == target {
			continue
		}
		for _, next := range transitions[from] {
			if next == target {
				out = append(out, from)
				break
			}
		}
	}
	return out
}
