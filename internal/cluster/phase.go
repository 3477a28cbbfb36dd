package cluster

// Phase is a lifecycle state of a record.
type Phase string

const (
	PhasePending           Phase = "pending"
	PhaseDirectoryPrepared Phase = "directory-prepared"
	PhaseVersionResolved   Phase = "version-resolved"
	PhaseProvisioning      Phase = "provisioning"
	PhaseReady             Phase = "ready"
	PhaseFailed            Phase = "failed"
	PhaseRollingBack       Phase = "rolling-back"
	PhaseDestroying        Phase = "destroying"
	PhaseDestroyed         Phase = "destroyed"
	PhaseDestroyFailed     Phase = "destroy-failed"
)

var transitions = map[Phase][]Phase{
	PhasePending:           {PhaseDirectoryPrepared, PhaseFailed},
	PhaseDirectoryPrepared: {PhaseVersionResolved, PhaseFailed},
	PhaseVersionResolved:   {PhaseProvisioning, PhaseFailed},
	PhaseProvisioning:      {PhaseReady, PhaseRollingBack},
	PhaseReady:             {PhaseRollingBack},
	PhaseRollingBack:       {PhaseDestroyed, PhaseDestroyFailed},
	PhaseDestroying:        {PhaseDestroyed, PhaseDestroyFailed},
}

// CanTransition reports whether moving from p to next is allowed.
func (p Phase) CanTransition(next Phase) bool {
	if next == PhaseDestroying {
		return p != PhaseDestroyed
	}
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is expected in the current lifecycle.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseReady, PhaseFailed, PhaseDestroyed, PhaseDestroyFailed:
		return true
	}
	return false
}

func (p Phase) String() string {
	return string(p)
}
