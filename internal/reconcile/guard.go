package reconcile

import (
	"fmt"
)

// GuardTripError aborts an apply whose change ratio exceeds the ceiling.
type GuardTripError struct {
	Changed int
	Total   int
	Ratio   float64
	Max     float64
}

func (e *GuardTripError) Error() string {
	return fmt.Sprintf("reconcile: change ratio %.3f (%d of %d) exceeds max %.3f; rerun with force to apply",
		e.Ratio, e.Changed, e.Total, e.Max)
}

// GuardResult describes a guard decision that allowed the write.
type GuardResult struct {
	Ratio     float64
	Forced    bool
	Bootstrap bool
}

// Guard checks changed/total against maxRatio. An empty catalog is a
// bootstrap and always passes. force lets an exceeded ratio through and
// marks the result Forced.
func Guard(changed, total int, maxRatio float64, force bool) (GuardResult, error) {
	if total == 0 {
		return GuardResult{Ratio: 0, Bootstrap: changed > 0}, nil
	}
	ratio := float64(changed) / float64(total)
	if ratio <= maxRatio {
		return GuardResult{Ratio: ratio}, nil
	}
	if force {
		return GuardResult{Ratio: ratio, Forced: true}, nil
	}
	return GuardResult{}, &GuardTripError{Changed: changed, Total: total, Ratio: ratio, Max: maxRatio}
}
