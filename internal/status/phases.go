package status

import (
	"fmt"

	"github.com/jbweber/arrayops/api/v1alpha1"
)

// TransitionToApplying starts an apply. A binding can be re-applied from
// any settled phase.
func TransitionToApplying(b *v1alpha1.HostBinding) error {
	if b.GetPhase() == v1alpha1.BindingPhaseApplying {
		return fmt.Errorf("binding %s is already being applied", b.Name)
	}
	b.SetPhase(v1alpha1.BindingPhaseApplying)
	SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Applying", "apply in progress")
	return nil
}

// TransitionToBound finishes a successful apply.
func TransitionToBound(b *v1alpha1.HostBinding) error {
	if b.GetPhase() != v1alpha1.BindingPhaseApplying {
		return fmt.Errorf("cannot transition to Bound from phase %s", b.GetPhase())
	}
	b.SetPhase(v1alpha1.BindingPhaseBound)
	SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionTrue, "Bound", "host sees every listed lun")
	b.UpdateObservedGeneration()
	return nil
}

// TransitionToFailed can happen from any phase.
func TransitionToFailed(b *v1alpha1.HostBinding, reason, message string) {
	b.SetPhase(v1alpha1.BindingPhaseFailed)
	SetCondition(b, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, reason, message)
}

// IsSettled reports whether no apply is in flight.
func IsSettled(phase v1alpha1.BindingPhase) bool {
	return phase != v1alpha1.BindingPhaseApplying
}
