package status

import (
	"github.com/jbweber/arrayops/api/v1alpha1"
)

// SetCondition adds or updates the condition of condType. The transition
// time only moves when the status changes.
func SetCondition(b *v1alpha1.HostBinding, condType string, status v1alpha1.ConditionStatus, reason, message string) {
	now := v1alpha1.Now()

	for i := range b.Status.Conditions {
		existing := &b.Status.Conditions[i]
		if existing.Type != condType {
			continue
		}
		if existing.Status != status {
			existing.LastTransitionTime = now
		}
		existing.Status = status
		existing.Reason = reason
		existing.Message = message
		existing.ObservedGeneration = b.Generation
		return
	}

	b.Status.Conditions = append(b.Status.Conditions, v1alpha1.Condition{
		Type:               condType,
		Status:             status,
		ObservedGeneration: b.Generation,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	})
}

// GetCondition returns the condition of condType, or nil.
func GetCondition(b *v1alpha1.HostBinding, condType string) *v1alpha1.Condition {
	for i := range b.Status.Conditions {
		if b.Status.Conditions[i].Type == condType {
			return &b.Status.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue returns true if the condition exists and has status True.
func IsConditionTrue(b *v1alpha1.HostBinding, condType string) bool {
	cond := GetCondition(b, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionTrue
}

// IsConditionFalse returns true if the condition exists and has status False.
func IsConditionFalse(b *v1alpha1.HostBinding, condType string) bool {
	cond := GetCondition(b, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionFalse
}

// RemoveCondition drops the condition of condType.
func RemoveCondition(b *v1alpha1.HostBinding, condType string) {
	filtered := make([]v1alpha1.Condition, 0, len(b.Status.Conditions))
	for _, c := range b.Status.Conditions {
		if c.Type != condType {
			filtered = append(filtered, c)
		}
	}
	b.Status.Conditions = filtered
}

// MarkHostResolved records the array id of the bound host.
func MarkHostResolved(b *v1alpha1.HostBinding, hostID string) {
	b.Status.HostID = hostID
	SetCondition(b, v1alpha1.ConditionHostResolved, v1alpha1.ConditionTrue, "HostFound", "host "+hostID+" resolved")
}

// MarkHostFailed fails the binding because the host could not be resolved.
func MarkHostFailed(b *v1alpha1.HostBinding, err error) {
	SetCondition(b, v1alpha1.ConditionHostResolved, v1alpha1.ConditionFalse, "HostLookupFailed", err.Error())
	TransitionToFailed(b, "HostLookupFailed", err.Error())
}

// MarkInitiatorsSynced records that the host initiators match the binding.
func MarkInitiatorsSynced(b *v1alpha1.HostBinding) {
	SetCondition(b, v1alpha1.ConditionInitiatorsSynced, v1alpha1.ConditionTrue, "InitiatorsSynced", "host initiators match the binding")
}

// MarkInitiatorsFailed fails the binding on an initiator sync error.
func MarkInitiatorsFailed(b *v1alpha1.HostBinding, err error) {
	SetCondition(b, v1alpha1.ConditionInitiatorsSynced, v1alpha1.ConditionFalse, "InitiatorSyncFailed", err.Error())
	TransitionToFailed(b, "InitiatorSyncFailed", err.Error())
}

// MarkLUNsAttached records that every listed LUN is attached.
func MarkLUNsAttached(b *v1alpha1.HostBinding) {
	SetCondition(b, v1alpha1.ConditionLUNsAttached, v1alpha1.ConditionTrue, "LUNsAttached", "all listed luns are attached")
}

// MarkLUNsFailed fails the binding. LUNs attached before the failure stay
// attached and stay recorded in status.
func MarkLUNsFailed(b *v1alpha1.HostBinding, err error) {
	SetCondition(b, v1alpha1.ConditionLUNsAttached, v1alpha1.ConditionFalse, "AttachFailed", err.Error())
	TransitionToFailed(b, "AttachFailed", err.Error())
}
