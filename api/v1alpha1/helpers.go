package v1alpha1

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

const (
	GroupName = "arrayops.jbweber.io"
	Version   = "v1alpha1"

	HostBindingKind = "HostBinding"
)

// APIVersionString is the apiVersion documents must carry.
func APIVersionString() string {
	return GroupName + "/" + Version
}

// NewHostBinding returns a Pending binding of host with fresh metadata.
func NewHostBinding(name, host string) *HostBinding {
	return &HostBinding{
		TypeMeta: TypeMeta{
			APIVersion: APIVersionString(),
			Kind:       HostBindingKind,
		},
		ObjectMeta: ObjectMeta{
			Name:              name,
			UID:               uuid.New().String(),
			CreationTimestamp: Now(),
			Generation:        1,
		},
		Spec: HostBindingSpec{Host: host},
		Status: HostBindingStatus{
			Phase: BindingPhasePending,
		},
	}
}

// SetDefaultAPIVersion fills in apiVersion and kind when a file omits them.
func SetDefaultAPIVersion(b *HostBinding) {
	if b.APIVersion == "" {
		b.APIVersion = APIVersionString()
	}
	if b.Kind == "" {
		b.Kind = HostBindingKind
	}
}

// Normalize trims user input. LUN names are case sensitive on the array
// and are only trimmed.
func (b *HostBinding) Normalize() {
	b.Name = strings.ToLower(strings.TrimSpace(b.Name))
	b.Spec.Host = strings.TrimSpace(b.Spec.Host)
	for i := range b.Spec.LUNs {
		b.Spec.LUNs[i].Name = strings.TrimSpace(b.Spec.LUNs[i].Name)
	}
	for i := range b.Spec.Initiators {
		b.Spec.Initiators[i] = strings.TrimSpace(b.Spec.Initiators[i])
	}
	if b.Status.Phase == "" {
		b.Status.Phase = BindingPhasePending
	}
}

// LUNNames returns the desired LUN names in spec order.
func (b *HostBinding) LUNNames() []string {
	names := make([]string, 0, len(b.Spec.LUNs))
	for _, l := range b.Spec.LUNs {
		names = append(names, l.Name)
	}
	return names
}

// LUN returns the spec entry for name.
func (b *HostBinding) LUN(name string) (LUNBinding, bool) {
	i := slices.IndexFunc(b.Spec.LUNs, func(l LUNBinding) bool { return l.Name == name })
	if i < 0 {
		return LUNBinding{}, false
	}
	return b.Spec.LUNs[i], true
}

// AttachedNames returns the names recorded in status.
func (b *HostBinding) AttachedNames() []string {
	names := make([]string, 0, len(b.Status.Attached))
	for _, a := range b.Status.Attached {
		names = append(names, a.Name)
	}
	return names
}

// SetAttached records lun as owned, replacing an earlier record of the
// same name and keeping the list sorted.
func (b *HostBinding) SetAttached(lun AttachedLUN) {
	b.RemoveAttached(lun.Name)
	b.Status.Attached = append(b.Status.Attached, lun)
	slices.SortFunc(b.Status.Attached, func(x, y AttachedLUN) int { return strings.Compare(x.Name, y.Name) })
}

// RemoveAttached drops the record for name.
func (b *HostBinding) RemoveAttached(name string) {
	b.Status.Attached = slices.DeleteFunc(b.Status.Attached, func(a AttachedLUN) bool { return a.Name == name })
}

// SetPhase sets the binding phase.
func (b *HostBinding) SetPhase(phase BindingPhase) {
	b.Status.Phase = phase
}

// GetPhase returns the binding phase.
func (b *HostBinding) GetPhase() BindingPhase {
	return b.Status.Phase
}

// UpdateObservedGeneration marks the current generation as applied.
func (b *HostBinding) UpdateObservedGeneration() {
	b.Status.ObservedGeneration = b.Generation
}
