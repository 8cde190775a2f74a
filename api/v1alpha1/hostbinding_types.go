package v1alpha1

// HostBinding declares which LUNs a host should see on a Unity array.
//
// Applying a binding resolves (or creates) the host, brings its
// initiators in line with Spec.Initiators when set, attaches every listed
// LUN and detaches LUNs the binding owned before but no longer lists.
// LUNs attached by other means are left alone unless Spec.Exclusive is
// set.
type HostBinding struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   HostBindingSpec   `json:"spec" yaml:"spec"`
	Status HostBindingStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// HostBindingSpec is the desired state.
type HostBindingSpec struct {
	// Host is a host name, id or IP address.
	Host string `json:"host" yaml:"host"`

	// CreateHost registers the host when no match exists.
	// +optional
	CreateHost bool `json:"createHost,omitempty" yaml:"createHost,omitempty"`

	// Initiators lists IQNs and WWNs. Nil leaves the host's initiators
	// untouched; an empty list removes them all.
	// +optional
	Initiators []string `json:"initiators,omitempty" yaml:"initiators,omitempty"`

	LUNs []LUNBinding `json:"luns" yaml:"luns"`

	// SkipHLU0 keeps HLU 0 free, which some hosts reserve for boot.
	// +optional
	SkipHLU0 bool `json:"skipHLU0,omitempty" yaml:"skipHLU0,omitempty"`

	// Exclusive detaches every LUN the binding does not list.
	// +optional
	Exclusive bool `json:"exclusive,omitempty" yaml:"exclusive,omitempty"`
}

// LUNBinding names one LUN to attach.
type LUNBinding struct {
	Name string `json:"name" yaml:"name"`
	// HLU pins the host LUN number; nil lets the array choose.
	// +optional
	HLU *int `json:"hlu,omitempty" yaml:"hlu,omitempty"`
}

// HostBindingStatus is the state observed by the last apply.
type HostBindingStatus struct {
	Phase      BindingPhase `json:"phase,omitempty" yaml:"phase,omitempty"`
	Conditions []Condition  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	HostID     string       `json:"hostID,omitempty" yaml:"hostID,omitempty"`
	// Attached lists the LUNs the binding owns, sorted by name.
	Attached           []AttachedLUN `json:"attached,omitempty" yaml:"attached,omitempty"`
	ObservedGeneration int64         `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`
}

// AttachedLUN records a LUN the binding attached.
type AttachedLUN struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
	HLU  int    `json:"hlu" yaml:"hlu"`
}

// BindingPhase is the lifecycle phase of a HostBinding.
type BindingPhase string

const (
	BindingPhasePending  BindingPhase = "Pending"
	BindingPhaseApplying BindingPhase = "Applying"
	BindingPhaseBound    BindingPhase = "Bound"
	BindingPhaseFailed   BindingPhase = "Failed"
)

// Condition types set on a HostBinding.
const (
	ConditionReady            = "Ready"
	ConditionHostResolved     = "HostResolved"
	ConditionInitiatorsSynced = "InitiatorsSynced"
	ConditionLUNsAttached     = "LUNsAttached"
)

// DeepCopy returns a copy that shares no slices or maps with in.
func (in *HostBinding) DeepCopy() *HostBinding {
	if in == nil {
		return nil
	}
	out := new(HostBinding)
	out.TypeMeta = in.TypeMeta
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()

	out.Spec = in.Spec
	if in.Spec.Initiators != nil {
		out.Spec.Initiators = append([]string{}, in.Spec.Initiators...)
	}
	if in.Spec.LUNs != nil {
		out.Spec.LUNs = make([]LUNBinding, len(in.Spec.LUNs))
		for i, l := range in.Spec.LUNs {
			out.Spec.LUNs[i] = l
			if l.HLU != nil {
				hlu := *l.HLU
				out.Spec.LUNs[i].HLU = &hlu
			}
		}
	}

	out.Status = in.Status
	if in.Status.Conditions != nil {
		out.Status.Conditions = append([]Condition{}, in.Status.Conditions...)
	}
	if in.Status.Attached != nil {
		out.Status.Attached = append([]AttachedLUN{}, in.Status.Attached...)
	}
	return out
}
