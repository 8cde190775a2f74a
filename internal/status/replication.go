// Package status holds the state guards for replication sessions and mirror
// images, and the phase and condition bookkeeping of HostBinding documents.
package status

import (
	"fmt"
	"strings"

	"github.com/jbweber/arrayops/internal/apierrors"
)

// ReplicationStatus is the operational status a Unity replication session
// reports.
type ReplicationStatus int

const (
	ReplicationUnknown            ReplicationStatus = 0x0
	ReplicationOK                 ReplicationStatus = 0x2
	ReplicationNonRecoverable     ReplicationStatus = 0x7
	ReplicationLostCommunication  ReplicationStatus = 0xd
	ReplicationFailedOverWithSync ReplicationStatus = 0x8400
	ReplicationFailedOver         ReplicationStatus = 0x8401
	ReplicationManualSyncing      ReplicationStatus = 0x8402
	ReplicationPaused             ReplicationStatus = 0x8403
	ReplicationIdle               ReplicationStatus = 0x8404
	ReplicationInitNotStarted     ReplicationStatus = 0x8405
	ReplicationSyncing            ReplicationStatus = 0x8406
)

var replicationNames = map[ReplicationStatus]string{
	ReplicationUnknown:            "Unknown",
	ReplicationOK:                 "OK",
	ReplicationNonRecoverable:     "NonRecoverableError",
	ReplicationLostCommunication:  "LostCommunication",
	ReplicationFailedOverWithSync: "FailedOverWithSync",
	ReplicationFailedOver:         "FailedOver",
	ReplicationManualSyncing:      "ManualSyncing",
	ReplicationPaused:             "Paused",
	ReplicationIdle:               "Idle",
	ReplicationInitNotStarted:     "InitNotStarted",
	ReplicationSyncing:            "Syncing",
}

// String returns the status name.
func (s ReplicationStatus) String() string {
	if name, ok := replicationNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ReplicationStatus(%#x)", int(s))
}

// IsFailedOver returns true for both failed over variants.
func IsFailedOver(s ReplicationStatus) bool {
	return s == ReplicationFailedOver || s == ReplicationFailedOverWithSync
}

// IsHealthy returns true when data is flowing or ready to flow.
func IsHealthy(s ReplicationStatus) bool {
	switch s {
	case ReplicationOK, ReplicationIdle, ReplicationSyncing, ReplicationManualSyncing:
		return true
	}
	return false
}

// CanResume returns an error unless the session is failed over or paused.
func CanResume(s ReplicationStatus) error {
	if IsFailedOver(s) || s == ReplicationPaused {
		return nil
	}
	return invalidState("resume", s)
}

// CanPause returns an error unless the session is OK.
func CanPause(s ReplicationStatus) error {
	if s == ReplicationOK {
		return nil
	}
	return invalidState("pause", s)
}

// CanFailback returns an error unless the session is failed over.
func CanFailback(s ReplicationStatus) error {
	if IsFailedOver(s) {
		return nil
	}
	return invalidState("failback", s)
}

func invalidState(action string, s ReplicationStatus) error {
	return apierrors.New(apierrors.KindInvalidState, "cannot %s replication session in state %s", action, s)
}

// Mirror image conditions reported by the VNX CLI.
const (
	ImageSynchronized  = "Synchronized"
	ImageConsistent    = "Consistent"
	ImageSynchronizing = "Synchronizing"
	ImageOutOfSync     = "Out-of-Sync"
	ImageFractured     = "Administratively fractured"
)

// CanPromoteImage returns an error unless a secondary image in state is
// safe to promote. Force skips the check.
func CanPromoteImage(state string, force bool) error {
	if force {
		return nil
	}
	switch normalizeImageState(state) {
	case normalizeImageState(ImageSynchronized), normalizeImageState(ImageConsistent):
		return nil
	}
	return apierrors.New(apierrors.KindInvalidState, "cannot promote mirror image in state %q", state)
}

// CanSyncImage returns an error when the image is already synchronizing.
func CanSyncImage(state string) error {
	if normalizeImageState(state) == normalizeImageState(ImageSynchronizing) {
		return apierrors.New(apierrors.KindInvalidState, "mirror image is already synchronizing")
	}
	return nil
}

func normalizeImageState(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
