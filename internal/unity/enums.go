package unity

import "fmt"

// REST type names.
const (
	typeLUN                  = "lun"
	typeStorageResource      = "storageResource"
	typeHost                 = "host"
	typeHostInitiator        = "hostInitiator"
	typeHostIPPort           = "hostIPPort"
	typeSnap                 = "snap"
	typePool                 = "pool"
	typeMoveSession          = "moveSession"
	typeReplicationSession   = "replicationSession"
	typeRemoteSystem         = "remoteSystem"
	typeReplicationInterface = "replicationInterface"
	typeFilesystem           = "filesystem"
	typeNFSShare             = "nfsShare"
)

// AccessMask is the host access level granted on a LUN.
type AccessMask int

const (
	AccessNone       AccessMask = 0
	AccessProduction AccessMask = 1
	AccessSnapshot   AccessMask = 2
	AccessBoth       AccessMask = 3
)

// String returns the array's name for the mask.
func (m AccessMask) String() string {
	switch m {
	case AccessNone:
		return "NoAccess"
	case AccessProduction:
		return "Production"
	case AccessSnapshot:
		return "Snapshot"
	case AccessBoth:
		return "Both"
	}
	return fmt.Sprintf("AccessMask(%d)", int(m))
}

// SnapAccess is the access level granted on an attached snapshot.
type SnapAccess int

const (
	SnapReadOnly  SnapAccess = 0
	SnapReadWrite SnapAccess = 1
)

// StorageResourceType classifies a storage resource.
type StorageResourceType int

const (
	StorageResourceFilesystem       StorageResourceType = 1
	StorageResourceConsistencyGroup StorageResourceType = 2
	StorageResourceVMwareFS         StorageResourceType = 3
	StorageResourceVMwareISCSI      StorageResourceType = 4
	StorageResourceLUN              StorageResourceType = 8
)

// HostType is how a host was registered.
type HostType int

const (
	HostUnknown  HostType = 0
	HostManual   HostType = 1
	HostSubnet   HostType = 2
	HostNetgroup HostType = 3
	HostAuto     HostType = 5
)

// InitiatorType is the protocol of a host initiator.
type InitiatorType int

const (
	InitiatorUnknown InitiatorType = 0
	InitiatorFC      InitiatorType = 1
	InitiatorISCSI   InitiatorType = 2
)

// Node is a storage processor.
type Node int

const (
	NodeSPA Node = 0
	NodeSPB Node = 1
)

// ParseNode accepts "spa", "SPA", "spb" and "SPB".
func ParseNode(s string) (Node, error) {
	switch s {
	case "spa", "SPA", "a", "A":
		return NodeSPA, nil
	case "spb", "SPB", "b", "B":
		return NodeSPB, nil
	}
	return 0, fmt.Errorf("unknown storage processor %q", s)
}

// TieringPolicy is the FAST VP tiering policy.
type TieringPolicy int

const (
	TieringStartHighThenAuto TieringPolicy = 0
	TieringAutoTier          TieringPolicy = 1
	TieringHighest           TieringPolicy = 2
	TieringLowest            TieringPolicy = 3
	TieringNoDataMovement    TieringPolicy = 4
	TieringMixed             TieringPolicy = 0xffff
)

// NFSShareAccess is the default access of an NFS share.
type NFSShareAccess int

const (
	NFSNoAccess     NFSShareAccess = 0
	NFSReadOnly     NFSShareAccess = 1
	NFSReadWrite    NFSShareAccess = 2
	NFSRoot         NFSShareAccess = 3
	NFSReadOnlyRoot NFSShareAccess = 4
)

// MoveSessionState is the state of a LUN migration job.
type MoveSessionState int

const (
	MoveInitializing MoveSessionState = 0
	MoveQueued       MoveSessionState = 1
	MoveRunning      MoveSessionState = 2
	MoveFailed       MoveSessionState = 3
	MoveCancelling   MoveSessionState = 4
	MoveCancelled    MoveSessionState = 5
	MoveCompleted    MoveSessionState = 6
)

// String returns the array's name for the state.
func (s MoveSessionState) String() string {
	switch s {
	case MoveInitializing:
		return "Initializing"
	case MoveQueued:
		return "Queued"
	case MoveRunning:
		return "Running"
	case MoveFailed:
		return "Failed"
	case MoveCancelling:
		return "Cancelling"
	case MoveCancelled:
		return "Cancelled"
	case MoveCompleted:
		return "Completed"
	}
	return fmt.Sprintf("MoveSessionState(%d)", int(s))
}

// Settled reports whether the job has stopped moving data.
func (s MoveSessionState) Settled() bool {
	return s == MoveFailed || s == MoveCancelled || s == MoveCompleted
}

// ReplicationConnection is how a remote system is reached for replication.
type ReplicationConnection int

const (
	ReplicationConnectionSync  ReplicationConnection = 1
	ReplicationConnectionAsync ReplicationConnection = 2
	ReplicationConnectionBoth  ReplicationConnection = 3
)

// optInt drops zero so unset numeric options stay out of request bodies.
func optInt[T ~int | ~int64 | ~uint64](n T) any {
	if n == 0 {
		return nil
	}
	return int64(n)
}

// optEnum sends an enum only when it is set. Zero is a valid value for
// most array enums, so presence is carried by the pointer.
func optEnum[T ~int](p *T) any {
	if p == nil {
		return nil
	}
	return int(*p)
}
