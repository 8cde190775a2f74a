package binding

import "context"

// Array is the array surface Apply needs.
//
// In production this is satisfied by Unity, which wraps a *unity.System.
type Array interface {
	// FindHost resolves a host by name, ID or address. With create set, an
	// unknown host is registered.
	FindHost(ctx context.Context, ref string, create bool) (Host, error)

	// LUNID resolves a LUN name to its ID.
	LUNID(ctx context.Context, name string) (string, error)
}

// Host is one resolved initiator host.
type Host interface {
	ID() string

	// UpdateInitiators makes the host's initiators exactly iqns plus wwns
	// and returns how many changed.
	UpdateInitiators(ctx context.Context, iqns, wwns []string) (int, error)

	// Attachments lists the LUNs attached to the host, snapshots excluded.
	Attachments(ctx context.Context) ([]Attachment, error)

	// Attach attaches a LUN and returns the HLU it ended up on. A nil hlu
	// lets the array pick one.
	Attach(ctx context.Context, lunID string, hlu *int, skipHLU0 bool) (int, error)

	// Detach removes the host's access to a LUN.
	Detach(ctx context.Context, lunID string) error
}

// Attachment is one LUN attached to a host.
type Attachment struct {
	Name  string
	LUNID string
	HLU   int
}
