package binding

import (
	"context"
	"fmt"

	"github.com/jbweber/arrayops/internal/unity"
)

// Unity adapts a Unity system to Array.
type Unity struct {
	sys *unity.System
}

// NewUnity returns an Array backed by sys.
func NewUnity(sys *unity.System) *Unity {
	return &Unity{sys: sys}
}

// FindHost resolves ref by address, name or id, creating the host when
// create is set.
func (u *Unity) FindHost(ctx context.Context, ref string, create bool) (Host, error) {
	h, err := u.sys.ResolveHost(ctx, ref, create)
	if err != nil {
		return nil, err
	}
	return &unityHost{sys: u.sys, h: h}, nil
}

// LUNID returns the id of the LUN called name.
func (u *Unity) LUNID(ctx context.Context, name string) (string, error) {
	l, err := u.sys.LUNByName(ctx, name)
	if err != nil {
		return "", err
	}
	return l.ID(), nil
}

type unityHost struct {
	sys *unity.System
	h   *unity.Host
}

// ID returns the host id.
func (u *unityHost) ID() string { return u.h.ID() }

// UpdateInitiators registers missing initiators and returns how many were
// added.
func (u *unityHost) UpdateInitiators(ctx context.Context, iqns, wwns []string) (int, error) {
	return u.h.UpdateInitiators(ctx, iqns, wwns)
}

// Attachments lists the LUNs attached to the host, read fresh.
func (u *unityHost) Attachments(ctx context.Context) ([]Attachment, error) {
	u.h.Invalidate()
	entries, err := u.h.HostLUNs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Attachment, 0, len(entries))
	for _, e := range entries {
		// snapshot attachments are not managed by bindings
		if e.SnapID != "" || e.LUNName == "" {
			continue
		}
		out = append(out, Attachment{Name: e.LUNName, LUNID: e.LUNID, HLU: e.HLU})
	}
	return out, nil
}

// Attach attaches a LUN, at hlu when given.
func (u *unityHost) Attach(ctx context.Context, lunID string, hlu *int, skipHLU0 bool) (int, error) {
	lun := u.sys.LUN(lunID)
	if hlu == nil {
		return u.h.Attach(ctx, lun, skipHLU0)
	}
	if err := lun.AttachTo(ctx, u.h, unity.AttachOptions{HLU: hlu}); err != nil {
		return 0, err
	}
	u.h.Invalidate()
	got, ok, err := u.h.GetHLU(ctx, lun, nil)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("lun %s not attached to host %s after attach", lunID, u.h.ID())
	}
	return got, nil
}

// Detach removes the host's access to a LUN.
func (u *unityHost) Detach(ctx context.Context, lunID string) error {
	err := u.h.Detach(ctx, u.sys.LUN(lunID))
	u.h.Invalidate()
	return err
}
