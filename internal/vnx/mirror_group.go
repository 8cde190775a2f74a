package vnx

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/naviseccli"
)

const (
	fieldGroupName       = "Group Name"
	fieldGroupMirrorName = "Mirror Name"
)

// Named is anything addressed by name, such as a mirror view.
type Named interface {
	Name() string
}

type mirrorGroup struct {
	c     *Client
	mode  Mode
	name  string
	entry *naviseccli.Entry
}

// Name returns the group name.
func (g *mirrorGroup) Name() string { return g.name }

// Invalidate drops the cached group listing.
func (g *mirrorGroup) Invalidate() { g.entry = nil }

func (g *mirrorGroup) load(ctx context.Context) (*naviseccli.Entry, error) {
	if g.entry != nil {
		return g.entry, nil
	}
	out, err := g.c.mirror(ctx, g.mode, "-listgroups", "-name", g.name)
	if err != nil {
		return nil, err
	}
	for _, e := range naviseccli.ParseEntries(out, fieldGroupName, fieldGroupMirrorName) {
		if e.Get(fieldGroupName) == g.name {
			g.entry = &e
			return g.entry, nil
		}
	}
	return nil, apierrors.New(apierrors.KindNotFound, "mirror group %s not found", g.name)
}

// Properties returns the group fields as printed by the CLI.
func (g *mirrorGroup) Properties(ctx context.Context) (naviseccli.Record, error) {
	e, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	return e.Record, nil
}

// MirrorNames lists the member mirror views.
func (g *mirrorGroup) MirrorNames(ctx context.Context) ([]string, error) {
	e, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(e.Children))
	for _, r := range e.Children {
		names = append(names, r.Get(fieldGroupMirrorName))
	}
	return names, nil
}

func (g *mirrorGroup) run(ctx context.Context, op string, args ...string) error {
	full := append([]string{op, "-name", g.name}, args...)
	_, err := g.c.mirror(ctx, g.mode, full...)
	g.Invalidate()
	if err != nil {
		return fmt.Errorf("failed to %s on mirror group %s: %w", op[1:], g.name, err)
	}
	g.c.log.WithFields(logrus.Fields{"group": g.name, "mode": g.mode.String(), "op": op[1:]}).Info("mirror group updated")
	return nil
}

// AddMirror adds a mirror view to the group.
func (g *mirrorGroup) AddMirror(ctx context.Context, mirror Named) error {
	return g.run(ctx, "-addtogroup", "-mirrorname", mirror.Name())
}

// RemoveMirror takes a mirror view out of the group.
func (g *mirrorGroup) RemoveMirror(ctx context.Context, mirror Named) error {
	return g.run(ctx, "-removefromgroup", "-mirrorname", mirror.Name(), "-o")
}

// Fracture fractures every mirror of the group.
func (g *mirrorGroup) Fracture(ctx context.Context) error {
	return g.run(ctx, "-fracturegroup", "-o")
}

// Sync resynchronizes every mirror of the group.
func (g *mirrorGroup) Sync(ctx context.Context) error {
	return g.run(ctx, "-syncgroup", "-o")
}

// Delete destroys the group; force destroys it even with members.
func (g *mirrorGroup) Delete(ctx context.Context, force bool) error {
	var args []string
	if force {
		args = append(args, "-force")
	}
	return g.run(ctx, "-destroygroup", append(args, "-o")...)
}

// MirrorGroup groups synchronous mirror views for consistent operations.
type MirrorGroup struct {
	mirrorGroup
}

// Promote promotes the secondary side of every mirror in the group.
func (g *MirrorGroup) Promote(ctx context.Context) error {
	return g.run(ctx, "-promotegroup", "-o")
}

// Mirrors returns handles for the member mirror views.
func (g *MirrorGroup) Mirrors(ctx context.Context) ([]*MirrorView, error) {
	names, err := g.MirrorNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*MirrorView, 0, len(names))
	for _, n := range names {
		out = append(out, g.c.MirrorView(n))
	}
	return out, nil
}

// MirrorGroupAsync groups asynchronous mirror views.
type MirrorGroupAsync struct {
	mirrorGroup
}

// Promote promotes the group; an empty promoteType leaves the choice to
// the array.
func (g *MirrorGroupAsync) Promote(ctx context.Context, promoteType PromoteType) error {
	var args []string
	if promoteType != "" {
		args = append(args, "-type", string(promoteType))
	}
	return g.run(ctx, "-promotegroup", append(args, "-o")...)
}

// Mirrors returns handles for the member mirror views.
func (g *MirrorGroupAsync) Mirrors(ctx context.Context) ([]*MirrorViewAsync, error) {
	names, err := g.MirrorNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*MirrorViewAsync, 0, len(names))
	for _, n := range names {
		out = append(out, g.c.MirrorViewAsync(n))
	}
	return out, nil
}

// MirrorGroup returns a handle; nothing is read until it is used.
func (c *Client) MirrorGroup(name string) *MirrorGroup {
	return &MirrorGroup{mirrorGroup{c: c, mode: ModeSync, name: name}}
}

// MirrorGroupAsync returns a handle; nothing is read until it is used.
func (c *Client) MirrorGroupAsync(name string) *MirrorGroupAsync {
	return &MirrorGroupAsync{mirrorGroup{c: c, mode: ModeAsync, name: name}}
}

func (c *Client) createGroup(ctx context.Context, mode Mode, name string) error {
	if err := validName("mirror group", name); err != nil {
		return err
	}
	if _, err := c.mirror(ctx, mode, "-creategroup", "-name", name, "-o"); err != nil {
		return fmt.Errorf("failed to create mirror group %s: %w", name, err)
	}
	c.log.WithFields(logrus.Fields{"group": name, "mode": mode.String()}).Info("created mirror group")
	return nil
}

// CreateMirrorGroup creates a group and, when mirror is non-nil, adds it.
func (c *Client) CreateMirrorGroup(ctx context.Context, name string, mirror *MirrorView) (*MirrorGroup, error) {
	if err := c.createGroup(ctx, ModeSync, name); err != nil {
		return nil, err
	}
	g := c.MirrorGroup(name)
	if mirror != nil {
		if err := g.AddMirror(ctx, mirror); err != nil {
			return g, err
		}
	}
	return g, nil
}

// CreateMirrorGroupAsync creates an asynchronous group and, when mirror
// is non-nil, adds it.
func (c *Client) CreateMirrorGroupAsync(ctx context.Context, name string, mirror *MirrorViewAsync) (*MirrorGroupAsync, error) {
	if err := c.createGroup(ctx, ModeAsync, name); err != nil {
		return nil, err
	}
	g := c.MirrorGroupAsync(name)
	if mirror != nil {
		if err := g.AddMirror(ctx, mirror); err != nil {
			return g, err
		}
	}
	return g, nil
}

// ListMirrorGroups returns the names of all groups of mode.
func (c *Client) ListMirrorGroups(ctx context.Context, mode Mode) ([]string, error) {
	out, err := c.mirror(ctx, mode, "-listgroups")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range naviseccli.ParseEntries(out, fieldGroupName, fieldGroupMirrorName) {
		names = append(names, e.Get(fieldGroupName))
	}
	return names, nil
}
