package resource

import (
	"context"
	"fmt"

	"github.com/jbweber/arrayops/internal/rest"
)

// State tracks whether a handle's property cache has been populated.
type State int

const (
	// Hollow handles carry only an identity.
	Hollow State = iota
	// Hydrated handles carry the last fetched property bag.
	Hydrated
)

// String returns the state name.
func (s State) String() string {
	if s == Hydrated {
		return "Hydrated"
	}
	return "Hollow"
}

// Type describes a remote resource type: its API name and the fields
// requested when a handle is hydrated, including nested paths such as
// "pool.name".
type Type struct {
	Name   string
	Fields []string
}

// Resource is a lazily loaded handle to one remote object. Construction
// never performs I/O; the first property read fetches the object.
//
// A Resource is not safe for concurrent use. Two handles for the same
// remote object keep independent caches.
type Resource struct {
	cli   rest.Client
	typ   Type
	id    string
	props Properties
	state State
}

// New returns a hollow handle.
func New(cli rest.Client, typ Type, id string) *Resource {
	return &Resource{cli: cli, typ: typ, id: id}
}

// FromProperties returns a hydrated handle built from an already fetched
// property bag, e.g. a collection row.
func FromProperties(cli rest.Client, typ Type, props Properties) *Resource {
	return &Resource{
		cli:   cli,
		typ:   typ,
		id:    props.String("id"),
		props: props,
		state: Hydrated,
	}
}

// ID returns the object id. It never performs I/O.
func (r *Resource) ID() string { return r.id }

// Type returns the resource type.
func (r *Resource) Type() Type { return r.typ }

// Client returns the transport the handle reads through.
func (r *Resource) Client() rest.Client { return r.cli }

// State reports whether the cache is loaded.
func (r *Resource) State() State { return r.state }

// String returns "type(id)".
func (r *Resource) String() string {
	return fmt.Sprintf("%s(%s)", r.typ.Name, r.id)
}

// Equal reports whether both handles reference the same remote object.
// Cache state is ignored.
func (r *Resource) Equal(other *Resource) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.typ.Name == other.typ.Name && r.id == other.id
}

// Properties returns the cached property bag, fetching it first if the
// handle is hollow.
func (r *Resource) Properties(ctx context.Context) (Properties, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return r.props, nil
}

func (r *Resource) ensureLoaded(ctx context.Context) error {
	if r.state == Hydrated {
		return nil
	}
	return r.Update(ctx)
}

// Update refetches the object, replacing the cache.
func (r *Resource) Update(ctx context.Context) error {
	if r.id == "" {
		return fmt.Errorf("failed to load %s: handle has no id", r.typ.Name)
	}
	resp, err := rest.Check(r.cli.Get(ctx, r.typ.Name, r.id, r.typ.Fields))
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", r, err)
	}
	props := Properties(resp.FirstContent())
	if props == nil {
		props = Properties{}
	}
	if _, ok := props["id"]; !ok {
		props["id"] = r.id
	}
	r.props = props
	r.state = Hydrated
	return nil
}

// Invalidate drops the cache; the next read refetches.
func (r *Resource) Invalidate() {
	r.props = nil
	r.state = Hollow
}

// Patch writes one value into a hydrated cache. Hollow handles are left
// alone so the next read still fetches everything.
func (r *Resource) Patch(key string, value any) {
	if r.state == Hydrated {
		r.props[key] = value
	}
}

// Exists reports whether the remote object exists.
func (r *Resource) Exists(ctx context.Context) (bool, error) {
	err := r.ensureLoaded(ctx)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Name returns the "name" property.
func (r *Resource) Name(ctx context.Context) (string, error) {
	props, err := r.Properties(ctx)
	if err != nil {
		return "", err
	}
	return props.String("name"), nil
}

// Modify sends a partial update and invalidates the cache.
func (r *Resource) Modify(ctx context.Context, body rest.Body) (*rest.Response, error) {
	resp, err := rest.Check(r.cli.Modify(ctx, r.typ.Name, r.id, body))
	if err != nil {
		return resp, fmt.Errorf("failed to modify %s: %w", r, err)
	}
	r.Invalidate()
	return resp, nil
}

// ModifyInPlace sends a partial update and writes the sent values into a
// hydrated cache instead of dropping it. Every key of body must be a
// top-level property of the object under the same name.
func (r *Resource) ModifyInPlace(ctx context.Context, body rest.Body) (*rest.Response, error) {
	resp, err := rest.Check(r.cli.Modify(ctx, r.typ.Name, r.id, body))
	if err != nil {
		return resp, fmt.Errorf("failed to modify %s: %w", r, err)
	}
	for k, v := range body {
		r.Patch(k, v)
	}
	return resp, nil
}

// Action invokes a named action on the object and invalidates the cache.
func (r *Resource) Action(ctx context.Context, action string, body rest.Body) (*rest.Response, error) {
	resp, err := rest.Check(r.cli.Action(ctx, r.typ.Name, r.id, action, body))
	if err != nil {
		return resp, fmt.Errorf("failed to %s %s: %w", action, r, err)
	}
	r.Invalidate()
	return resp, nil
}

// Delete removes the remote object. The handle becomes stale.
func (r *Resource) Delete(ctx context.Context, body rest.Body) (*rest.Response, error) {
	resp, err := rest.Check(r.cli.Delete(ctx, r.typ.Name, r.id, body))
	if err != nil {
		return resp, fmt.Errorf("failed to delete %s: %w", r, err)
	}
	r.Invalidate()
	return resp, nil
}
