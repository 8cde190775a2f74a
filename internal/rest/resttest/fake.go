// Package resttest provides an in-memory rest.Client for tests.
//
// The fake stores objects per type, answers Get and List from that store,
// applies Post, Modify and Delete to it, and records every call. Array
// behavior a test cares about (an action that moves objects around, an
// error on the third attempt) is installed with Handle.
package resttest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/version"
)

// Methods recorded in Call.Method.
const (
	MethodGet        = "GET"
	MethodList       = "LIST"
	MethodPost       = "POST"
	MethodModify     = "MODIFY"
	MethodDelete     = "DELETE"
	MethodAction     = "ACTION"
	MethodTypeAction = "TYPEACTION"
)

// Call is one recorded request.
type Call struct {
	Method string
	Type   string
	ID     string
	Action string
	Body   rest.Body
	Fields []string
}

// Handler answers a call in place of the default store behavior.
type Handler func(f *Fake, call Call) (*rest.Response, error)

// Fake is an in-memory array.
type Fake struct {
	mu       sync.Mutex
	ver      *version.Version
	log      *logrus.Logger
	Hook     *test.Hook
	objects  map[string]map[string]map[string]any
	order    map[string][]string
	handlers map[string]Handler
	calls    []Call
	seq      int
}

var _ rest.Client = (*Fake)(nil)

// New returns an empty fake reporting the given software version.
func New(ver string) *Fake {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return &Fake{
		ver:      version.MustParse(ver),
		log:      log,
		Hook:     hook,
		objects:  map[string]map[string]map[string]any{},
		order:    map[string][]string{},
		handlers: map[string]Handler{},
	}
}

// Version implements rest.Client.
func (f *Fake) Version() *version.Version  { return f.ver }
// Logger implements rest.Client.
func (f *Fake) Logger() logrus.FieldLogger { return f.log }

// SetVersion changes the reported software version.
func (f *Fake) SetVersion(ver string) { f.ver = version.MustParse(ver) }

// Put stores an object; props must carry an "id".
func (f *Fake) Put(typ string, props map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(typ, props)
}

func (f *Fake) put(typ string, props map[string]any) {
	id := fmt.Sprint(props["id"])
	if f.objects[typ] == nil {
		f.objects[typ] = map[string]map[string]any{}
	}
	if _, exists := f.objects[typ][id]; !exists {
		f.order[typ] = append(f.order[typ], id)
	}
	f.objects[typ][id] = deepCopy(props).(map[string]any)
}

// Object returns the stored object itself, so handlers can mutate it.
func (f *Fake) Object(typ, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[typ][id]
}

// Objects returns the stored objects of typ in insertion order.
func (f *Fake) Objects(typ string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.order[typ]))
	for _, id := range f.order[typ] {
		out = append(out, f.objects[typ][id])
	}
	return out
}

// Remove deletes a stored object.
func (f *Fake) Remove(typ, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remove(typ, id)
}

func (f *Fake) remove(typ, id string) {
	delete(f.objects[typ], id)
	ids := f.order[typ]
	for i, v := range ids {
		if v == id {
			f.order[typ] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// NextID returns a fresh id with the given prefix.
func (f *Fake) NextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, 1000+f.seq)
}

// Handle installs h for calls matching method, typ and action. Action is
// empty for everything except MethodAction and MethodTypeAction.
func (f *Fake) Handle(method, typ, action string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[handlerKey(method, typ, action)] = h
}

// Calls returns every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls matching method, typ and action.
// An empty action matches any action.
func (f *Fake) CallsTo(method, typ, action string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method && c.Type == typ && (action == "" || c.Action == action) {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns every recorded call that is not a read.
func (f *Fake) Mutations() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method != MethodGet && c.Method != MethodList {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Failure builds an array error response with a known code.
func Failure(kind apierrors.Kind, msg string) *rest.Response {
	return &rest.Response{
		StatusCode: 422,
		ErrorCode:  apierrors.CodeFor(kind),
		Messages:   []string{msg},
	}
}

// Content builds a success response carrying one content object.
func Content(props map[string]any) *rest.Response {
	return &rest.Response{StatusCode: 200, Contents: []map[string]any{props}}
}

// Get implements rest.Client.
func (f *Fake) Get(ctx context.Context, typ, id string, fields []string) (*rest.Response, error) {
	return f.dispatch(Call{Method: MethodGet, Type: typ, ID: id, Fields: fields})
}

// List implements rest.Client.
func (f *Fake) List(ctx context.Context, typ string, filter rest.Body, fields []string) (*rest.Response, error) {
	return f.dispatch(Call{Method: MethodList, Type: typ, Body: filter, Fields: fields})
}

// Post implements rest.Client.
func (f *Fake) Post(ctx context.Context, typ string, body rest.Body) (*rest.Response, error) {
	return f.dispatch(Call{Method: MethodPost, Type: typ, Body: body})
}

// Modify implements rest.Client.
func (f *Fake) Modify(ctx context.Context, typ, id string, body rest.Body) (*rest.Response, error) {
	return f.dispatch(Call{Method: MethodModify, Type: typ, ID: id, Body: body})
}

// Delete implements rest.Client.
func (f *Fake) Delete(ctx context.Context, typ, id string, body rest.Body) (*rest.Response, error) {
	return f.dispatch(Call{Method: MethodDelete, Type: typ, ID: id, Body: body})
}

// Action implements rest.Client.
func (f *Fake) Action(ctx context.Context, typ, id, action string, body rest.Body) (*rest.Response, error) {
	return f.dispatch(Call{Method: MethodAction, Type: typ, ID: id, Action: action, Body: body})
}

// TypeAction implements rest.Client.
func (f *Fake) TypeAction(ctx context.Context, typ, action string, body rest.Body) (*rest.Response, error) {
	return f.dispatch(Call{Method: MethodTypeAction, Type: typ, Action: action, Body: body})
}

func (f *Fake) dispatch(call Call) (*rest.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	h := f.handlers[handlerKey(call.Method, call.Type, call.Action)]
	f.mu.Unlock()

	if h != nil {
		return h(f, call)
	}
	return f.Default(call)
}

// Default applies the store behavior for call. Handlers use it to fall
// through after inspecting a call.
func (f *Fake) Default(call Call) (*rest.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch call.Method {
	case MethodGet:
		obj, ok := f.objects[call.Type][call.ID]
		if !ok {
			return notFound(call.Type, call.ID), nil
		}
		return Content(deepCopy(obj).(map[string]any)), nil
	case MethodList:
		resp := &rest.Response{StatusCode: 200}
		for _, id := range f.order[call.Type] {
			obj := f.objects[call.Type][id]
			if matches(obj, call.Body) {
				resp.Contents = append(resp.Contents, deepCopy(obj).(map[string]any))
			}
		}
		return resp, nil
	case MethodPost:
		props := deepCopy(map[string]any(call.Body)).(map[string]any)
		if _, ok := props["id"]; !ok {
			f.seq++
			props["id"] = fmt.Sprintf("%s_%d", call.Type, 1000+f.seq)
		}
		f.put(call.Type, props)
		return &rest.Response{StatusCode: 201, Contents: []map[string]any{{"id": props["id"]}}}, nil
	case MethodModify:
		obj, ok := f.objects[call.Type][call.ID]
		if !ok {
			return notFound(call.Type, call.ID), nil
		}
		for k, v := range call.Body {
			obj[k] = deepCopy(v)
		}
		return rest.OK(), nil
	case MethodDelete:
		if _, ok := f.objects[call.Type][call.ID]; !ok {
			return notFound(call.Type, call.ID), nil
		}
		f.remove(call.Type, call.ID)
		return rest.OK(), nil
	}
	return rest.OK(), nil
}

func notFound(typ, id string) *rest.Response {
	return &rest.Response{
		StatusCode: 404,
		ErrorCode:  apierrors.CodeNotFound,
		Messages:   []string{fmt.Sprintf("the requested %s %s does not exist", typ, id)},
	}
}

func handlerKey(method, typ, action string) string {
	return strings.Join([]string{method, typ, action}, "/")
}

// matches applies an equality filter. A reference value {"id": x} matches
// the object's nested id.
func matches(obj map[string]any, filter rest.Body) bool {
	for key, want := range filter {
		got := lookup(obj, key)
		if ref, ok := want.(map[string]any); ok {
			gotRef, ok := got.(map[string]any)
			if !ok || fmt.Sprint(gotRef["id"]) != fmt.Sprint(ref["id"]) {
				return false
			}
			continue
		}
		if got == nil || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func lookup(obj map[string]any, path string) any {
	var cur any = obj
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case rest.Body:
		return deepCopy(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	}
	return v
}
