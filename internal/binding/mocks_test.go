package binding

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jbweber/arrayops/internal/apierrors"
)

// mockArray is an in-memory Array with one host per name.
type mockArray struct {
	mu sync.Mutex

	hosts map[string]*mockHost
	luns  map[string]string // name -> id

	findHostCalls []string
}

func newMockArray() *mockArray {
	return &mockArray{
		hosts: map[string]*mockHost{},
		luns:  map[string]string{},
	}
}

func (m *mockArray) addLUN(name, id string) {
	m.luns[name] = id
}

func (m *mockArray) addHost(name, id string) *mockHost {
	h := &mockHost{id: id, arr: m}
	m.hosts[name] = h
	return h
}

func (m *mockArray) FindHost(_ context.Context, ref string, create bool) (Host, error) {
	m.mu.Lock()
	m.findHostCalls = append(m.findHostCalls, ref)
	m.mu.Unlock()
	if h, ok := m.hosts[ref]; ok {
		return h, nil
	}
	if !create {
		return nil, apierrors.New(apierrors.KindNotFound, "host %s not found", ref)
	}
	return m.addHost(ref, fmt.Sprintf("Host_%d", len(m.hosts)+1)), nil
}

func (m *mockArray) LUNID(_ context.Context, name string) (string, error) {
	id, ok := m.luns[name]
	if !ok {
		return "", apierrors.New(apierrors.KindNotFound, "lun %s not found", name)
	}
	return id, nil
}

func (m *mockArray) lunName(id string) string {
	for name, lid := range m.luns {
		if lid == id {
			return name
		}
	}
	return ""
}

type mockHost struct {
	id  string
	arr *mockArray

	initiators  []string
	attachments []Attachment

	attachErr      map[string]error // by lun id
	updateInitsErr error

	attachCalls []string
	detachCalls []string
}

func (h *mockHost) ID() string { return h.id }

func (h *mockHost) UpdateInitiators(_ context.Context, iqns, wwns []string) (int, error) {
	if h.updateInitsErr != nil {
		return 0, h.updateInitsErr
	}
	want := append(slices.Clone(iqns), wwns...)
	changed := 0
	for _, uid := range want {
		if !slices.Contains(h.initiators, uid) {
			changed++
		}
	}
	for _, uid := range h.initiators {
		if !slices.Contains(want, uid) {
			changed++
		}
	}
	h.initiators = want
	return changed, nil
}

func (h *mockHost) Attachments(context.Context) ([]Attachment, error) {
	return slices.Clone(h.attachments), nil
}

func (h *mockHost) Attach(_ context.Context, lunID string, hlu *int, skipHLU0 bool) (int, error) {
	h.attachCalls = append(h.attachCalls, lunID)
	if err := h.attachErr[lunID]; err != nil {
		return 0, err
	}
	n := 0
	if skipHLU0 {
		n = 1
	}
	if hlu != nil {
		n = *hlu
	}
	for h.hluTaken(n) {
		n++
	}
	h.attachments = append(h.attachments, Attachment{Name: h.arr.lunName(lunID), LUNID: lunID, HLU: n})
	return n, nil
}

func (h *mockHost) hluTaken(n int) bool {
	return slices.ContainsFunc(h.attachments, func(a Attachment) bool { return a.HLU == n })
}

func (h *mockHost) Detach(_ context.Context, lunID string) error {
	h.detachCalls = append(h.detachCalls, lunID)
	h.attachments = slices.DeleteFunc(h.attachments, func(a Attachment) bool { return a.LUNID == lunID })
	return nil
}
