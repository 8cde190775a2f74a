package unity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/naming"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/rest/resttest"
)

const (
	iqnA = "iqn.1993-08.org.debian:01:aaaa"
	iqnB = "iqn.1993-08.org.debian:01:bbbb"
	iqnC = "iqn.1993-08.org.debian:01:cccc"
	wwnA = "20:00:00:90:FA:53:4C:D1:10:00:00:90:FA:53:4C:D1"
)

// installHostPorts keeps a host's initiator and IP port lists in step with
// the hostInitiator and hostIPPort objects bound to it.
func installHostPorts(f *resttest.Fake) {
	f.Handle(resttest.MethodPost, typeHostInitiator, "", func(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
		id := f.NextID("HostInitiator")
		f.Put(typeHostInitiator, map[string]any{
			"id":          id,
			"initiatorId": call.Body["initiatorWWNorIqn"],
			"type":        float64(toInt(call.Body["initiatorType"])),
		})
		return resttest.Content(map[string]any{"id": id}), nil
	})
	f.Handle(resttest.MethodModify, typeHostInitiator, "", func(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
		resp, err := f.Default(call)
		if err != nil || resp.ErrorCode != 0 {
			return resp, err
		}
		ini := f.Object(typeHostInitiator, call.ID)
		if host := f.Object(typeHost, refID(ini["host"])); host != nil {
			key := initiatorListKey(ini)
			host[key] = append(asList(host[key]), map[string]any{"id": call.ID, "initiatorId": ini["initiatorId"]})
		}
		return resp, nil
	})
	f.Handle(resttest.MethodDelete, typeHostInitiator, "", func(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
		for _, host := range f.Objects(typeHost) {
			for _, key := range []string{"fcHostInitiators", "iscsiHostInitiators"} {
				host[key] = withoutID(host[key], call.ID)
			}
		}
		return f.Default(call)
	})
	f.Handle(resttest.MethodPost, typeHostIPPort, "", func(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
		id := f.NextID("HostNetworkAddress")
		props := map[string]any{"id": id}
		for k, v := range call.Body {
			props[k] = v
		}
		f.Put(typeHostIPPort, props)
		if host := f.Object(typeHost, refID(call.Body["host"])); host != nil {
			host["hostIPPorts"] = append(asList(host["hostIPPorts"]), map[string]any{"id": id, "address": call.Body["address"]})
		}
		return resttest.Content(map[string]any{"id": id}), nil
	})
	f.Handle(resttest.MethodDelete, typeHostIPPort, "", func(f *resttest.Fake, call resttest.Call) (*rest.Response, error) {
		for _, host := range f.Objects(typeHost) {
			host["hostIPPorts"] = withoutID(host["hostIPPorts"], call.ID)
		}
		return f.Default(call)
	})
}

func initiatorListKey(ini map[string]any) string {
	if InitiatorType(toInt(ini["type"])) == InitiatorFC {
		return "fcHostInitiators"
	}
	return "iscsiHostInitiators"
}

func withoutID(list any, id string) []any {
	out := []any{}
	for _, e := range asList(list) {
		if asMap(e)["id"] != id {
			out = append(out, e)
		}
	}
	return out
}

func putInitiator(f *resttest.Fake, id, uid string, kind InitiatorType, hostID string) {
	props := map[string]any{"id": id, "initiatorId": uid, "type": float64(kind)}
	f.Put(typeHostInitiator, props)
	if hostID == "" {
		return
	}
	f.Object(typeHostInitiator, id)["host"] = map[string]any{"id": hostID}
	host := f.Object(typeHost, hostID)
	key := initiatorListKey(props)
	host[key] = append(asList(host[key]), map[string]any{"id": id, "initiatorId": uid})
}

func mustAddress(t *testing.T, s string) naming.HostAddress {
	t.Helper()
	addr, err := naming.ParseHostAddress(s)
	require.NoError(t, err)
	return addr
}

func TestAddInitiator(t *testing.T) {
	tests := []struct {
		name      string
		uid       string
		force     bool
		wantErr   error
		wantPosts int
		wantList  string
	}{
		{name: "known unbound initiator", uid: iqnA, wantList: "iscsiHostInitiators"},
		{name: "unknown without force", uid: iqnC, wantErr: apierrors.ErrInitiatorNotFound},
		{name: "unknown iscsi with force", uid: iqnC, force: true, wantPosts: 1, wantList: "iscsiHostInitiators"},
		{name: "unknown fc with force", uid: wwnA, force: true, wantPosts: 1, wantList: "fcHostInitiators"},
		{name: "unknown protocol", uid: "not-an-initiator", force: true, wantErr: apierrors.ErrUnknownInitiatorType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fake, sys := newTestSystem(t, currentVersion)
			installHostPorts(fake)
			putInitiator(fake, "HostInitiator_1", iqnA, InitiatorISCSI, "")

			err := sys.Host("Host_22").AddInitiator(ctx, tt.uid, tt.force)
			posts := fake.CallsTo(resttest.MethodPost, typeHostInitiator, "")
			assert.Len(t, posts, tt.wantPosts)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Empty(t, fake.CallsTo(resttest.MethodModify, typeHostInitiator, ""))
				return
			}
			require.NoError(t, err)

			ids, err := sys.Host("Host_22").InitiatorIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.uid}, ids)
			assert.Len(t, asList(fake.Object(typeHost, "Host_22")[tt.wantList]), 1)
		})
	}
}

func TestUpdateInitiators(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)
	installHostPorts(fake)
	putInitiator(fake, "HostInitiator_1", iqnA, InitiatorISCSI, "Host_14")
	putInitiator(fake, "HostInitiator_2", iqnB, InitiatorISCSI, "Host_14")

	changed, err := sys.Host("Host_14").UpdateInitiators(ctx, []string{iqnA, iqnC}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	ids, err := sys.Host("Host_14").InitiatorIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{iqnA, iqnC}, ids)
	assert.Nil(t, fake.Object(typeHostInitiator, "HostInitiator_2"))

	fake.ResetCalls()
	changed, err = sys.Host("Host_14").UpdateInitiators(ctx, []string{iqnC}, []string{})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
}

func TestDeleteInitiatorNotOnHost(t *testing.T) {
	fake, sys := newTestSystem(t, currentVersion)
	installHostPorts(fake)

	err := sys.Host("Host_14").DeleteInitiator(context.Background(), iqnA)
	assert.True(t, errors.Is(err, apierrors.ErrInitiatorNotFound))
}

func TestUpdateIPPorts(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)
	installHostPorts(fake)
	host := sys.Host("Host_22")

	changed, err := host.UpdateIPPorts(ctx, []string{"10.0.0.5", "10.1.0.0/24"})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	ips, err := host.IPList(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10.0.0.5", "10.1.0.0"}, ips)

	var netmasks []any
	for _, c := range fake.CallsTo(resttest.MethodPost, typeHostIPPort, "") {
		netmasks = append(netmasks, c.Body["netmask"])
	}
	assert.ElementsMatch(t, []any{nil, "255.255.255.0"}, netmasks)

	changed, err = host.UpdateIPPorts(ctx, []string{"10.0.0.5"})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	ips, err = host.IPList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5"}, ips)
}

func TestDeleteIPPortMissingIsNoop(t *testing.T) {
	fake, sys := newTestSystem(t, currentVersion)
	installHostPorts(fake)

	require.NoError(t, sys.Host("Host_22").DeleteIPPort(context.Background(), "10.9.9.9"))
	assert.Empty(t, fake.Mutations())
}

func TestFindHost(t *testing.T) {
	tests := []struct {
		name      string
		ref       string
		force     bool
		wantID    string
		wantNil   bool
		wantHosts int
	}{
		{name: "by id", ref: "Host_14", wantID: "Host_14"},
		{name: "by known address", ref: "10.0.0.15", wantID: "Host_15"},
		{name: "unknown address", ref: "10.0.0.99", wantNil: true},
		{name: "create for address", ref: "10.0.0.99", force: true, wantHosts: 1},
		{name: "create for subnet", ref: "10.2.0.0/24", force: true, wantHosts: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fake, sys := newTestSystem(t, currentVersion)
			installHostPorts(fake)
			require.NoError(t, sys.Host("Host_15").AddIPPort(ctx, mustAddress(t, "10.0.0.15")))
			fake.ResetCalls()

			host, err := sys.FindHost(ctx, tt.ref, tt.force)
			require.NoError(t, err)
			assert.Len(t, fake.CallsTo(resttest.MethodPost, typeHost, ""), tt.wantHosts)
			if tt.wantNil {
				assert.Nil(t, host)
				return
			}
			require.NotNil(t, host)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, host.ID())
				return
			}

			posts := fake.CallsTo(resttest.MethodPost, typeHost, "")
			addr := mustAddress(t, tt.ref)
			assert.Equal(t, addr.HostName(), posts[0].Body["name"])
			wantType := HostManual
			if addr.Netmask != "" {
				wantType = HostSubnet
			}
			assert.Equal(t, int(wantType), toInt(posts[0].Body["type"]))

			ips, err := host.IPList(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{addr.Address}, ips)
		})
	}
}

func TestFindHostMissingID(t *testing.T) {
	_, sys := newTestSystem(t, currentVersion)

	_, err := sys.FindHost(context.Background(), "Host_404", true)
	assert.True(t, errors.Is(err, apierrors.ErrNotFound))
}

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name      string
		ref       string
		create    bool
		wantID    string
		wantKind  apierrors.Kind
		wantPosts int
	}{
		{name: "by name", ref: "esx-15", wantID: "Host_15"},
		{name: "by id", ref: "Host_22", wantID: "Host_22"},
		{name: "by address", ref: "10.0.0.15", wantID: "Host_15"},
		{name: "unknown name", ref: "esx-99", wantKind: apierrors.KindNotFound},
		{name: "unknown address", ref: "10.0.0.99", wantKind: apierrors.KindNotFound},
		{name: "create by name", ref: "esx-99", create: true, wantPosts: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fake, sys := newTestSystem(t, currentVersion)
			installHostPorts(fake)
			require.NoError(t, sys.Host("Host_15").AddIPPort(ctx, mustAddress(t, "10.0.0.15")))
			fake.ResetCalls()

			host, err := sys.ResolveHost(ctx, tt.ref, tt.create)
			assert.Len(t, fake.CallsTo(resttest.MethodPost, typeHost, ""), tt.wantPosts)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apierrors.KindOf(err))
				assert.Nil(t, host)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, host)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, host.ID())
				return
			}
			p, err := host.Properties(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.ref, p.String("name"))
		})
	}
}

func TestHostModify(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)

	h := sys.Host("Host_22")
	require.NoError(t, h.Update(ctx))
	require.NoError(t, h.Modify(ctx, "esx-22-renamed", "", ""))
	calls := fake.CallsTo(resttest.MethodModify, typeHost, "")
	require.Len(t, calls, 1)
	assert.Equal(t, rest.Body{"name": "esx-22-renamed"}, calls[0].Body)

	fake.ResetCalls()
	name, err := h.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "esx-22-renamed", name)
	assert.Empty(t, fake.CallsTo(resttest.MethodGet, typeHost, ""))

	host, err := sys.HostByName(ctx, "esx-22-renamed")
	require.NoError(t, err)
	assert.Equal(t, "Host_22", host.ID())
}

func TestHostLUNs(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)
	addHostLUN(fake.Object(typeHost, "Host_14"), "sv_4", "vol-a", "snap_9", 4)

	entries, err := sys.Host("Host_14").HostLUNs(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, HostLUN{ID: "Host_14_sv_4_prod", HLU: 1, LUNID: "sv_4", LUNName: "vol-a"}, entries[0])
	assert.Equal(t, "snap_9", entries[1].SnapID)
	assert.Equal(t, 4, entries[1].HLU)
	assert.Equal(t, fmt.Sprintf("Host_14_sv_4_%s", "snap_9"), entries[1].ID)
}
