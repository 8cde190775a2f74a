package unity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/rest/resttest"
)

func createMuse(t *testing.T, sys *System, luns ...rest.Identifier) *ConsistencyGroup {
	t.Helper()
	cg, err := sys.CreateConsistencyGroup(context.Background(), CGCreateOptions{Name: "muse", LUNs: luns})
	require.NoError(t, err)
	return cg
}

func TestCreateConsistencyGroup(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)

	cg := createMuse(t, sys, sys.LUN("sv_3339"), sys.LUN("sv_3340"))

	ids, err := cg.LUNIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sv_3339", "sv_3340"}, ids)

	member, err := sys.LUN("sv_3339").IsCGMember(ctx)
	require.NoError(t, err)
	assert.True(t, member)

	create := fake.CallsTo(resttest.MethodTypeAction, typeStorageResource, "createConsistencyGroup")
	require.Len(t, create, 1)
	assert.Equal(t, "muse", create[0].Body["name"])
	assert.NotContains(t, create[0].Body, "blockHostAccess")
}

func TestCreateConsistencyGroupNameInUse(t *testing.T) {
	ctx := context.Background()
	_, sys := newTestSystem(t, currentVersion)

	// a LUN already owns the name
	_, err := sys.CreateConsistencyGroup(ctx, CGCreateOptions{Name: "vol-a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrCGNameInUse))
	assert.False(t, errors.Is(err, apierrors.ErrStorageResourceNameInUse))
	assert.Equal(t, apierrors.KindCGNameInUse, apierrors.KindOf(err))
}

func TestReplaceLUN(t *testing.T) {
	tests := []struct {
		name       string
		replace    []string
		wantCalls  int
		wantAdd    []string
		wantRemove []string
		wantIDs    []string
	}{
		{
			name:      "same set sends nothing",
			replace:   []string{"sv_3340", "sv_3339"},
			wantCalls: 0,
			wantIDs:   []string{"sv_3339", "sv_3340"},
		},
		{
			name:       "swap one member",
			replace:    []string{"sv_3340", "sv_3341"},
			wantCalls:  1,
			wantAdd:    []string{"sv_3341"},
			wantRemove: []string{"sv_3339"},
			wantIDs:    []string{"sv_3340", "sv_3341"},
		},
		{
			name:       "empty removes everything",
			replace:    nil,
			wantCalls:  1,
			wantRemove: []string{"sv_3339", "sv_3340"},
			wantIDs:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fake, sys := newTestSystem(t, currentVersion)
			cg := createMuse(t, sys, sys.LUN("sv_3339"), sys.LUN("sv_3340"))
			fake.ResetCalls()

			var luns []rest.Identifier
			for _, id := range tt.replace {
				luns = append(luns, sys.LUN(id))
			}
			_, err := cg.ReplaceLUN(ctx, luns...)
			require.NoError(t, err)

			calls := fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup")
			require.Len(t, calls, tt.wantCalls)
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.wantAdd, memberIDs(calls[0].Body["lunAdd"]))
				assert.Equal(t, tt.wantRemove, memberIDs(calls[0].Body["lunRemove"]))
			}

			ids, err := cg.LUNIDs(ctx)
			require.NoError(t, err)
			if tt.wantIDs == nil {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.wantIDs, ids)
			}
		})
	}
}

func TestUpdateLUN(t *testing.T) {
	tests := []struct {
		name       string
		add        []string
		remove     []string
		wantCalls  int
		wantAdd    []string
		wantRemove []string
	}{
		{name: "nothing requested", wantCalls: 0},
		{name: "add existing member", add: []string{"sv_3339"}, wantCalls: 0},
		{name: "remove non member", remove: []string{"sv_3341"}, wantCalls: 0},
		{
			name:      "add new member",
			add:       []string{"sv_3339", "sv_3341"},
			wantCalls: 1,
			wantAdd:   []string{"sv_3341"},
		},
		{
			name:       "add and remove",
			add:        []string{"sv_3341"},
			remove:     []string{"sv_3340", "sv_4"},
			wantCalls:  1,
			wantAdd:    []string{"sv_3341"},
			wantRemove: []string{"sv_3340"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fake, sys := newTestSystem(t, currentVersion)
			cg := createMuse(t, sys, sys.LUN("sv_3339"), sys.LUN("sv_3340"))
			fake.ResetCalls()

			_, err := cg.UpdateLUN(ctx, refs(tt.add), refs(tt.remove))
			require.NoError(t, err)

			calls := fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup")
			require.Len(t, calls, tt.wantCalls)
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.wantAdd, memberIDs(calls[0].Body["lunAdd"]))
				assert.Equal(t, tt.wantRemove, memberIDs(calls[0].Body["lunRemove"]))
			}
		})
	}
}

func TestUpdateLUNNothingRequestedSkipsRead(t *testing.T) {
	fake, sys := newTestSystem(t, currentVersion)

	resp, err := sys.ConsistencyGroup("res_1").UpdateLUN(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, resp.ErrorCode)
	assert.Empty(t, fake.Calls())
}

func TestModifyLUNClearsHostAccess(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)
	cg := createMuse(t, sys, sys.LUN("sv_4"))
	fake.ResetCalls()

	_, err := cg.ModifyLUN(ctx, sys.LUN("sv_4"), LUNModifyOptions{
		LUNParameters: LUNParameters{HostAccess: []BlockHostAccess{}},
	})
	require.NoError(t, err)

	calls := fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup")
	require.Len(t, calls, 1)
	access, ok := asMap(bodyAt(calls[0].Body, "lunModify", "lunParameters"))["hostAccess"]
	require.True(t, ok, "empty host access must be sent")
	assert.Empty(t, access)
	assert.Equal(t, "sv_4", refID(bodyAt(calls[0].Body, "lunModify", "lun")))

	_, attached := hostHLU(fake, "Host_14", "sv_4")
	assert.False(t, attached)
}

func TestCGRename(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)
	cg := createMuse(t, sys, sys.LUN("sv_3339"))
	require.NoError(t, cg.Update(ctx))
	fake.ResetCalls()

	require.NoError(t, cg.Rename(ctx, "muse-2"))
	require.Len(t, fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup"), 1)

	name, err := cg.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "muse-2", name)
	assert.Empty(t, fake.CallsTo(resttest.MethodGet, typeStorageResource, ""))
	assert.Equal(t, "muse-2", fake.Object(typeStorageResource, cg.ID())["name"])
}

func TestLUNModifyRoutesThroughGroup(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)
	cg := createMuse(t, sys, sys.LUN("sv_3339"))
	fake.ResetCalls()

	old, err := sys.LUN("sv_3339").Expand(ctx, 2<<30)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<30), old)

	assert.Empty(t, fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyLun"))
	calls := fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup")
	require.Len(t, calls, 1)
	assert.Equal(t, cg.ID(), calls[0].ID)
	assert.Equal(t, 2<<30, toInt(bodyAt(calls[0].Body, "lunModify", "lunParameters", "size")))

	size, err := sys.LUN("sv_3339").SizeTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2<<30), size)
}

func TestCGHostAccess(t *testing.T) {
	tests := []struct {
		name  string
		apply func(cg *ConsistencyGroup, ctx context.Context, hosts ...rest.Identifier) (*rest.Response, error)
		key   string
	}{
		{"set", (*ConsistencyGroup).SetHostAccess, "blockHostAccess"},
		{"add", (*ConsistencyGroup).AddHostAccess, "addBlockHostAccess"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, sys := newTestSystem(t, currentVersion)
			cg := createMuse(t, sys, sys.LUN("sv_3339"))
			fake.ResetCalls()

			_, err := tt.apply(cg, context.Background(), sys.Host("Host_22"))
			require.NoError(t, err)

			calls := fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup")
			require.Len(t, calls, 1)
			entry := asMap(bodyAt(calls[0].Body, tt.key))
			assert.Equal(t, "Host_22", refID(entry["host"]))
			assert.Equal(t, int(AccessBoth), toInt(entry["accessMask"]))
		})
	}

	t.Run("remove", func(t *testing.T) {
		fake, sys := newTestSystem(t, currentVersion)
		cg := createMuse(t, sys, sys.LUN("sv_3339"))
		fake.ResetCalls()

		_, err := cg.RemoveHostAccess(context.Background(), sys.Host("Host_22"))
		require.NoError(t, err)

		calls := fake.CallsTo(resttest.MethodAction, typeStorageResource, "modifyConsistencyGroup")
		require.Len(t, calls, 1)
		assert.Equal(t, "Host_22", refID(bodyAt(calls[0].Body, "removeBlockHostAccess")))
	})
}

func TestCGSnapshotsSkipMemberSnaps(t *testing.T) {
	ctx := context.Background()
	fake, sys := newTestSystem(t, currentVersion)
	cg := createMuse(t, sys, sys.LUN("sv_3339"), sys.LUN("sv_3340"))

	fake.Put(typeSnap, map[string]any{
		"id": "snap_1", "name": "group-snap",
		"storageResource": map[string]any{"id": cg.ID()},
	})
	fake.Put(typeSnap, map[string]any{
		"id": "snap_2", "name": "member-1",
		"storageResource": map[string]any{"id": cg.ID()},
		"lun":             map[string]any{"id": "sv_3339"},
		"snapGroup":       map[string]any{"id": "snap_1"},
	})

	snaps, err := cg.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "snap_1", snaps[0].ID())
}

func TestCGCreateSnapDropsFilesystemOptions(t *testing.T) {
	fake, sys := newTestSystem(t, currentVersion)
	cg := createMuse(t, sys, sys.LUN("sv_3339"))
	readOnly := true
	access := 1

	_, err := cg.CreateSnap(context.Background(), SnapCreateOptions{Name: "s1", IsReadOnly: &readOnly, FSAccessType: &access})
	require.NoError(t, err)

	posts := fake.CallsTo(resttest.MethodPost, typeSnap, "")
	require.Len(t, posts, 1)
	assert.NotContains(t, posts[0].Body, "isReadOnly")
	assert.NotContains(t, posts[0].Body, "filesystemAccessType")
	assert.Equal(t, cg.ID(), refID(posts[0].Body["storageResource"]))
}

func TestCGAttachNotSupported(t *testing.T) {
	_, sys := newTestSystem(t, currentVersion)
	cg := sys.ConsistencyGroup("res_1")

	err := cg.AttachTo(context.Background(), sys.Host("Host_14"), AttachOptions{})
	assert.True(t, errors.Is(err, apierrors.ErrActionNotSupported))
	err = cg.DetachFrom(context.Background(), sys.Host("Host_14"))
	assert.True(t, errors.Is(err, apierrors.ErrActionNotSupported))
}

func TestFilterIDs(t *testing.T) {
	from := refs([]string{"a", "b", "a", "c"})
	assert.Equal(t, []string{"a", "c"}, idsOf(subtractIDs(from, []string{"b"})))
	assert.Equal(t, []string{"b"}, idsOf(intersectIDs(from, []string{"b", "z"})))
	assert.Empty(t, idsOf(subtractIDs(nil, []string{"a"})))
}

func memberIDs(v any) []string {
	var out []string
	for _, e := range asList(v) {
		out = append(out, refID(asMap(e)["lun"]))
	}
	return out
}
