package binding

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/status"
)

const (
	iqn = "iqn.1998-01.com.vmware:esx15-1a2b3c4d"
	wwn = "20:00:00:25:B5:AA:00:01:20:00:00:25:B5:BB:00:01"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testBinding(luns ...string) *v1alpha1.HostBinding {
	b := v1alpha1.NewHostBinding("esx-15", "esx-15")
	for _, name := range luns {
		b.Spec.LUNs = append(b.Spec.LUNs, v1alpha1.LUNBinding{Name: name})
	}
	return b
}

func testArray() *mockArray {
	arr := newMockArray()
	arr.addLUN("db-data", "sv_1")
	arr.addLUN("db-logs", "sv_2")
	arr.addLUN("scratch", "sv_3")
	return arr
}

func TestApply_Success(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")

	b := testBinding("db-data", "db-logs")
	b.Spec.SkipHLU0 = true
	hlu := 7
	b.Spec.LUNs[1].HLU = &hlu

	res, err := Apply(context.Background(), arr, b, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "Host_15", res.HostID)
	assert.Equal(t, []string{"db-data", "db-logs"}, res.Attached)
	assert.Empty(t, res.Detached)
	assert.True(t, res.Changed())

	assert.Equal(t, v1alpha1.BindingPhaseBound, b.GetPhase())
	assert.Equal(t, "Host_15", b.Status.HostID)
	assert.True(t, status.IsConditionTrue(b, v1alpha1.ConditionHostResolved))
	assert.True(t, status.IsConditionTrue(b, v1alpha1.ConditionLUNsAttached))
	assert.True(t, status.IsConditionTrue(b, v1alpha1.ConditionReady))
	assert.Nil(t, status.GetCondition(b, v1alpha1.ConditionInitiatorsSynced), "initiators untouched without a list")

	assert.Equal(t, []v1alpha1.AttachedLUN{
		{Name: "db-data", ID: "sv_1", HLU: 1},
		{Name: "db-logs", ID: "sv_2", HLU: 7},
	}, b.Status.Attached)
	assert.Equal(t, []string{"sv_1", "sv_2"}, host.attachCalls)
}

func TestApply_Idempotent(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")
	b := testBinding("db-data")

	_, err := Apply(context.Background(), arr, b, quietLogger())
	require.NoError(t, err)

	res, err := Apply(context.Background(), arr, b, quietLogger())
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Len(t, host.attachCalls, 1)
	assert.Equal(t, v1alpha1.BindingPhaseBound, b.GetPhase())
}

func TestApply_CreatesHost(t *testing.T) {
	tests := []struct {
		name       string
		createHost bool
		wantErr    bool
	}{
		{"create", true, false},
		{"no create", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr := testArray()
			b := testBinding("db-data")
			b.Spec.CreateHost = tt.createHost

			_, err := Apply(context.Background(), arr, b, quietLogger())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apierrors.ErrNotFound))
				assert.Equal(t, v1alpha1.BindingPhaseFailed, b.GetPhase())
				assert.True(t, status.IsConditionFalse(b, v1alpha1.ConditionHostResolved))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, arr.hosts, "esx-15")
			assert.Equal(t, arr.hosts["esx-15"].id, b.Status.HostID)
		})
	}
}

func TestApply_Initiators(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")
	host.initiators = []string{"iqn.old"}

	b := testBinding()
	b.Spec.Initiators = []string{wwn, iqn}

	res, err := Apply(context.Background(), arr, b, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.InitiatorsChanged)
	assert.Equal(t, []string{iqn, wwn}, host.initiators, "iqns first, then wwns")
	assert.True(t, status.IsConditionTrue(b, v1alpha1.ConditionInitiatorsSynced))
}

func TestApply_InitiatorFailure(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")
	host.updateInitsErr = apierrors.New(apierrors.KindUnknownInitiatorType, "unknown initiator type")

	b := testBinding("db-data")
	b.Spec.Initiators = []string{iqn}

	_, err := Apply(context.Background(), arr, b, quietLogger())
	require.Error(t, err)
	assert.Equal(t, v1alpha1.BindingPhaseFailed, b.GetPhase())
	assert.True(t, status.IsConditionFalse(b, v1alpha1.ConditionInitiatorsSynced))
	assert.Empty(t, host.attachCalls, "luns are not touched after an initiator failure")
}

func TestApply_DetachesOwnedOnly(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")
	host.attachments = []Attachment{
		{Name: "db-data", LUNID: "sv_1", HLU: 1},
		{Name: "db-logs", LUNID: "sv_2", HLU: 2},
		{Name: "scratch", LUNID: "sv_3", HLU: 3},
	}

	b := testBinding("db-data")
	b.SetAttached(v1alpha1.AttachedLUN{Name: "db-logs", ID: "sv_2", HLU: 2})

	res, err := Apply(context.Background(), arr, b, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, res.Attached)
	assert.Equal(t, []string{"db-logs"}, res.Detached)
	assert.Equal(t, []string{"sv_2"}, host.detachCalls, "scratch was never owned by the binding")
	assert.Equal(t, []string{"db-data"}, b.AttachedNames())
}

func TestApply_Exclusive(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")
	host.attachments = []Attachment{
		{Name: "scratch", LUNID: "sv_3", HLU: 3},
	}

	b := testBinding("db-data")
	b.Spec.Exclusive = true

	res, err := Apply(context.Background(), arr, b, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"db-data"}, res.Attached)
	assert.Equal(t, []string{"scratch"}, res.Detached)
	assert.Equal(t, []string{"sv_3"}, host.detachCalls)
}

func TestApply_AttachFailureKeepsEarlierWork(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")
	host.attachErr = map[string]error{
		"sv_2": apierrors.New(apierrors.KindNoHLUAvailable, "no hlu left"),
	}

	b := testBinding("db-data", "db-logs")

	res, err := Apply(context.Background(), arr, b, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrNoHLUAvailable))
	assert.Contains(t, err.Error(), "db-logs")

	assert.Equal(t, []string{"db-data"}, res.Attached)
	assert.Equal(t, []string{"db-data"}, b.AttachedNames(), "earlier attach is not rolled back")
	assert.Empty(t, host.detachCalls)
	assert.Equal(t, v1alpha1.BindingPhaseFailed, b.GetPhase())
	assert.True(t, status.IsConditionFalse(b, v1alpha1.ConditionLUNsAttached))
}

func TestApply_UnknownLUN(t *testing.T) {
	arr := testArray()
	arr.addHost("esx-15", "Host_15")
	b := testBinding("missing")

	_, err := Apply(context.Background(), arr, b, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrNotFound))
}

func TestApply_ForgetsLUNsDetachedElsewhere(t *testing.T) {
	arr := testArray()
	arr.addHost("esx-15", "Host_15")

	b := testBinding()
	b.SetAttached(v1alpha1.AttachedLUN{Name: "db-logs", ID: "sv_2", HLU: 2})

	_, err := Apply(context.Background(), arr, b, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, b.Status.Attached)
}

func TestApply_WarnsOnHLUMismatch(t *testing.T) {
	arr := testArray()
	host := arr.addHost("esx-15", "Host_15")
	host.attachments = []Attachment{{Name: "db-data", LUNID: "sv_1", HLU: 4}}

	hlu := 9
	b := testBinding("db-data")
	b.Spec.LUNs[0].HLU = &hlu

	logger, hook := test.NewNullLogger()
	_, err := Apply(context.Background(), arr, b, logger)
	require.NoError(t, err)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["lun"] == "db-data" {
			warned = true
		}
	}
	assert.True(t, warned)
	assert.Equal(t, 4, b.Status.Attached[0].HLU, "status reports the hlu the host actually sees")
}

func TestApply_AlreadyApplying(t *testing.T) {
	arr := testArray()
	b := testBinding()
	b.SetPhase(v1alpha1.BindingPhaseApplying)

	_, err := Apply(context.Background(), arr, b, quietLogger())
	require.Error(t, err)
	assert.Empty(t, arr.findHostCalls)
}

func TestApplyAll(t *testing.T) {
	arr := testArray()
	arr.addHost("esx-15", "Host_15")
	arr.addHost("esx-22", "Host_22")

	ok := testBinding("db-data")
	bad := v1alpha1.NewHostBinding("esx-99", "esx-99")
	other := v1alpha1.NewHostBinding("esx-22", "esx-22")
	other.Spec.LUNs = []v1alpha1.LUNBinding{{Name: "scratch"}}

	results, err := ApplyAll(context.Background(), arr, []*v1alpha1.HostBinding{ok, bad, other}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binding esx-99")
	require.Len(t, results, 3)
	assert.Equal(t, v1alpha1.BindingPhaseBound, ok.GetPhase())
	assert.Equal(t, v1alpha1.BindingPhaseFailed, bad.GetPhase())
	assert.Equal(t, v1alpha1.BindingPhaseBound, other.GetPhase(), "later bindings still run")
}

func TestApplyAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := ApplyAll(ctx, testArray(), []*v1alpha1.HostBinding{testBinding()}, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
}

func TestSplitInitiators(t *testing.T) {
	iqns, wwns := splitInitiators([]string{wwn, iqn, "eui.0123456789abcdef"})
	assert.Equal(t, []string{iqn, "eui.0123456789abcdef"}, iqns)
	assert.Equal(t, []string{wwn}, wwns)
}
