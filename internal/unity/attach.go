package unity

import (
	"context"
	"errors"
	"fmt"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/naming"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/version"
)

// maxHLU bounds random HLU selection. HLU 0 is never picked.
const maxHLU = 255

// Attachable is anything a host can be given access to.
type Attachable interface {
	rest.Identifier
	AttachTo(ctx context.Context, host *Host, opts AttachOptions) error
	// DetachFrom removes host access. A nil host means every host.
	DetachFrom(ctx context.Context, host *Host) error
}

// AttachOptions configures an attach request.
type AttachOptions struct {
	// AccessMask applies to LUNs. Zero means production access.
	AccessMask AccessMask
	// SnapAccess applies to snapshots. Nil means read/write.
	SnapAccess *SnapAccess
	// HLU requests a specific host LUN number (LUNs on 4.4.0 and later).
	HLU *int
}

// attachStrategy is one way of attaching and settling the HLU. The right
// one depends on the array version and is picked once per System.
type attachStrategy interface {
	name() string
	attach(ctx context.Context, h *Host, target Attachable, skipHLU0 bool) (int, error)
}

func strategyFor(v *version.Version) attachStrategy {
	if v.AtLeast(version.AttachWithHLU) {
		return hluInAttach{}
	}
	return modifyAfterAttach{}
}

// modifyAfterAttach attaches with whatever HLU the array assigns, then
// moves the attachment off HLU 0 when asked to.
type modifyAfterAttach struct{}

func (modifyAfterAttach) name() string { return "modify-after-attach" }

func (modifyAfterAttach) attach(ctx context.Context, h *Host, target Attachable, skipHLU0 bool) (int, error) {
	hl, err := attachAndRead(ctx, h, target)
	if err != nil {
		return 0, err
	}
	if !skipHLU0 || hl.HLU != 0 {
		return hl.HLU, nil
	}

	candidate, err := h.randomHLU(ctx)
	if err != nil {
		return 0, err
	}
	if err := h.modifyHLU(ctx, hl, candidate); err != nil {
		return 0, err
	}
	return candidate, nil
}

// hluInAttach passes a chosen HLU in the LUN attach request. Snapshots
// cannot carry an HLU and fall back to modifyAfterAttach.
type hluInAttach struct{}

func (hluInAttach) name() string { return "hlu-in-attach" }

func (hluInAttach) attach(ctx context.Context, h *Host, target Attachable, skipHLU0 bool) (int, error) {
	lun, isLUN := target.(*LUN)
	if !isLUN {
		return modifyAfterAttach{}.attach(ctx, h, target, skipHLU0)
	}
	if !skipHLU0 {
		hl, err := attachAndRead(ctx, h, target)
		if err != nil {
			return 0, err
		}
		return hl.HLU, nil
	}

	candidate, err := h.randomHLU(ctx)
	if err != nil {
		return 0, err
	}
	if err := lun.AttachTo(ctx, h, AttachOptions{HLU: &candidate}); err != nil {
		return 0, err
	}
	if err := h.Update(ctx); err != nil {
		return 0, err
	}
	return candidate, nil
}

func attachAndRead(ctx context.Context, h *Host, target Attachable) (*HostLUN, error) {
	if err := target.AttachTo(ctx, h, AttachOptions{}); err != nil {
		return nil, err
	}
	if err := h.Update(ctx); err != nil {
		return nil, err
	}
	hl, err := h.GetHostLUN(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	if hl == nil {
		return nil, apierrors.New(apierrors.KindNotAttached, "%s not attached to host %s after attach", target.ID(), h.ID())
	}
	return hl, nil
}

// Attach gives the host access to a LUN, snapshot or member snapshot and
// returns the HLU in use. With skipHLU0 the attachment never ends up on
// HLU 0.
//
// HLU conflicts are retried with a fresh random HLU, at most five attempts
// in total. Any other failure triggers a compensating detach before the
// error is returned, except for unsupported actions and attach limits,
// which leave nothing behind.
func (h *Host) Attach(ctx context.Context, target Attachable, skipHLU0 bool) (int, error) {
	log := h.sys.log.WithFields(logrus.Fields{
		"host":     h.ID(),
		"target":   target.ID(),
		"strategy": h.sys.attach.name(),
	})

	var (
		hlu     int
		lastErr error
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			if err := ctx.Err(); err != nil {
				lastErr = err
				return err
			}
			hlu, lastErr = h.sys.attach.attach(ctx, h, target, skipHLU0)
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, apierrors.ErrHLUNumberInUse)
		},
		NotifyFunc: func(err error, attempt int) {
			if attempt < maxHLUAttempts {
				log.WithError(err).WithField("attempt", attempt).Warn("hlu in use, retrying attach")
			}
		},
		Attempts: maxHLUAttempts,
		Delay:    hluRetryDelay,
		Clock:    clock.WallClock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		log.WithField("hlu", hlu).Info("attached")
		return hlu, nil
	}

	switch {
	case retry.IsAttemptsExceeded(err):
		err = apierrors.Wrap(apierrors.KindNoHLUAvailable, lastErr,
			"no hlu available on host %s after %d attempts", h.ID(), maxHLUAttempts)
	case retry.IsRetryStopped(err):
		err = fmt.Errorf("attach canceled: %w", ctx.Err())
	default:
		err = lastErr
	}
	if errors.Is(err, apierrors.ErrActionNotSupported) || errors.Is(err, apierrors.ErrAttachExceedLimit) {
		return 0, err
	}

	log.WithError(err).Warn("attach failed, detaching")
	if derr := h.Detach(ctx, target); derr != nil {
		log.WithError(derr).Error("compensating detach failed")
	}
	return 0, err
}

// Detach removes the host's access to target. Placeholder LUNs left by
// older tooling are deleted first; failures deleting them are ignored.
func (h *Host) Detach(ctx context.Context, target Attachable) error {
	entries, err := h.HostLUNs(ctx)
	if err != nil {
		return err
	}
	for _, hl := range entries {
		if hl.LUNName != naming.DummyLUNName || hl.LUNID == "" {
			continue
		}
		if _, err := h.sys.LUN(hl.LUNID).Delete(ctx, LUNDeleteOptions{}); err != nil {
			if !apierrors.IsArrayError(err) {
				return err
			}
			h.sys.log.WithError(err).WithField("lun", hl.LUNID).Debug("ignoring dummy lun cleanup failure")
		}
		break
	}

	if err := target.DetachFrom(ctx, h); err != nil {
		return fmt.Errorf("failed to detach %s from host %s: %w", target.ID(), h.ID(), err)
	}
	h.Invalidate()
	return nil
}

// randomHLU picks an unused HLU in [1, 255]. Every host LUN entry counts,
// snapshot attachments included.
func (h *Host) randomHLU(ctx context.Context) (int, error) {
	entries, err := h.HostLUNs(ctx)
	if err != nil {
		return 0, err
	}
	used := make(map[int]bool, len(entries))
	for _, hl := range entries {
		used[hl.HLU] = true
	}

	free := make([]int, 0, maxHLU)
	for n := 1; n <= maxHLU; n++ {
		if !used[n] {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return 0, apierrors.New(apierrors.KindNoHLUAvailable,
			"no hlu available on host %s in range [1, %d]", h.ID(), maxHLU)
	}
	return free[h.sys.rand.IntN(len(free))], nil
}

func (h *Host) modifyHLU(ctx context.Context, hl *HostLUN, hlu int) error {
	body := rest.MakeBody("hostLunModifyList", []any{
		rest.MakeBody("hostLUN", rest.Ref(hl.ID), "hlu", hlu),
	})
	if _, err := h.Action(ctx, "modifyHostLUNs", body); err != nil {
		return err
	}
	return nil
}
