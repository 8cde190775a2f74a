package binding

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/naming"
	"github.com/jbweber/arrayops/internal/reconcile"
	"github.com/jbweber/arrayops/internal/status"
)

// Result summarizes one Apply.
type Result struct {
	Binding           string
	HostID            string
	InitiatorsChanged int
	Attached          []string
	Detached          []string
}

// Changed reports whether Apply touched the array.
func (r Result) Changed() bool {
	return r.InitiatorsChanged > 0 || len(r.Attached) > 0 || len(r.Detached) > 0
}

// Apply drives the host named by b towards b's spec and records progress
// in b.Status. The returned Result covers the work done even when Apply
// fails part way.
func Apply(ctx context.Context, arr Array, b *v1alpha1.HostBinding, log logrus.FieldLogger) (Result, error) {
	res := Result{Binding: b.Name}
	log = log.WithFields(logrus.Fields{"binding": b.Name, "host": b.Spec.Host})

	if err := status.TransitionToApplying(b); err != nil {
		return res, err
	}

	log.Info("resolving host")
	host, err := arr.FindHost(ctx, b.Spec.Host, b.Spec.CreateHost)
	if err != nil {
		status.MarkHostFailed(b, err)
		return res, fmt.Errorf("failed to resolve host %s: %w", b.Spec.Host, err)
	}
	res.HostID = host.ID()
	status.MarkHostResolved(b, host.ID())
	log = log.WithField("host_id", host.ID())

	if b.Spec.Initiators != nil {
		iqns, wwns := splitInitiators(b.Spec.Initiators)
		n, err := host.UpdateInitiators(ctx, iqns, wwns)
		if err != nil {
			status.MarkInitiatorsFailed(b, err)
			return res, fmt.Errorf("failed to sync initiators of %s: %w", b.Spec.Host, err)
		}
		res.InitiatorsChanged = n
		status.MarkInitiatorsSynced(b)
		log.WithField("changed", n).Info("initiators synced")
	}

	if err := attachLUNs(ctx, arr, host, b, &res, log); err != nil {
		status.MarkLUNsFailed(b, err)
		return res, err
	}
	status.MarkLUNsAttached(b)
	if err := status.TransitionToBound(b); err != nil {
		return res, err
	}
	log.WithFields(logrus.Fields{
		"attached": len(res.Attached),
		"detached": len(res.Detached),
	}).Info("binding applied")
	return res, nil
}

// ApplyAll applies every binding in order. A failed binding does not stop
// the ones after it; all failures are returned joined.
func ApplyAll(ctx context.Context, arr Array, bindings []*v1alpha1.HostBinding, log logrus.FieldLogger) ([]Result, error) {
	results := make([]Result, 0, len(bindings))
	var errs []error
	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := Apply(ctx, arr, b, log)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("binding %s: %w", b.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

func attachLUNs(ctx context.Context, arr Array, host Host, b *v1alpha1.HostBinding, res *Result, log logrus.FieldLogger) error {
	live, err := host.Attachments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list attachments of %s: %w", b.Spec.Host, err)
	}

	desired := b.LUNNames()
	byName := make(map[string]Attachment, len(live))
	for _, a := range live {
		byName[a.Name] = a
	}

	// Without exclusive, only LUNs this binding attached or wants are
	// candidates for removal.
	owned := b.AttachedNames()
	var current []string
	for _, a := range live {
		if b.Spec.Exclusive || slices.Contains(owned, a.Name) || slices.Contains(desired, a.Name) {
			current = append(current, a.Name)
		}
	}
	// Forget records of LUNs detached behind our back.
	for _, name := range owned {
		if _, ok := byName[name]; !ok {
			b.RemoveAttached(name)
		}
	}

	plan := reconcile.Compute(current, desired)
	for _, name := range desired {
		if a, ok := byName[name]; ok {
			b.SetAttached(v1alpha1.AttachedLUN{Name: name, ID: a.LUNID, HLU: a.HLU})
			if lb, _ := b.LUN(name); lb.HLU != nil && *lb.HLU != a.HLU {
				log.WithFields(logrus.Fields{"lun": name, "hlu": a.HLU, "want": *lb.HLU}).
					Warn("lun already attached on a different hlu, leaving it")
			}
		}
	}
	if plan.Empty() {
		log.Info("attachments up to date")
		return nil
	}

	add := func(ctx context.Context, name string) error {
		id, err := arr.LUNID(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to find lun %s: %w", name, err)
		}
		lb, _ := b.LUN(name)
		hlu, err := host.Attach(ctx, id, lb.HLU, b.Spec.SkipHLU0)
		if err != nil {
			return fmt.Errorf("failed to attach lun %s: %w", name, err)
		}
		b.SetAttached(v1alpha1.AttachedLUN{Name: name, ID: id, HLU: hlu})
		res.Attached = append(res.Attached, name)
		log.WithFields(logrus.Fields{"lun": name, "hlu": hlu}).Info("attached lun")
		return nil
	}
	remove := func(ctx context.Context, name string) error {
		id := byName[name].LUNID
		if err := host.Detach(ctx, id); err != nil {
			return fmt.Errorf("failed to detach lun %s: %w", name, err)
		}
		b.RemoveAttached(name)
		res.Detached = append(res.Detached, name)
		log.WithField("lun", name).Info("detached lun")
		return nil
	}
	_, err = reconcile.Apply(ctx, plan, add, remove)
	return err
}

func splitInitiators(uids []string) (iqns, wwns []string) {
	for _, uid := range uids {
		if naming.IsFCUID(uid) {
			wwns = append(wwns, uid)
		} else {
			iqns = append(iqns, uid)
		}
	}
	return iqns, wwns
}
