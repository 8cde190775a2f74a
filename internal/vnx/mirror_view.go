package vnx

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/naviseccli"
	"github.com/jbweber/arrayops/internal/status"
)

// RecoveryPolicy controls whether a fractured secondary resyncs on its own.
type RecoveryPolicy string

const (
	RecoveryAuto   RecoveryPolicy = "auto"
	RecoveryManual RecoveryPolicy = "manual"
)

// SyncRate is the resynchronization rate of a secondary image.
type SyncRate string

const (
	SyncRateHigh   SyncRate = "high"
	SyncRateMedium SyncRate = "medium"
	SyncRateLow    SyncRate = "low"
)

// PromoteType selects how an asynchronous secondary is promoted.
type PromoteType string

const (
	PromoteNormal PromoteType = "normal"
	PromoteLocal  PromoteType = "local"
	// PromoteOutOfSync promotes without waiting for the images to agree.
	PromoteOutOfSync PromoteType = "oos"
)

const (
	fieldMirrorName   = "MirrorView Name"
	fieldImageUID     = "Image UID"
	fieldRemoteStatus = "Remote Mirror Status"
	remoteMirrored    = "Mirrored"
)

// Image is one side of a mirror view.
type Image struct {
	UID            string
	Primary        bool
	LogicalUnitUID string
	State          string
	Condition      string
	RecoveryPolicy string
	SyncRate       string
	// Progress is the synchronization percentage, -1 when not reported.
	Progress int
}

// WWN is the image UID.
func (i Image) WWN() string { return i.UID }

func imageFrom(r naviseccli.Record) Image {
	img := Image{
		UID:            r.Get(fieldImageUID),
		Primary:        r.Bool("Is Image Primary"),
		LogicalUnitUID: r.Get("Logical Unit UID"),
		State:          r.Get("Image State"),
		Condition:      r.Get("Image Condition"),
		RecoveryPolicy: r.Get("Recovery Policy"),
		SyncRate:       r.Get("Synchronization Rate"),
		Progress:       -1,
	}
	if p, ok := r.Int("Synchronizing Progress(%)"); ok {
		img.Progress = p
	}
	return img
}

// ImageOptions tunes a new secondary image. Zero values mean automatic
// recovery at high rate.
type ImageOptions struct {
	RecoveryPolicy RecoveryPolicy
	SyncRate       SyncRate
}

type mirrorView struct {
	c     *Client
	mode  Mode
	name  string
	entry *naviseccli.Entry
}

// Name returns the mirror name.
func (m *mirrorView) Name() string { return m.name }

// Mode returns whether the mirror is sync or async.
func (m *mirrorView) Mode() Mode { return m.mode }

// Invalidate drops the cached list output.
func (m *mirrorView) Invalidate() { m.entry = nil }

func (m *mirrorView) logger() logrus.FieldLogger {
	return m.c.log.WithFields(logrus.Fields{"mirror": m.name, "mode": m.mode.String()})
}

func (m *mirrorView) load(ctx context.Context) (*naviseccli.Entry, error) {
	if m.entry != nil {
		return m.entry, nil
	}
	out, err := m.c.mirror(ctx, m.mode, "-list", "-name", m.name)
	if err != nil {
		return nil, err
	}
	for _, e := range naviseccli.ParseEntries(out, fieldMirrorName, fieldImageUID) {
		if e.Get(fieldMirrorName) == m.name {
			m.entry = &e
			return m.entry, nil
		}
	}
	return nil, apierrors.New(apierrors.KindNotFound, "mirror view %s not found", m.name)
}

// Properties returns the mirror view fields as printed by the CLI.
func (m *mirrorView) Properties(ctx context.Context) (naviseccli.Record, error) {
	e, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return e.Record, nil
}

// Images returns the primary and secondary images in CLI order.
func (m *mirrorView) Images(ctx context.Context) ([]Image, error) {
	e, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(e.Children))
	for _, r := range e.Children {
		images = append(images, imageFrom(r))
	}
	return images, nil
}

// GetImage returns the image with uid.
func (m *mirrorView) GetImage(ctx context.Context, uid string) (Image, error) {
	images, err := m.Images(ctx)
	if err != nil {
		return Image{}, err
	}
	for _, img := range images {
		if img.UID == uid {
			return img, nil
		}
	}
	return Image{}, apierrors.New(apierrors.KindMirrorImageNotFound, "image %s not found in mirror view %s", uid, m.name)
}

// PrimaryImage returns nil when the mirror has no primary image.
func (m *mirrorView) PrimaryImage(ctx context.Context) (*Image, error) {
	return m.findImage(ctx, true)
}

// SecondaryImage returns nil when the mirror has no secondary image.
func (m *mirrorView) SecondaryImage(ctx context.Context) (*Image, error) {
	return m.findImage(ctx, false)
}

func (m *mirrorView) findImage(ctx context.Context, primary bool) (*Image, error) {
	images, err := m.Images(ctx)
	if err != nil {
		return nil, err
	}
	for i := range images {
		if images[i].Primary == primary {
			return &images[i], nil
		}
	}
	return nil, nil
}

// IsPrimary reports whether this array holds the primary side.
func (m *mirrorView) IsPrimary(ctx context.Context) (bool, error) {
	p, err := m.Properties(ctx)
	if err != nil {
		return false, err
	}
	return p.Get(fieldRemoteStatus) == remoteMirrored, nil
}

// resolveImage defaults an empty id to the secondary image.
func (m *mirrorView) resolveImage(ctx context.Context, id string) (Image, error) {
	if strings.TrimSpace(id) != "" {
		return m.GetImage(ctx, id)
	}
	img, err := m.SecondaryImage(ctx)
	if err != nil {
		return Image{}, err
	}
	if img == nil {
		return Image{}, apierrors.New(apierrors.KindMirrorImageNotFound, "no secondary image exists for mirror view %s", m.name)
	}
	return *img, nil
}

// AddImage adds the LUN lunID on the array at spIP as secondary image.
func (m *mirrorView) AddImage(ctx context.Context, spIP string, lunID int, opts ImageOptions) error {
	if opts.RecoveryPolicy == "" {
		opts.RecoveryPolicy = RecoveryAuto
	}
	if opts.SyncRate == "" {
		opts.SyncRate = SyncRateHigh
	}
	_, err := m.c.mirror(ctx, m.mode, "-addimage",
		"-name", m.name,
		"-arrayhost", spIP,
		"-lun", strconv.Itoa(lunID),
		"-recoverypolicy", string(opts.RecoveryPolicy),
		"-syncrate", string(opts.SyncRate),
	)
	m.Invalidate()
	if err != nil {
		return fmt.Errorf("failed to add image to mirror view %s: %w", m.name, err)
	}
	m.logger().WithFields(logrus.Fields{"array": spIP, "lun": lunID}).Info("added mirror image")
	return nil
}

// RemoveImage removes image id, or the secondary image when id is empty.
func (m *mirrorView) RemoveImage(ctx context.Context, id string) error {
	return m.imageCommand(ctx, "-removeimage", id, nil)
}

// FractureImage stops replication to image id (default secondary).
func (m *mirrorView) FractureImage(ctx context.Context, id string) error {
	return m.imageCommand(ctx, "-fractureimage", id, nil)
}

// SyncImage resynchronizes image id (default secondary). It refuses an
// image that is already synchronizing.
func (m *mirrorView) SyncImage(ctx context.Context, id string) error {
	return m.imageCommand(ctx, "-syncimage", id, func(img Image) error {
		return status.CanSyncImage(img.State)
	})
}

func (m *mirrorView) promote(ctx context.Context, id string, force bool, extra ...string) error {
	return m.imageCommand(ctx, "-promoteimage", id, func(img Image) error {
		return status.CanPromoteImage(img.State, force)
	}, extra...)
}

// imageCommand reads fresh state, resolves the image, applies guard and
// runs op against the image UID.
func (m *mirrorView) imageCommand(ctx context.Context, op, id string, guard func(Image) error, extra ...string) error {
	m.Invalidate()
	img, err := m.resolveImage(ctx, id)
	if err != nil {
		return err
	}
	if guard != nil {
		if err := guard(img); err != nil {
			return err
		}
	}
	args := append([]string{op, "-name", m.name, "-imageuid", img.UID}, extra...)
	args = append(args, "-o")
	_, err = m.c.mirror(ctx, m.mode, args...)
	m.Invalidate()
	if err != nil {
		return fmt.Errorf("failed to %s on mirror view %s: %w", strings.TrimPrefix(op, "-"), m.name, err)
	}
	m.logger().WithFields(logrus.Fields{"image": img.UID, "op": strings.TrimPrefix(op, "-")}).Info("mirror image updated")
	return nil
}

// Delete destroys the mirror view. With force the secondary image is
// removed first.
func (m *mirrorView) Delete(ctx context.Context, force bool) error {
	if force {
		m.Invalidate()
		img, err := m.SecondaryImage(ctx)
		if err != nil {
			return err
		}
		if img != nil {
			if err := m.RemoveImage(ctx, img.UID); err != nil {
				return err
			}
		}
	}
	_, err := m.c.mirror(ctx, m.mode, "-destroy", "-name", m.name, "-o")
	m.Invalidate()
	if err != nil {
		return fmt.Errorf("failed to delete mirror view %s: %w", m.name, err)
	}
	m.logger().Info("deleted mirror view")
	return nil
}

// MirrorView is a synchronous MirrorView.
type MirrorView struct {
	mirrorView
}

// PromoteImage promotes image id (default secondary). Unless force is
// set the image must be synchronized or consistent.
func (m *MirrorView) PromoteImage(ctx context.Context, id string, force bool) error {
	return m.promote(ctx, id, force)
}

// MirrorViewAsync is an asynchronous MirrorView.
type MirrorViewAsync struct {
	mirrorView
}

// PromoteOptions tunes an asynchronous promote.
type PromoteOptions struct {
	Type  PromoteType
	Force bool
}

// PromoteImage promotes image id (default secondary).
func (m *MirrorViewAsync) PromoteImage(ctx context.Context, id string, opts PromoteOptions) error {
	var extra []string
	if opts.Type != "" {
		extra = []string{"-type", string(opts.Type)}
	}
	force := opts.Force || opts.Type == PromoteOutOfSync
	return m.promote(ctx, id, force, extra...)
}

// MirrorView returns a handle; nothing is read until it is used.
func (c *Client) MirrorView(name string) *MirrorView {
	return &MirrorView{mirrorView{c: c, mode: ModeSync, name: name}}
}

// MirrorViewAsync returns a handle; nothing is read until it is used.
func (c *Client) MirrorViewAsync(name string) *MirrorViewAsync {
	return &MirrorViewAsync{mirrorView{c: c, mode: ModeAsync, name: name}}
}

// CreateMirrorView creates a synchronous mirror of lunID.
func (c *Client) CreateMirrorView(ctx context.Context, name string, lunID int, useWriteIntentLog bool) (*MirrorView, error) {
	if err := validName("mirror view", name); err != nil {
		return nil, err
	}
	args := []string{"-create", "-name", name, "-lun", strconv.Itoa(lunID)}
	if useWriteIntentLog {
		args = append(args, "-usewriteintentlog")
	}
	args = append(args, "-o")
	if _, err := c.mirror(ctx, ModeSync, args...); err != nil {
		return nil, fmt.Errorf("failed to create mirror view %s: %w", name, err)
	}
	c.log.WithFields(logrus.Fields{"mirror": name, "lun": lunID}).Info("created mirror view")
	return c.MirrorView(name), nil
}

// CreateMirrorViewAsync creates an asynchronous mirror of lunID.
func (c *Client) CreateMirrorViewAsync(ctx context.Context, name string, lunID int) (*MirrorViewAsync, error) {
	if err := validName("mirror view", name); err != nil {
		return nil, err
	}
	if _, err := c.mirror(ctx, ModeAsync, "-create", "-name", name, "-lun", strconv.Itoa(lunID), "-o"); err != nil {
		return nil, fmt.Errorf("failed to create mirror view %s: %w", name, err)
	}
	c.log.WithFields(logrus.Fields{"mirror": name, "lun": lunID, "mode": ModeAsync.String()}).Info("created mirror view")
	return c.MirrorViewAsync(name), nil
}

// ListFilter narrows a mirror view listing. A mirror matches when its
// primary image sits on SrcLUNWWN or its secondary on TgtLUNWWN. An
// empty filter matches every mirror.
type ListFilter struct {
	SrcLUNWWN string
	TgtLUNWWN string
}

func (f ListFilter) match(images []Image) bool {
	if f.SrcLUNWWN == "" && f.TgtLUNWWN == "" {
		return true
	}
	for _, img := range images {
		if img.Primary && f.SrcLUNWWN != "" && strings.EqualFold(img.LogicalUnitUID, f.SrcLUNWWN) {
			return true
		}
		if !img.Primary && f.TgtLUNWWN != "" && strings.EqualFold(img.LogicalUnitUID, f.TgtLUNWWN) {
			return true
		}
	}
	return false
}

func (c *Client) listMirrors(ctx context.Context, mode Mode, filter ListFilter) ([]mirrorView, error) {
	out, err := c.mirror(ctx, mode, "-list")
	if err != nil {
		return nil, err
	}
	var views []mirrorView
	for _, e := range naviseccli.ParseEntries(out, fieldMirrorName, fieldImageUID) {
		mv := mirrorView{c: c, mode: mode, name: e.Get(fieldMirrorName), entry: &e}
		images, _ := mv.Images(ctx)
		if filter.match(images) {
			views = append(views, mv)
		}
	}
	return views, nil
}

// ListMirrorViews lists synchronous mirror views matching filter.
func (c *Client) ListMirrorViews(ctx context.Context, filter ListFilter) ([]*MirrorView, error) {
	views, err := c.listMirrors(ctx, ModeSync, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*MirrorView, 0, len(views))
	for _, v := range views {
		out = append(out, &MirrorView{v})
	}
	return out, nil
}

// ListMirrorViewsAsync lists asynchronous mirror views matching filter.
func (c *Client) ListMirrorViewsAsync(ctx context.Context, filter ListFilter) ([]*MirrorViewAsync, error) {
	views, err := c.listMirrors(ctx, ModeAsync, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*MirrorViewAsync, 0, len(views))
	for _, v := range views {
		out = append(out, &MirrorViewAsync{v})
	}
	return out, nil
}
