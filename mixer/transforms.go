// transforms.go implements the animatable transform mutation API. Every
// method re-seats a tween on the executor goroutine; the new track's
// source is the old track's current Fetch value (read without advancing
// time), so re-targeting mid-tween never jumps.

package mixer

import (
	"context"

	"github.com/xaionaro-go/avmixer/transform"
	"github.com/xaionaro-go/avmixer/tween"
)

// SetImageTransform animates the root image transform towards dest over
// duration ticks under the named easing curve.
func (d *Device) SetImageTransform(
	ctx context.Context,
	dest transform.Image,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.rootImageTween.Fetch()
		d.rootImageTween = tween.NewNamed(ctx, d.easings, src, dest, duration, curve)
	})
}

// SetLayerImageTransform is the per-layer analog of SetImageTransform.
func (d *Device) SetLayerImageTransform(
	ctx context.Context,
	layerID int,
	dest transform.Image,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.fetchLayerImage(layerID)
		d.imageTable[layerID] = tween.NewNamed(ctx, d.easings, src, dest, duration, curve)
	})
}

// ApplyImageTransform animates the root image transform towards
// fn(current).
func (d *Device) ApplyImageTransform(
	ctx context.Context,
	fn func(transform.Image) transform.Image,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.rootImageTween.Fetch()
		d.rootImageTween = tween.NewNamed(ctx, d.easings, src, fn(src), duration, curve)
	})
}

// ApplyLayerImageTransform is the per-layer analog of
// ApplyImageTransform.
func (d *Device) ApplyLayerImageTransform(
	ctx context.Context,
	layerID int,
	fn func(transform.Image) transform.Image,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.fetchLayerImage(layerID)
		d.imageTable[layerID] = tween.NewNamed(ctx, d.easings, src, fn(src), duration, curve)
	})
}

// ResetImageTransforms animates every layer's image transform and the
// root image transform back to identity.
func (d *Device) ResetImageTransforms(
	ctx context.Context,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		for layerID, track := range d.imageTable {
			d.imageTable[layerID] = tween.NewNamed(
				ctx, d.easings, track.Fetch(), transform.DefaultImage(), duration, curve)
		}
		d.rootImageTween = tween.NewNamed(
			ctx, d.easings, d.rootImageTween.Fetch(), transform.DefaultImage(), duration, curve)
	})
}

// SetAudioTransform animates the root audio transform towards dest over
// duration ticks under the named easing curve.
func (d *Device) SetAudioTransform(
	ctx context.Context,
	dest transform.Audio,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.rootAudioTween.Fetch()
		d.rootAudioTween = tween.NewNamed(ctx, d.easings, src, dest, duration, curve)
	})
}

// SetLayerAudioTransform is the per-layer analog of SetAudioTransform.
func (d *Device) SetLayerAudioTransform(
	ctx context.Context,
	layerID int,
	dest transform.Audio,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.fetchLayerAudio(layerID)
		d.audioTable[layerID] = tween.NewNamed(ctx, d.easings, src, dest, duration, curve)
	})
}

// ApplyAudioTransform animates the root audio transform towards
// fn(current).
func (d *Device) ApplyAudioTransform(
	ctx context.Context,
	fn func(transform.Audio) transform.Audio,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.rootAudioTween.Fetch()
		d.rootAudioTween = tween.NewNamed(ctx, d.easings, src, fn(src), duration, curve)
	})
}

// ApplyLayerAudioTransform is the per-layer analog of
// ApplyAudioTransform.
func (d *Device) ApplyLayerAudioTransform(
	ctx context.Context,
	layerID int,
	fn func(transform.Audio) transform.Audio,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		src := d.fetchLayerAudio(layerID)
		d.audioTable[layerID] = tween.NewNamed(ctx, d.easings, src, fn(src), duration, curve)
	})
}

// ResetAudioTransforms animates every layer's audio transform and the
// root audio transform back to identity.
func (d *Device) ResetAudioTransforms(
	ctx context.Context,
	duration int,
	curve string,
) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		for layerID, track := range d.audioTable {
			d.audioTable[layerID] = tween.NewNamed(
				ctx, d.easings, track.Fetch(), transform.DefaultAudio(), duration, curve)
		}
		d.rootAudioTween = tween.NewNamed(
			ctx, d.easings, d.rootAudioTween.Fetch(), transform.DefaultAudio(), duration, curve)
	})
}

func (d *Device) fetchLayerImage(layerID int) transform.Image {
	if track := d.imageTable[layerID]; track != nil {
		return track.Fetch()
	}
	return transform.DefaultImage()
}

func (d *Device) fetchLayerAudio(layerID int) transform.Audio {
	if track := d.audioTable[layerID]; track != nil {
		return track.Fetch()
	}
	return transform.DefaultAudio()
}
