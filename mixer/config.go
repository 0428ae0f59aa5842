package mixer

import (
	"github.com/xaionaro-go/avmixer/tween"
	"github.com/xaionaro-go/avmixer/videoformat"
)

type Config struct {
	// FormatDesc is the output video format the device composites
	// into.
	FormatDesc videoformat.Desc

	// ParentLabel prefixes the component label in logs and
	// diagnostics ("<parent>/mixer").
	ParentLabel string

	// Easings resolves the named easing curves of transform
	// animations; when nil a registry with the default curve set is
	// used.
	Easings *tween.Registry
}
