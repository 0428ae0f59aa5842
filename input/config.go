package input

import (
	"github.com/xaionaro-go/avmixer/types"
	"github.com/xaionaro-go/secret"
)

type Config struct {
	// Loop rewinds the source to the beginning on end-of-stream.
	Loop bool

	// ParentLabel prefixes the component label in logs and in the
	// executor name ("<parent>/input"). The diagnostics graph is
	// supplied by the caller and keeps its own name.
	ParentLabel string

	// AuthKey is appended to the URL when opening the container.
	AuthKey secret.String

	// CustomOptions are passed through to the demux layer.
	CustomOptions types.DictionaryItems
}
