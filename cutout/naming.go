package cutout

import (
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"
)

const (
	hdPrefix   = "no_bg_"
	stdPrefix  = "std_"
	derivedExt = ".png"
)

// Namer decides the storage name of an uploaded original. Derived names are
// always computed from the stored original's stem.
type Namer interface {
	OriginalName(sanitized string) string
}

// StemNamer keeps the sanitized upload name; uploads sharing a name overwrite
// each other's files.
type StemNamer struct{}

func (StemNamer) OriginalName(sanitized string) string {
	return sanitized
}

// UniqueNamer prefixes each upload with a fresh ksuid so every request gets its
// own artifacts while the original stem stays readable.
type UniqueNamer struct{}

func (UniqueNamer) OriginalName(sanitized string) string {
	return ksuid.New().String() + "_" + sanitized
}

// Stem is name without its final extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// DerivedNames returns the high-fidelity and standard rendition names for an
// original, e.g. "cat.jpg" -> "no_bg_cat.png", "std_cat.png".
func DerivedNames(original string) (hd, std string) {
	stem := Stem(original)
	return hdPrefix + stem + derivedExt, stdPrefix + stem + derivedExt
}
