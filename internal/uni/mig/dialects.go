package mig

import (
	"errors"
	"fmt"

	"github.com/meterdock/ediel-core/internal/uni"
)

// ErrUnsupportedVariant indicates the filename carried an export code
// outside the known 91..96 set.
var ErrUnsupportedVariant = errors.New("mig: unsupported export variant")

// Kind classifies how a variant's body rows decode.
type Kind int

const (
	// KindInterval marks the packed interval exports (91, 92, 93).
	KindInterval Kind = iota

	// KindRegister marks the heterogeneous register export (94).
	KindRegister

	// KindFlat marks the one-reading-per-row exports (95, 96).
	KindFlat
)

func (k Kind) String() string {
	switch k {
	case KindInterval:
		return "interval"
	case KindRegister:
		return "register"
	case KindFlat:
		return "flat"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Dialect is the resolved body layout of one MIG variant. Resolution
// happens once, at construction; the value is immutable afterwards.
type Dialect struct {
	Variant int
	Kind    Kind
}

// Physical layout constants of the packed interval rows. The leading
// metadata block and the distance between a value and its quality code
// are fixed for this file family; they are observed constants of the
// exchange format, not declared anywhere in the file.
const (
	intervalMetaColumns = 9
	qualityBlockOffset  = 100
	intervalColumn      = 209
	descriptionColumn   = 210
	cityEANColumn       = 211
)

var dialects = map[int]Dialect{
	91: {Variant: 91, Kind: KindInterval},
	92: {Variant: 92, Kind: KindInterval},
	93: {Variant: 93, Kind: KindInterval},
	94: {Variant: 94, Kind: KindRegister},
	95: {Variant: 95, Kind: KindFlat},
	96: {Variant: 96, Kind: KindFlat},
}

// ResolveDialect maps a two-digit export code to its Dialect.
func ResolveDialect(variant int) (Dialect, error) {
	d, ok := dialects[variant]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %d", ErrUnsupportedVariant, variant)
	}
	return d, nil
}

// ResolveFilename resolves the Dialect from an exchange file name.
func ResolveFilename(name string) (Dialect, error) {
	m, ok := uni.MatchFilename(name)
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q does not follow the exchange naming convention", ErrUnsupportedVariant, name)
	}
	return ResolveDialect(m.Variant)
}
