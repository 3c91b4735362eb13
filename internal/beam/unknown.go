package beam

import (
	"fmt"
	"strconv"
)

// Kind distinguishes the two unknown families.
type Kind uint8

const (
	KindBeam Kind = iota // beam pixel gain
	KindFlux             // per-source flux, joint mode only
)

func (k Kind) String() string {
	switch k {
	case KindBeam:
		return "beam"
	case KindFlux:
		return "flux"
	default:
		return "unknown"
	}
}

// Unknown identifies one solver unknown: a beam pixel or a source flux.
type Unknown struct {
	Kind  Kind
	Index int
}

// BeamPixel returns the unknown for a flattened beam pixel.
func BeamPixel(pixel int) Unknown {
	return Unknown{Kind: KindBeam, Index: pixel}
}

// SourceFlux returns the flux unknown of source src.
func SourceFlux(src int) Unknown {
	return Unknown{Kind: KindFlux, Index: src}
}

// Name tags used in the textual solution mapping.
const (
	beamTag = 'b'
	fluxTag = 'I'
)

// String returns "b<pixel>" or "I<source>".
func (u Unknown) String() string {
	switch u.Kind {
	case KindBeam:
		return string(beamTag) + strconv.Itoa(u.Index)
	case KindFlux:
		return string(fluxTag) + strconv.Itoa(u.Index)
	default:
		return "?" + strconv.Itoa(u.Index)
	}
}

// ParseUnknown parses a name produced by Unknown.String.
func ParseUnknown(name string) (Unknown, error) {
	if len(name) < 2 {
		return Unknown{}, fmt.Errorf("invalid unknown name %q", name)
	}
	idx, err := strconv.Atoi(name[1:])
	if err != nil || idx < 0 {
		return Unknown{}, fmt.Errorf("invalid unknown name %q", name)
	}
	switch name[0] {
	case beamTag:
		return BeamPixel(idx), nil
	case fluxTag:
		return SourceFlux(idx), nil
	}
	return Unknown{}, fmt.Errorf("invalid unknown name %q", name)
}

// ConstKey names the bilinear weight of one pixel for one (source, time)
// sample seen under one orientation. The weight depends only on geometry,
// so a key always maps to the same value however often it is registered.
type ConstKey struct {
	Pixel  int
	Source int
	Time   int
	// Orientation numbers the (polarization, transform) pairs in the order a
	// builder first meets them.
	Orientation int
}

// String returns "w<pixel>_s<source>_t<time>", suffixed with "_o<n>" for
// orientations after the first.
func (k ConstKey) String() string {
	if k.Orientation == 0 {
		return fmt.Sprintf("w%d_s%d_t%d", k.Pixel, k.Source, k.Time)
	}
	return fmt.Sprintf("w%d_s%d_t%d_o%d", k.Pixel, k.Source, k.Time, k.Orientation)
}
