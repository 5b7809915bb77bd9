// Package n64 holds the small set of N64 RDP types the texture cache needs
// to describe an upload, without attempting to model the RDP itself (that
// belongs to the host emulator, an external collaborator).
package n64

// Fmt is the RDP's color format field (part of a tile descriptor).
type Fmt uint8

const (
	FmtRGBA Fmt = iota
	FmtYUV
	FmtCI
	FmtIA
	FmtI
)

// Siz is the RDP's per-pixel size class.
type Siz uint8

const (
	Siz4b Siz = iota
	Siz8b
	Siz16b
	Siz32b
)

// LoadTile carries the decode parameters the RDP extracted from the display
// list for one tile: its color format and size class, the TMEM line stride,
// the TMEM base address, and (for color-indexed formats) the palette/TLUT
// selector. The RDP hardware itself, and the process that produces a
// LoadTile from a display list, are both external collaborators; this type
// only needs to be a plain data carrier the cache can pass through to the
// GPU decode step unchanged.
type LoadTile struct {
	Fmt    Fmt
	Siz    Siz
	Line   uint32 // TMEM line stride, in 64-bit words
	Tmem   uint32 // TMEM base address, in 64-bit words
	Tlut   uint32 // TLUT base address/mode selector, meaningful only for FmtCI
	Palette uint32
}
