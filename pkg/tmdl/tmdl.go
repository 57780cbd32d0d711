// Package tmdl encodes and decodes the TSCN/TMDL binary scene format.
//
// The format is little-endian. Four-byte ASCII tags mark structural
// boundaries, strings are an int32 byte length followed by UTF-8 bytes,
// floats are float32 and every count, index and id is an int32. Per-vertex
// skin data is always four ids and four weights.
package tmdl

import "errors"

// Chunk tags.
const (
	TagScene     = "TSCN"
	TagModel     = "TMDL"
	TagMesh      = "TMSH"
	TagVertices  = "TVTX"
	TagIndices   = "TIDX"
	TagTexture   = "TTEX"
	TagMaterial  = "TMAT"
	TagSkeleton  = "TSKL"
	TagAnimation = "TANM"
)

// Extension is the file extension of written scenes.
const Extension = ".tmdl"

// influences is the fixed per-vertex bone slot count.
const influences = 4

// maxCount bounds every decoded count so corrupt input fails fast.
const maxCount = 1 << 26

// Decoding errors.
var (
	ErrUnexpectedTag = errors.New("unexpected chunk tag")
	ErrBadCount      = errors.New("invalid element count")
)
