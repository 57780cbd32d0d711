package scene

import (
	"fmt"
	"sort"

	"github.com/Faultbox/tmdl/pkg/math"
)

// KeyTolerance is the time distance under which two keys are combined
// instead of stored separately.
const KeyTolerance float32 = 0.01

// Key is a value at a point in time.
type Key[T any] struct {
	Time  float32
	Value T
}

// Combine merges an incoming key value into an existing one.
type Combine[T any] func(existing, incoming T) T

// MergeAdd adds vectors component-wise.
func MergeAdd(existing, incoming math.Vec3) math.Vec3 {
	return existing.Add(incoming)
}

// MergeAddRotation adds quaternions component-wise. Used when partial
// single-component rotation curves are folded into one key.
func MergeAddRotation(existing, incoming math.Vec4) math.Vec4 {
	return existing.Add(incoming)
}

// MergeMultiply composes rotations as incoming applied after existing.
func MergeMultiply(existing, incoming math.Vec4) math.Vec4 {
	return incoming.Mul(existing)
}

// insertOrCombine merges k into the time-sorted keys. An existing key closer
// than KeyTolerance absorbs it through combine; otherwise k is inserted after
// every key with a time <= k.Time.
func insertOrCombine[T any](keys []Key[T], k Key[T], combine Combine[T]) []Key[T] {
	for i := range keys {
		d := keys[i].Time - k.Time
		if d < KeyTolerance && d > -KeyTolerance {
			keys[i].Value = combine(keys[i].Value, k.Value)
			return keys
		}
	}
	pos := sort.Search(len(keys), func(i int) bool { return keys[i].Time > k.Time })
	keys = append(keys, Key[T]{})
	copy(keys[pos+1:], keys[pos:])
	keys[pos] = k
	return keys
}

// Track selects one of a channel's three key lists.
type Track uint8

const (
	TrackPosition Track = iota
	TrackRotation
	TrackScale
)

// CurveTarget identifies the track and component a single-component curve
// animates. Values are the byte offsets of the field in the bone's
// animation data block.
type CurveTarget uint8

const (
	CurveScaleX    CurveTarget = 0x04
	CurveScaleY    CurveTarget = 0x08
	CurveScaleZ    CurveTarget = 0x0C
	CurvePositionX CurveTarget = 0x10
	CurvePositionY CurveTarget = 0x14
	CurvePositionZ CurveTarget = 0x18
	CurveRotationX CurveTarget = 0x20
	CurveRotationY CurveTarget = 0x24
	CurveRotationZ CurveTarget = 0x28
	CurveRotationW CurveTarget = 0x2C
)

// Split returns the track and component index for the target.
func (c CurveTarget) Split() (Track, int, bool) {
	switch {
	case c >= CurveScaleX && c <= CurveScaleZ:
		return TrackScale, int(c-CurveScaleX) / 4, true
	case c >= CurvePositionX && c <= CurvePositionZ:
		return TrackPosition, int(c-CurvePositionX) / 4, true
	case c >= CurveRotationX && c <= CurveRotationW:
		return TrackRotation, int(c-CurveRotationX) / 4, true
	}
	return 0, 0, false
}

// Override replaces whole tracks with a single default key at t=0.
type Override uint8

const (
	OverrideScaleOne Override = 1 << iota
	OverrideRotateZero
	OverrideTranslateZero

	OverrideIdentity = OverrideScaleOne | OverrideRotateZero | OverrideTranslateZero
)

// Channel holds the keyframes of one node within an animation.
type Channel struct {
	NodeName string

	// BoneID is set by Animation.Bind; -1 while unbound.
	BoneID int32

	Positions []Key[math.Vec3]
	Rotations []Key[math.Vec4]
	Scales    []Key[math.Vec3]
}

// NewChannel returns an unbound, empty channel.
func NewChannel(nodeName string) *Channel {
	return &Channel{NodeName: nodeName, BoneID: -1}
}

// AddPosition merges a position key, adding values within tolerance.
func (c *Channel) AddPosition(k Key[math.Vec3]) {
	c.Positions = insertOrCombine(c.Positions, k, MergeAdd)
}

// AddRotation merges a rotation key, adding values within tolerance.
func (c *Channel) AddRotation(k Key[math.Vec4]) {
	c.Rotations = insertOrCombine(c.Rotations, k, MergeAddRotation)
}

// AddRotationWith merges a rotation key with an explicit combine function.
func (c *Channel) AddRotationWith(k Key[math.Vec4], combine Combine[math.Vec4]) {
	c.Rotations = insertOrCombine(c.Rotations, k, combine)
}

// AddScale merges a scale key, adding values within tolerance.
func (c *Channel) AddScale(k Key[math.Vec3]) {
	c.Scales = insertOrCombine(c.Scales, k, MergeAdd)
}

// AddCurve folds a single-component curve into the channel: each frame
// becomes a key with only the target component set, merged additively.
// Values are already decoded (raw * scale + offset).
func (c *Channel) AddCurve(target CurveTarget, frames, values []float32) error {
	if len(frames) != len(values) {
		return fmt.Errorf("curve 0x%02X: %d frames but %d values", uint8(target), len(frames), len(values))
	}
	track, comp, ok := target.Split()
	if !ok {
		return fmt.Errorf("curve 0x%02X: unknown target", uint8(target))
	}
	for i, t := range frames {
		switch track {
		case TrackPosition:
			c.AddPosition(Key[math.Vec3]{t, math.Vec3{}.WithComponent(comp, values[i])})
		case TrackScale:
			c.AddScale(Key[math.Vec3]{t, math.Vec3{}.WithComponent(comp, values[i])})
		case TrackRotation:
			c.AddRotation(Key[math.Vec4]{t, math.Vec4{}.WithComponent(comp, values[i])})
		}
	}
	return nil
}

// ApplyOverrides clears the flagged tracks and leaves one default key at t=0
// in each: unit scale, zero translation, identity rotation.
func (c *Channel) ApplyOverrides(o Override) {
	if o&OverrideScaleOne != 0 {
		c.Scales = []Key[math.Vec3]{{0, math.Vec3One()}}
	}
	if o&OverrideTranslateZero != 0 {
		c.Positions = []Key[math.Vec3]{{0, math.Vec3{}}}
	}
	if o&OverrideRotateZero != 0 {
		c.Rotations = []Key[math.Vec4]{{0, math.QuatIdentity()}}
	}
}

// RenormalizeEuler passes every rotation key through Euler angles and back.
func (c *Channel) RenormalizeEuler() {
	for i := range c.Rotations {
		c.Rotations[i].Value = c.Rotations[i].Value.RenormalizeEuler()
	}
}

// Merge folds other's keys into c.
func (c *Channel) Merge(other *Channel) {
	for _, k := range other.Positions {
		c.AddPosition(k)
	}
	for _, k := range other.Rotations {
		c.AddRotation(k)
	}
	for _, k := range other.Scales {
		c.AddScale(k)
	}
}

// Empty reports whether the channel has no keys at all.
func (c *Channel) Empty() bool {
	return len(c.Positions) == 0 && len(c.Rotations) == 0 && len(c.Scales) == 0
}

// Bound reports whether the channel resolved to a bone.
func (c *Channel) Bound() bool { return c.BoneID >= 0 }

// KeyCount returns the total number of keys across all tracks.
func (c *Channel) KeyCount() int {
	return len(c.Positions) + len(c.Rotations) + len(c.Scales)
}
