package scene

// Animation is a named clip of node channels.
type Animation struct {
	Name           string
	Duration       float32
	TicksPerSecond int32

	// Model is the index of the model the clip was authored for.
	Model int

	// Euler marks clips whose rotations were authored as Euler angles.
	// Their rotation keys are renormalized as channels are added.
	Euler bool

	channels []*Channel
	byName   map[string]int
}

// NewAnimation returns an empty clip.
func NewAnimation(name string, duration float32, ticksPerSecond int32) *Animation {
	return &Animation{
		Name:           name,
		Duration:       duration,
		TicksPerSecond: ticksPerSecond,
		byName:         make(map[string]int),
	}
}

// AddChannel adds ch to the clip. A channel with no keys is rejected and
// AddChannel returns false. A second channel for the same node is merged
// into the first.
func (a *Animation) AddChannel(ch *Channel) bool {
	if ch.Empty() {
		return false
	}
	if a.byName == nil {
		a.byName = make(map[string]int)
	}
	if i, ok := a.byName[ch.NodeName]; ok {
		a.channels[i].Merge(ch)
		if a.Euler {
			a.channels[i].RenormalizeEuler()
		}
		return true
	}
	if a.Euler {
		ch.RenormalizeEuler()
	}
	a.byName[ch.NodeName] = len(a.channels)
	a.channels = append(a.channels, ch)
	return true
}

// Channel returns the channel for a node name.
func (a *Animation) Channel(name string) (*Channel, bool) {
	i, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	return a.channels[i], true
}

// Channels returns every channel in insertion order.
func (a *Animation) Channels() []*Channel { return a.channels }

// Bind resolves every channel's node name against the skeletons in order;
// the first skeleton containing the name wins. Unresolved channels are left
// with BoneID -1.
func (a *Animation) Bind(skeletons ...*Skeleton) {
	for _, ch := range a.channels {
		ch.BoneID = -1
		for _, sk := range skeletons {
			if id, ok := sk.Bone(ch.NodeName); ok {
				ch.BoneID = id
				break
			}
		}
	}
}

// Writable returns the bound, non-empty channels in insertion order. Its
// length is the channel count written to the output.
func (a *Animation) Writable() []*Channel {
	out := make([]*Channel, 0, len(a.channels))
	for _, ch := range a.channels {
		if ch.Bound() && !ch.Empty() {
			out = append(out, ch)
		}
	}
	return out
}

// Unbound returns the node names of channels that did not resolve to a bone.
func (a *Animation) Unbound() []string {
	var names []string
	for _, ch := range a.channels {
		if !ch.Bound() {
			names = append(names, ch.NodeName)
		}
	}
	return names
}
