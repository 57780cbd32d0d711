package skin

// MinInfluence is the weight at or below which a per-bone influence is
// ignored by Influences.
const MinInfluence float32 = 0.01

// Influences accumulates per-bone vertex weight lists into four fixed slots
// per vertex. Sources that store skinning per bone (a bone with a list of
// vertex/weight pairs) feed it one pair at a time.
type Influences struct {
	ids     [][4]int32
	weights [][4]float32
}

// NewInfluences prepares slots for vertexCount vertices.
func NewInfluences(vertexCount int) *Influences {
	in := &Influences{
		ids:     make([][4]int32, vertexCount),
		weights: make([][4]float32, vertexCount),
	}
	for i := range in.ids {
		in.ids[i] = [4]int32{-1, -1, -1, -1}
	}
	return in
}

// Add records that bone influences vertex with weight. It returns false when
// the weight is too small, the vertex is out of range or all four slots are
// taken.
func (in *Influences) Add(vertex int, bone int32, weight float32) bool {
	if weight <= MinInfluence || vertex < 0 || vertex >= len(in.ids) {
		return false
	}
	for slot := 0; slot < MaxInfluences; slot++ {
		if in.ids[vertex][slot] == -1 {
			in.ids[vertex][slot] = bone
			in.weights[vertex][slot] = weight
			return true
		}
	}
	return false
}

// Len returns the vertex count.
func (in *Influences) Len() int { return len(in.ids) }

// Shape returns the accumulated data as a four-slot shape.
func (in *Influences) Shape() Shape {
	return Shape{
		Indices:   in.ids,
		Weights:   in.weights,
		SkinCount: MaxInfluences,
	}
}
