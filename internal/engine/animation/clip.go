package animation

import (
	"encoding/hex"
	"hash/fnv"
	"sort"

	"github.com/Faultbox/railrush/pkg/math"
)

// TargetID names an animated entity independently of the entity itself.
type TargetID [16]byte

// TargetIDFromName hashes a bone or node name.
func TargetIDFromName(name string) TargetID {
	h := fnv.New128a()
	h.Write([]byte(name))
	var id TargetID
	copy(id[:], h.Sum(nil))
	return id
}

func (id TargetID) String() string {
	return hex.EncodeToString(id[:])
}

// Curves are the transform channels of one target. Nil channels are not animated.
type Curves struct {
	Translation *UnevenCurve[math.Vec3]
	Rotation    *UnevenCurve[math.Quat]
	Scale       *UnevenCurve[math.Vec3]
}

// Empty reports whether no channel is set.
func (c *Curves) Empty() bool {
	return c.Translation == nil && c.Rotation == nil && c.Scale == nil
}

// Clip is a set of curves keyed by target.
type Clip struct {
	Duration float32
	curves   map[TargetID]*Curves
}

// NewClip creates an empty clip.
func NewClip(duration float32) *Clip {
	return &Clip{Duration: duration, curves: make(map[TargetID]*Curves)}
}

func (c *Clip) entry(id TargetID) *Curves {
	cv, ok := c.curves[id]
	if !ok {
		cv = &Curves{}
		c.curves[id] = cv
	}
	return cv
}

// SetTranslation sets the translation channel of id.
func (c *Clip) SetTranslation(id TargetID, curve *UnevenCurve[math.Vec3]) {
	c.entry(id).Translation = curve
}

// SetRotation sets the rotation channel of id.
func (c *Clip) SetRotation(id TargetID, curve *UnevenCurve[math.Quat]) {
	c.entry(id).Rotation = curve
}

// SetScale sets the scale channel of id.
func (c *Clip) SetScale(id TargetID, curve *UnevenCurve[math.Vec3]) {
	c.entry(id).Scale = curve
}

// Curves returns the channels of id.
func (c *Clip) Curves(id TargetID) (*Curves, bool) {
	cv, ok := c.curves[id]
	return cv, ok
}

// Targets returns every animated target id in byte order.
func (c *Clip) Targets() []TargetID {
	out := make([]TargetID, 0, len(c.curves))
	for id := range c.curves {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out
}

// Vec3Lerp interpolates translations and scales.
func Vec3Lerp(a, b math.Vec3, t float32) math.Vec3 {
	return a.Lerp(b, t)
}

// QuatSlerp interpolates rotations.
func QuatSlerp(a, b math.Quat, t float32) math.Quat {
	return a.Slerp(b, t)
}
