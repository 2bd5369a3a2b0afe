package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/animation"
	"github.com/Faultbox/railrush/pkg/formats"
	"github.com/Faultbox/railrush/pkg/math"
)

// AnimationLoader loads .anim files. Animation files are large, so the
// decrypt runs on the worker pool.
type AnimationLoader struct{}

func (AnimationLoader) Name() string         { return NameAnim }
func (AnimationLoader) Extensions() []string { return []string{"anim"} }

func (AnimationLoader) Load(ctx context.Context, lc *assets.LoadContext, data []byte) (any, error) {
	doc, err := decodeDocument(ctx, lc, data, formats.ParseAnimation, true)
	if err != nil {
		return nil, err
	}

	clip, err := buildClip(doc)
	if err != nil {
		return nil, assets.ConvertError(err)
	}
	lc.Logger().Debug("animation converted",
		zap.Float32("duration", doc.Duration),
		zap.Int("curves", len(doc.Curves)))
	return clip, nil
}

func buildClip(doc *formats.SerializableAnimation) (*animation.Clip, error) {
	clip := animation.NewClip(doc.Duration)

	for _, c := range doc.Curves {
		id := animation.TargetIDFromName(c.Bone)

		var (
			tTimes, rTimes, sTimes []float32
			translations, scales   []math.Vec3
			rotations              []math.Quat
		)
		for i, kf := range c.Keyframes {
			ts := c.Timestamps[i]
			if kf.Translation != nil {
				tTimes = append(tTimes, ts)
				translations = append(translations, kf.Translation.Vec3())
			}
			if kf.Rotation != nil {
				rTimes = append(rTimes, ts)
				rotations = append(rotations, kf.Rotation.Quat())
			}
			if kf.Scale != nil {
				sTimes = append(sTimes, ts)
				scales = append(scales, kf.Scale.Vec3())
			}
		}

		if len(tTimes) > 0 {
			curve, err := animation.NewUnevenCurve(tTimes, translations, animation.Vec3Lerp)
			if err != nil {
				return nil, fmt.Errorf("bone %s translation: %w", c.Bone, err)
			}
			clip.SetTranslation(id, curve)
		}
		if len(rTimes) > 0 {
			curve, err := animation.NewUnevenCurve(rTimes, rotations, animation.QuatSlerp)
			if err != nil {
				return nil, fmt.Errorf("bone %s rotation: %w", c.Bone, err)
			}
			clip.SetRotation(id, curve)
		}
		if len(sTimes) > 0 {
			curve, err := animation.NewUnevenCurve(sTimes, scales, animation.Vec3Lerp)
			if err != nil {
				return nil, fmt.Errorf("bone %s scale: %w", c.Bone, err)
			}
			clip.SetScale(id, curve)
		}
	}
	return clip, nil
}
