package render

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Ken Burns motion for still backgrounds
// ---------------------------------------------------------------------------

// Motion is a pan/zoom effect applied to a still image background.
type Motion string

const (
	MotionNone           Motion = ""
	MotionZoomIn         Motion = "zoom_in"
	MotionZoomOut        Motion = "zoom_out"
	MotionPanDown        Motion = "pan_down"
	MotionPanUp          Motion = "pan_up"
	MotionPanLeft        Motion = "pan_left"
	MotionPanRight       Motion = "pan_right"
	MotionZoomInPanUp    Motion = "zoom_in_pan_up"
	MotionZoomInPanDown  Motion = "zoom_in_pan_down"
	MotionZoomInPanLeft  Motion = "zoom_in_pan_left"
	MotionZoomInPanRight Motion = "zoom_in_pan_right"
)

var allMotions = []Motion{
	MotionZoomIn,
	MotionZoomOut,
	MotionPanDown,
	MotionPanUp,
	MotionPanLeft,
	MotionPanRight,
	MotionZoomInPanUp,
	MotionZoomInPanDown,
	MotionZoomInPanLeft,
	MotionZoomInPanRight,
}

// MotionForScene picks an effect from the scene number so re-renders of the same
// script look identical.
func MotionForScene(sceneNumber int) Motion {
	i := sceneNumber % len(allMotions)
	if i < 0 {
		i += len(allMotions)
	}
	return allMotions[i]
}

const (
	// subtle zoom oscillation layered over the primary motion, about one breath every 2s at 30fps
	breathAmplitude = 0.03
	breathFrequency = 0.12
)

// motionFilter builds the zoompan stage for a still image that is already cropped
// to w x h. Output is exactly frames frames at fps.
func motionFilter(m Motion, w, h, fps int, duration float64) string {
	frames := int(math.Ceil(duration*float64(fps) - 1e-9))
	if frames < 1 {
		frames = 1
	}

	breath := fmt.Sprintf("%.3f*sin(on*%.3f)", breathAmplitude, breathFrequency)
	const (
		cx = "iw/2-(iw/zoom/2)"
		cy = "ih/2-(ih/zoom/2)"
	)

	var z, x, y string
	switch m {
	case MotionZoomOut:
		z = fmt.Sprintf("1.5-0.5*on/%d+%s", frames, breath)
		x, y = cx, cy
	case MotionPanDown:
		z = fmt.Sprintf("1.3+%s", breath)
		x, y = cx, fmt.Sprintf("(ih-ih/zoom)*on/%d", frames)
	case MotionPanUp:
		z = fmt.Sprintf("1.3+%s", breath)
		x, y = cx, fmt.Sprintf("(ih-ih/zoom)*(1-on/%d)", frames)
	case MotionPanRight:
		z = fmt.Sprintf("1.3+%s", breath)
		x, y = fmt.Sprintf("(iw-iw/zoom)*on/%d", frames), cy
	case MotionPanLeft:
		z = fmt.Sprintf("1.3+%s", breath)
		x, y = fmt.Sprintf("(iw-iw/zoom)*(1-on/%d)", frames), cy
	case MotionZoomInPanUp:
		z = fmt.Sprintf("1.0+0.4*on/%d+%s", frames, breath)
		x, y = cx, fmt.Sprintf("max(0,(ih-ih/zoom)*(1-on/%d))", frames)
	case MotionZoomInPanDown:
		z = fmt.Sprintf("1.0+0.4*on/%d+%s", frames, breath)
		x, y = cx, fmt.Sprintf("min(ih-ih/zoom,(ih-ih/zoom)*on/%d)", frames)
	case MotionZoomInPanRight:
		z = fmt.Sprintf("1.0+0.4*on/%d+%s", frames, breath)
		x, y = fmt.Sprintf("min(iw-iw/zoom,(iw-iw/zoom)*on/%d)", frames), cy
	case MotionZoomInPanLeft:
		z = fmt.Sprintf("1.0+0.4*on/%d+%s", frames, breath)
		x, y = fmt.Sprintf("max(0,(iw-iw/zoom)*(1-on/%d))", frames), cy
	default:
		// zoom_in and anything unknown
		z = fmt.Sprintf("1.0+0.5*on/%d+%s", frames, breath)
		x, y = cx, cy
	}

	return fmt.Sprintf("zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d", z, x, y, frames, w, h, fps)
}
