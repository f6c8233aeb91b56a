// Package detection is the boundary to the object detector: per-frame detections with
// confidence and class label, the confidence/class filter and a gocv DNN YOLO implementation.
package detection

import (
	"fmt"
	"image"

	"github.com/LdDl/pitch-tracker/mot"
	"gocv.io/x/gocv"
)

// Detection is single detector output in pixel space of the frame it came from
type Detection struct {
	// Bounding box
	Box image.Rectangle
	// Center of bounding box. This is the point handed to registration
	Center mot.Point
	// The probability that an object belongs to the class
	Confidence float64
	// Class label, e.g. "person"
	Class string
}

// NewDetection creates detection with center taken from bounding box
func NewDetection(class string, confidence float64, box image.Rectangle) Detection {
	return Detection{
		Box:        box,
		Center:     mot.NewPoint(float64(box.Min.X+box.Max.X)/2.0, float64(box.Min.Y+box.Max.Y)/2.0),
		Confidence: confidence,
		Class:      class,
	}
}

func (d Detection) String() string {
	return fmt.Sprintf("Detection{class: %s, conf: %.5f, center: (%.1f, %.1f)}", d.Class, d.Confidence, d.Center.X, d.Center.Y)
}

// Detector produces detections for a frame
type Detector interface {
	Detect(frame gocv.Mat) ([]Detection, error)
	Close() error
}
