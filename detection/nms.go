package detection

import (
	"image"

	"gocv.io/x/gocv"
)

// NMS suppresses overlapping boxes keeping the most confident ones.
// Boxes scoring below scoreThreshold are dropped, boxes overlapping a kept one with IoU above
// iouThreshold are suppressed. Survivors are returned in decreasing confidence order.
func NMS(detections []Detection, scoreThreshold, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return nil
	}
	bboxes := make([]image.Rectangle, len(detections))
	scores := make([]float32, len(detections))
	for i, d := range detections {
		bboxes[i] = d.Box
		scores[i] = float32(d.Confidence)
	}
	indices := gocv.NMSBoxes(bboxes, scores, scoreThreshold, iouThreshold)
	kept := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(detections) {
			continue
		}
		kept = append(kept, detections[idx])
	}
	return kept
}
