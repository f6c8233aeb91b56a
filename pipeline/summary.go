package pipeline

import (
	"github.com/LdDl/pitch-tracker/mot"
	"github.com/LdDl/pitch-tracker/registration"
)

// TrackSummary describes single track over the whole session
type TrackSummary struct {
	ID           int       `json:"id"`
	Color        mot.Color `json:"color"`
	Observations int       `json:"observations"`
	FirstFrame   int       `json:"first_frame"`
	LastFrame    int       `json:"last_frame"`
	// Path length in plane units
	Distance float64 `json:"distance"`
	// Path length in metres. Zero when pitch size is unknown
	DistanceMetres float64 `json:"distance_metres"`
}

// Summaries computes summary of every track ordered by identity
func Summaries(store *mot.Store, plane registration.OutputPlane) []TrackSummary {
	tracks := store.Tracks()
	summaries := make([]TrackSummary, 0, len(tracks))
	for _, track := range tracks {
		points := track.Points()
		frames := track.Frames()
		summary := TrackSummary{
			ID:           track.ID(),
			Color:        track.Color(),
			Observations: len(points),
			FirstFrame:   frames[0],
			LastFrame:    frames[len(frames)-1],
		}
		for i := 1; i < len(points); i++ {
			summary.Distance += points[i-1].DistanceTo(points[i])
			from, okFrom := plane.ToPitch(points[i-1])
			to, okTo := plane.ToPitch(points[i])
			if okFrom && okTo {
				summary.DistanceMetres += from.DistanceTo(to)
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
