package mot

import (
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Store is the trajectory store: every track created during a session keyed by identity.
// Tracks are never removed.
type Store struct {
	tracks map[int]*Track
	// Creation order
	order []int
}

// NewStore creates empty trajectory store
func NewStore() *Store {
	return &Store{
		tracks: make(map[int]*Track),
		order:  make([]int, 0),
	}
}

// Track returns track by its identity
func (store *Store) Track(id int) (*Track, bool) {
	track, ok := store.tracks[id]
	return track, ok
}

// Len returns number of tracks
func (store *Store) Len() int {
	return len(store.tracks)
}

// IDs returns identities in ascending order
func (store *Store) IDs() []int {
	ids := make([]int, 0, len(store.tracks))
	for id := range store.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Tracks returns tracks in ascending identity order
func (store *Store) Tracks() []*Track {
	ids := store.IDs()
	tracks := make([]*Track, len(ids))
	for i, id := range ids {
		tracks[i] = store.tracks[id]
	}
	return tracks
}

func (store *Store) add(track *Track) {
	store.tracks[track.id] = track
	store.order = append(store.order, track.id)
}

// candidates returns last positions of all tracks in creation order
func (store *Store) candidates() []Candidate {
	candidates := make([]Candidate, len(store.order))
	for i, id := range store.order {
		candidates[i] = Candidate{
			ID:       id,
			Position: store.tracks[id].Last(),
		}
	}
	return candidates
}

// maxID returns the biggest identity in use or -1 when store is empty
func (store *Store) maxID() int {
	maxID := -1
	for id := range store.tracks {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// TrackExport is the exported history of single track
type TrackExport struct {
	ID        int     `json:"id"`
	Color     Color   `json:"color"`
	Positions []Point `json:"positions"`
	Frames    []int   `json:"frames"`
	Smoothed  []Point `json:"smoothed"`
}

// Export is an ordered list of identities each mapping to its position sequence and RGB color
type Export struct {
	SessionID uuid.UUID     `json:"session_id"`
	Tracks    []TrackExport `json:"tracks"`
}

// Export builds snapshot of every track ordered by identity
func (store *Store) Export(sessionID uuid.UUID) Export {
	export := Export{
		SessionID: sessionID,
		Tracks:    make([]TrackExport, 0, len(store.tracks)),
	}
	for _, track := range store.Tracks() {
		export.Tracks = append(export.Tracks, ExportTrack(track))
	}
	return export
}

// ExportTrack builds snapshot of single track
func ExportTrack(track *Track) TrackExport {
	return TrackExport{
		ID:        track.id,
		Color:     track.color,
		Positions: track.Points(),
		Frames:    track.Frames(),
		Smoothed:  track.Smoothed(),
	}
}

// LegacyExport is keyed form: {"positions": {"0": [[x, y], ...]}, "colors": {"0": [r, g, b]}}
type LegacyExport struct {
	Positions map[string][][2]float64 `json:"positions"`
	Colors    map[string][3]int       `json:"colors"`
}

// LegacyExport builds keyed export of every track
func (store *Store) LegacyExport() LegacyExport {
	export := LegacyExport{
		Positions: make(map[string][][2]float64, len(store.tracks)),
		Colors:    make(map[string][3]int, len(store.tracks)),
	}
	for id, track := range store.tracks {
		key := strconv.Itoa(id)
		positions := make([][2]float64, len(track.points))
		for i, pt := range track.points {
			positions[i] = [2]float64{pt.X, pt.Y}
		}
		export.Positions[key] = positions
		export.Colors[key] = [3]int{int(track.color[0]), int(track.color[1]), int(track.color[2])}
	}
	return export
}
