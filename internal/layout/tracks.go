package layout

import "tmscal/internal/model"

// Tracks maps an event ID to its horizontal lane for one displayed month.
// Lanes are a rendering convenience; the same event may land on a different
// lane in another month.
type Tracks map[string]int

// Track returns the lane of id and whether it was assigned.
func (t Tracks) Track(id string) (int, bool) {
	n, ok := t[id]
	return n, ok
}

// Max returns the highest assigned lane, or -1 for an empty assignment.
func (t Tracks) Max() int {
	maxTrack := -1
	for _, n := range t {
		if n > maxTrack {
			maxTrack = n
		}
	}
	return maxTrack
}

// AssignTracks runs greedy first-fit over monthEvents in order: each event
// takes the lowest lane not already held by an event it overlaps. The lane
// holds for the whole month so a multi-day course renders as one bar.
//
// monthEvents is expected to be the output of EventsForMonth. Events that
// cannot occur on any day are skipped and get no lane.
func AssignTracks(monthEvents []model.ScheduleEvent) Tracks {
	tracks := make(Tracks, len(monthEvents))
	// byTrack[k] lists the events already placed on lane k.
	var byTrack [][]model.ScheduleEvent

	for _, e := range monthEvents {
		if !schedulable(e) {
			continue
		}
		if _, done := tracks[e.ID]; done {
			continue
		}

		track := 0
		for track < len(byTrack) && conflicts(e, byTrack[track]) {
			track++
		}
		if track == len(byTrack) {
			byTrack = append(byTrack, nil)
		}
		byTrack[track] = append(byTrack[track], e)
		tracks[e.ID] = track
	}
	return tracks
}

func conflicts(e model.ScheduleEvent, placed []model.ScheduleEvent) bool {
	for _, other := range placed {
		if Overlaps(e, other) {
			return true
		}
	}
	return false
}
