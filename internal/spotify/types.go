package spotify

// ResolvedTrack is the canonical catalog match for a chart song.
type ResolvedTrack struct {
	ID         string
	Song       string
	Artist     string // Comma-separated artist names
	DurationMs int
}

// URI returns the playback URI for the track.
func (t ResolvedTrack) URI() string {
	return "spotify:track:" + t.ID
}

// Artist is a catalog artist found by name.
type Artist struct {
	ID   string
	Name string
}

// Device is a playback target on the user's account.
type Device struct {
	ID     string
	Name   string
	Active bool
}
