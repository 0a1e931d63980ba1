package lastfm

// TrackInfo is the subset of track.getInfo the spotlight needs.
type TrackInfo struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	PlayCount string `json:"playcount"` // Last.fm sends counts as strings
	Listeners string `json:"listeners"`
}

// trackInfoResponse is the JSON response for track.getInfo.
type trackInfoResponse struct {
	Track TrackInfo `json:"track"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
