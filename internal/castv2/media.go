package castv2

// Player states (spec.md §3).
const (
	PlayerIdle       = "IDLE"
	PlayerPlaying    = "PLAYING"
	PlayerPaused     = "PAUSED"
	PlayerBuffering  = "BUFFERING"
	supportedMediaCommands = 0x7F
)

// mediaDescriptor mirrors the optional `media` sub-object of a MEDIA_STATUS
// entry.
type mediaDescriptor struct {
	ContentID   string `json:"contentId"`
	ContentType string `json:"contentType"`
	StreamType  string `json:"streamType"`
}

// mediaState is the per-connection "currently playing" view (spec.md §3).
// It is owned exclusively by the connection's handler goroutine and never
// escapes it.
type mediaState struct {
	mediaSessionID int
	media          *mediaDescriptor
	currentTime    float64
	playerState    string
	volume         Volume
}

func newMediaState() mediaState {
	return mediaState{
		mediaSessionID: 1,
		playerState:    PlayerIdle,
		volume:         defaultVolume(),
	}
}

// mediaStatusEntry is the sole element of a MEDIA_STATUS reply's `status`
// array (spec.md §4.5).
type mediaStatusEntry struct {
	MediaSessionID         int              `json:"mediaSessionId"`
	PlaybackRate           float64          `json:"playbackRate"`
	PlayerState            string           `json:"playerState"`
	CurrentTime            float64          `json:"currentTime"`
	SupportedMediaCommands int              `json:"supportedMediaCommands"`
	Volume                 Volume           `json:"volume"`
	Media                  *mediaDescriptor `json:"media,omitempty"`
}

// mediaStatusPayload is the full MEDIA_STATUS reply envelope.
type mediaStatusPayload struct {
	Type      string             `json:"type"`
	RequestID int                `json:"requestId"`
	Status    []mediaStatusEntry `json:"status"`
}

func buildMediaStatus(requestID int, st mediaState) mediaStatusPayload {
	return mediaStatusPayload{
		Type:      "MEDIA_STATUS",
		RequestID: requestID,
		Status: []mediaStatusEntry{{
			MediaSessionID:         st.mediaSessionID,
			PlaybackRate:           1,
			PlayerState:            st.playerState,
			CurrentTime:            st.currentTime,
			SupportedMediaCommands: supportedMediaCommands,
			Volume:                 st.volume,
			Media:                  st.media,
		}},
	}
}

// receiverStatusPayload is the full RECEIVER_STATUS reply envelope.
type receiverStatusPayload struct {
	Type      string              `json:"type"`
	RequestID int                 `json:"requestId"`
	Status    receiverStatusBody  `json:"status"`
}
