package castv2

// advertisedNamespaces are the namespaces the fictitious Default Media
// Receiver application reports as supported (spec.md §3).
var advertisedNamespaces = []string{
	NamespaceMedia,
	NamespaceWebRTC,
	NamespaceRemoting,
	"urn:x-cast:com.google.cast.debugoverlay",
}

// Volume mirrors the {controlType, level, muted, stepInterval} block
// carried on both receiver and media status payloads.
type Volume struct {
	ControlType  string  `json:"controlType"`
	Level        float64 `json:"level"`
	Muted        bool    `json:"muted"`
	StepInterval float64 `json:"stepInterval"`
}

func defaultVolume() Volume {
	return Volume{ControlType: "attenuation", Level: 1.0, Muted: false, StepInterval: 0.05}
}

// namespaceEntry is a single {name} element of an application's advertised
// namespace list.
type namespaceEntry struct {
	Name string `json:"name"`
}

// application describes the fictitious "currently running" Default Media
// Receiver instance (spec.md §3).
type application struct {
	AppID       string           `json:"appId"`
	SessionID   string           `json:"sessionId"`
	TransportID string           `json:"transportId"`
	Namespaces  []namespaceEntry `json:"namespaces"`
	IsIdleScreen bool            `json:"isIdleScreen"`
}

// receiverStatusBody is the `status` object of a RECEIVER_STATUS reply.
type receiverStatusBody struct {
	Applications []application `json:"applications"`
	Volume       Volume        `json:"volume"`
}

func buildReceiverStatus(sessionID, transportID string, volume Volume) receiverStatusBody {
	entries := make([]namespaceEntry, len(advertisedNamespaces))
	for i, ns := range advertisedNamespaces {
		entries[i] = namespaceEntry{Name: ns}
	}
	return receiverStatusBody{
		Applications: []application{{
			AppID:       DefaultMediaReceiverAppID,
			SessionID:   sessionID,
			TransportID: transportID,
			Namespaces:  entries,
		}},
		Volume: volume,
	}
}

// deriveTransportID builds "transport-" + the first 8 hex characters of a
// session id (spec.md §3). The session id is expected to already be a
// hyphenated UUID string; any hyphens among the first characters are
// stripped before truncating so the result is always 8 hex digits.
func deriveTransportID(sessionID string) string {
	hex := make([]byte, 0, len(sessionID))
	for _, r := range sessionID {
		if r == '-' {
			continue
		}
		hex = append(hex, byte(r))
		if len(hex) == 8 {
			break
		}
	}
	return "transport-" + string(hex)
}
