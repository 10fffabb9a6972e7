package castv2

// Namespace URNs, bit-exact per spec.md §6.
const (
	NamespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	NamespaceHeartbeat  = "urn:x-cast:com.google.cast.tp.heartbeat"
	NamespaceReceiver   = "urn:x-cast:com.google.cast.receiver"
	NamespaceMedia      = "urn:x-cast:com.google.cast.media"
	NamespaceWebRTC     = "urn:x-cast:com.google.cast.webrtc"
	NamespaceRemoting   = "urn:x-cast:com.google.cast.remoting"
)

// DefaultMediaReceiverAppID is the fixed app-id every generic Cast sender
// targets (spec.md §3, GLOSSARY).
const DefaultMediaReceiverAppID = "CC1AD845"
