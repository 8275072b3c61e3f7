package model

type (
	// Classification is the single category a message's transport text
	// falls into. At most one classification is ever true; callers rely
	// on the fixed precedence implemented by signature.Classify.
	Classification int

	// ProtocolKind names the three handshake control messages.
	ProtocolKind string

	// IncomingMessage is a created or edited message delivered by a host
	// event.
	IncomingMessage struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation_id"`
		AuthorID       string `json:"author_id"`
		AuthorName     string `json:"author_name"`
		Content        string `json:"content"`
	}

	// RenderedMessage is one currently visible message as enumerated by
	// the host's rendering layer during a rescan.
	RenderedMessage struct {
		ID             string
		ConversationID string
		AuthorID       string
		AuthorName     string
		Content        string
	}

	// WireMessage is the demo transport's frame. The overlay itself never
	// depends on it; only the demo client and relay do.
	WireMessage struct {
		ID      string `json:"id"`
		From    string `json:"from"`
		To      string `json:"to"`
		Content string `json:"content"`
	}
)

const (
	Unmarked Classification = iota
	PlainTagged
	HandshakeRequest
	HandshakeAccept
	HandshakeDisable
	Ciphertext
)

const (
	KindRequest ProtocolKind = "request"
	KindAccept  ProtocolKind = "accept"
	KindDisable ProtocolKind = "disable"
)

func (c Classification) String() string {
	switch c {
	case PlainTagged:
		return "plain-tagged"
	case HandshakeRequest:
		return "handshake-request"
	case HandshakeAccept:
		return "handshake-accept"
	case HandshakeDisable:
		return "handshake-disable"
	case Ciphertext:
		return "ciphertext"
	}
	return "unmarked"
}
