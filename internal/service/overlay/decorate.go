package overlay

import (
	"cloak_chat/internal/model"
	"cloak_chat/internal/signature"
)

type (
	// Decoration is the status icon/tooltip pair the host renders next
	// to a message.
	Decoration struct {
		Icon    string
		Tooltip string
	}
)

// Decorate picks a decoration from a message's classification. Pure;
// hosts call it per rendered message.
func Decorate(content string) Decoration {
	switch signature.Classify(content) {
	case model.PlainTagged:
		return Decoration{Icon: "open", Tooltip: "Sent by the overlay, not encrypted"}
	case model.HandshakeRequest, model.HandshakeAccept, model.HandshakeDisable:
		return Decoration{Icon: "protocol", Tooltip: "Encryption handshake message"}
	case model.Ciphertext:
		return Decoration{Icon: "safe", Tooltip: "End-to-end encrypted"}
	}
	return Decoration{Icon: "unsafe", Tooltip: "Not encrypted"}
}

// StatusLine is what the rendering layer shows instead of a raw
// protocol banner.
func StatusLine(kind model.Classification) string {
	switch kind {
	case model.HandshakeRequest:
		return "🔐 Encryption requested"
	case model.HandshakeAccept:
		return "✅ Encryption request accepted"
	case model.HandshakeDisable:
		return "🔓 Encryption disabled"
	}
	return ""
}
