package signature

import (
	"strings"
	"unicode/utf8"

	"cloak_chat/internal/model"
)

// Each marker is a distinct sequence of five zero-width code points.
// They are suffixes so that the visible message text stays untouched,
// and no marker is a suffix of another.
const (
	PluginMarker  = "​‌‍​‌"
	RequestMarker = "​‌‍​‍"
	AcceptMarker  = "​‌‍‌​"
	DisableMarker = "​‌‍‌‌"
)

const (
	CiphertextPrefix = "-----BEGIN PGP MESSAGE-----"
	CiphertextSuffix = "-----END PGP MESSAGE-----"

	PublicKeyPrefix = "-----BEGIN PGP PUBLIC KEY BLOCK-----"
	PublicKeySuffix = "-----END PGP PUBLIC KEY BLOCK-----"

	// MaxMessageLength is the transport's hard cap on a single message.
	MaxMessageLength = 2000
)

// Classify buckets transport text into exactly one category. Handshake
// markers win over the plugin marker, markers win over the armor
// prefix; this ordering keeps a protocol message from being mistaken
// for ordinary tagged plaintext.
func Classify(content string) model.Classification {
	switch {
	case strings.HasSuffix(content, DisableMarker):
		return model.HandshakeDisable
	case strings.HasSuffix(content, RequestMarker):
		return model.HandshakeRequest
	case strings.HasSuffix(content, AcceptMarker):
		return model.HandshakeAccept
	case strings.HasSuffix(content, PluginMarker):
		return model.PlainTagged
	case strings.HasPrefix(content, CiphertextPrefix):
		return model.Ciphertext
	}
	return model.Unmarked
}

// Marker returns the marker sequence for a classification, or "" for
// classifications that carry no marker.
func Marker(kind model.Classification) string {
	switch kind {
	case model.PlainTagged:
		return PluginMarker
	case model.HandshakeRequest:
		return RequestMarker
	case model.HandshakeAccept:
		return AcceptMarker
	case model.HandshakeDisable:
		return DisableMarker
	}
	return ""
}

// Tag appends the marker for kind. It refuses silently when the marker
// is already present or when tagging would push the message over the
// transport cap; in both cases the content comes back unmodified.
func Tag(content string, kind model.Classification) string {
	m := Marker(kind)
	if m == "" {
		return content
	}
	if strings.HasSuffix(content, m) {
		return content
	}
	if utf8.RuneCountInString(content)+utf8.RuneCountInString(m) > MaxMessageLength {
		return content
	}
	return content + m
}

// TrimMarker removes one trailing marker of the given kind, if present.
func TrimMarker(content string, kind model.Classification) string {
	m := Marker(kind)
	if m == "" {
		return content
	}
	return strings.TrimSuffix(content, m)
}

var markerRunes = strings.NewReplacer(
	"​", "",
	"‌", "",
	"‍", "",
)

// Scrub removes every marker code point anywhere in s and trims
// surrounding whitespace. The crypto engine runs it before parsing
// armored input so that marker contamination from upstream tagging
// cannot break decryption.
func Scrub(s string) string {
	return strings.TrimSpace(markerRunes.Replace(s))
}
