package model

type (
	ConversationKind int

	// Conversation is the host's view of a channel: its kind and, for
	// direct conversations, the counterpart's identifier.
	Conversation struct {
		ID            string
		Kind          ConversationKind
		CounterpartID string
	}

	// PendingUpload is the typed upload value the host hands to the
	// outgoing attachment pipeline. Shape normalization (whatever the
	// host wraps files in internally) happens on the host side.
	PendingUpload struct {
		Name        string
		ContentType string
		Data        []byte
	}

	// RecoveredAttachment is the result of decrypting a downloaded
	// attachment: the restored filename, the original extension and
	// whether the host should attempt an inline preview.
	RecoveredAttachment struct {
		Name    string
		Ext     string
		Data    []byte
		Preview bool
	}
)

const (
	ConversationUnknown ConversationKind = iota
	ConversationDirect
	ConversationGroup
)
