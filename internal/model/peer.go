package model

type (
	// PeerRecord tracks what a single peer told us: their public key and
	// whether they currently want encryption. Records are only ever
	// toggled, never deleted, so a re-enable keeps the old key until a
	// new handshake replaces it.
	PeerRecord struct {
		PublicKey         string `json:"public_key"`
		EncryptionEnabled bool   `json:"encryption_enabled"`
	}

	// Preference records the local user's answer to the "enable
	// encryption with this peer?" prompt. It is independent of the
	// PeerRecord; PreferenceNever suppresses any further prompting.
	Preference string
)

const (
	PreferenceUnset Preference = ""
	PreferenceYes   Preference = "yes"
	PreferenceNo    Preference = "no"
	PreferenceNever Preference = "never"
)
