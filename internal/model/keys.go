package model

type (
	// Keypair is the local identity. Both halves are armored text; the
	// private half never leaves the local key store.
	Keypair struct {
		PrivateKey string `json:"private_key"`
		PublicKey  string `json:"public_key"`
	}
)
