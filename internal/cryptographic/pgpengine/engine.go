package pgpengine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"go.uber.org/zap"

	"cloak_chat/internal/model"
	"cloak_chat/internal/signature"
	"cloak_chat/internal/utils/log"
)

var (
	ErrKeyGen      = errors.New("keypair generation failed")
	ErrKeyNotFound = errors.New("required key is absent")
)

type (
	// Engine wraps the OpenPGP provider. The text paths are total
	// functions: they degrade to returning their input on any failure,
	// because they run on send and render hot paths where an error must
	// never block the user's message.
	Engine struct {
		userName  string
		userEmail string
	}
)

func New() *Engine {
	return &Engine{
		userName:  "Cloak User",
		userEmail: "user@cloak.local",
	}
}

// GenerateKeypair produces a fresh curve25519 identity with no
// passphrase, both halves armored.
func (e *Engine) GenerateKeypair() (*model.Keypair, error) {
	cfg := &packet.Config{
		Algorithm: packet.PubKeyAlgoEdDSA,
		Curve:     packet.Curve25519,
	}

	entity, err := openpgp.NewEntity(e.userName, "", e.userEmail, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGen, err)
	}

	private, err := armorEntity(openpgp.PrivateKeyType, func(w io.Writer) error {
		return entity.SerializePrivate(w, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGen, err)
	}

	public, err := armorEntity(openpgp.PublicKeyType, entity.Serialize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGen, err)
	}

	return &model.Keypair{PrivateKey: private, PublicKey: public}, nil
}

// EncryptText encrypts for the recipient and, when ownKey is supplied,
// also for the sender's own key so sent messages stay readable locally.
// Fail-open: any failure returns the original text unchanged.
func (e *Engine) EncryptText(text, recipientKey, ownKey string) string {
	out, err := e.EncryptBytes([]byte(text), recipientKey, ownKey)
	if err != nil {
		log.Error("encryption failed, keeping original content", zap.Error(err))
		return text
	}
	return out
}

// EncryptBytes is the binary path used by the attachment pipeline.
// Callers compress before encrypting.
func (e *Engine) EncryptBytes(payload []byte, recipientKey, ownKey string) (string, error) {
	recipients, err := openpgp.ReadArmoredKeyRing(strings.NewReader(recipientKey))
	if err != nil {
		return "", fmt.Errorf("read recipient key: %w", err)
	}
	if ownKey != "" {
		own, err := openpgp.ReadArmoredKeyRing(strings.NewReader(ownKey))
		if err != nil {
			return "", fmt.Errorf("read own key: %w", err)
		}
		recipients = append(recipients, own...)
	}

	var buf bytes.Buffer
	armorer, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return "", fmt.Errorf("armor encode: %w", err)
	}

	plaintext, err := openpgp.Encrypt(armorer, recipients, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if _, err := plaintext.Write(payload); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}
	if err := plaintext.Close(); err != nil {
		return "", fmt.Errorf("close payload: %w", err)
	}
	if err := armorer.Close(); err != nil {
		return "", fmt.Errorf("close armor: %w", err)
	}

	return buf.String(), nil
}

// DecryptText scrubs marker contamination and whitespace, then
// decrypts. Fail-open: a message this key cannot read comes back
// unchanged, so the caller simply leaves it untransformed.
func (e *Engine) DecryptText(armored, privateKey string) string {
	out, err := e.DecryptBytes(armored, privateKey)
	if err != nil {
		log.Debug("decryption failed, keeping ciphertext", zap.Error(err))
		return armored
	}
	return string(out)
}

// DecryptBytes is the binary path. Callers decompress afterwards.
func (e *Engine) DecryptBytes(armored, privateKey string) ([]byte, error) {
	if privateKey == "" {
		return nil, ErrKeyNotFound
	}

	ring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(privateKey))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, err := armor.Decode(strings.NewReader(signature.Scrub(armored)))
	if err != nil {
		return nil, fmt.Errorf("armor decode: %w", err)
	}

	md, err := openpgp.ReadMessage(block.Body, ring, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	payload, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return payload, nil
}

func armorEntity(blockType string, serialize func(io.Writer) error) (string, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, blockType, nil)
	if err != nil {
		return "", err
	}
	if err := serialize(w); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
