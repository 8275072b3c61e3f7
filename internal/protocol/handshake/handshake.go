package handshake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"cloak_chat/internal/cryptographic/pgpengine"
	"cloak_chat/internal/host"
	"cloak_chat/internal/model"
	"cloak_chat/internal/repository/peerstore"
	"cloak_chat/internal/signature"
	"cloak_chat/internal/utils/log"
)

var (
	ErrNotDirect   = errors.New("encryption can only be negotiated in a direct conversation")
	ErrSendFailure = errors.New("protocol message send failed")
)

// bannerTitle marks every protocol payload, including chunks whose
// marker landed in a different chunk. The outgoing pipeline uses it to
// pass partial protocol chunks through untouched.
const bannerTitle = "Cloak protocol"

var publicKeyBlockPattern = regexp.MustCompile(
	`(?s)-----BEGIN PGP PUBLIC KEY BLOCK-----.*?-----END PGP PUBLIC KEY BLOCK-----`,
)

type (
	// Machine drives per-peer encryption state: none, requested, enabled,
	// disabled. State lives in the peer store; the machine owns the
	// transitions and the protocol messages that carry them.
	Machine struct {
		store         *peerstore.Store
		engine        *pgpengine.Engine
		conversations host.Conversations
		sender        interface {
			SendMessage(ctx context.Context, conversationID, content string) error
		}
		notifier host.Notifier
	}
)

func NewMachine(
	store *peerstore.Store,
	engine *pgpengine.Engine,
	conversations host.Conversations,
	sender interface {
		SendMessage(ctx context.Context, conversationID, content string) error
	},
	notifier host.Notifier,
) *Machine {
	return &Machine{
		store:         store,
		engine:        engine,
		conversations: conversations,
		sender:        sender,
		notifier:      notifier,
	}
}

// IsProtocolPayload reports whether content belongs to a protocol
// message, either by marker or by banner (middle chunks carry the
// banner or key material but no marker).
func IsProtocolPayload(content string) bool {
	switch signature.Classify(content) {
	case model.HandshakeRequest, model.HandshakeAccept, model.HandshakeDisable:
		return true
	}
	return strings.Contains(content, bannerTitle)
}

// RequestEncryption starts a handshake with the conversation's
// counterpart. The preference is persisted before the send is
// attempted and is not rolled back on failure: the user's intent is
// recorded so the next prompt does not re-ask.
func (m *Machine) RequestEncryption(ctx context.Context, conversationID string) error {
	conv, err := m.conversations.Lookup(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Kind != model.ConversationDirect {
		return ErrNotDirect
	}

	if err := m.store.SavePreference(ctx, conv.CounterpartID, model.PreferenceYes); err != nil {
		return err
	}

	if err := m.sendProtocolMessage(ctx, conversationID, model.KindRequest); err != nil {
		return err
	}

	m.notifier.Notify("Cloak", "🔐 Encryption request sent!")
	return nil
}

// DisableEncryption turns encryption off for the counterpart and tells
// them so. The stored key is retained.
func (m *Machine) DisableEncryption(ctx context.Context, conversationID string) error {
	conv, err := m.conversations.Lookup(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Kind != model.ConversationDirect {
		return ErrNotDirect
	}

	if err := m.store.DisablePeer(ctx, conv.CounterpartID); err != nil {
		return err
	}

	if err := m.sendProtocolMessage(ctx, conversationID, model.KindDisable); err != nil {
		return err
	}

	m.notifier.Notify("Cloak", "🔓 Encryption disabled for this conversation")
	return nil
}

// HandleProtocolMessage applies the state transition a received
// protocol message asks for. Malformed messages (no embedded key where
// one is required) are silently ignored: they are treated as foreign
// text, not protocol violations.
func (m *Machine) HandleProtocolMessage(ctx context.Context, msg model.IncomingMessage, kind model.Classification) error {
	name := msg.AuthorName
	if name == "" {
		name = msg.AuthorID
	}

	switch kind {
	case model.HandshakeDisable:
		if err := m.store.DisablePeer(ctx, msg.AuthorID); err != nil {
			return err
		}
		m.notifier.Notify("Cloak", fmt.Sprintf("🔓 %s disabled encryption", name))

	case model.HandshakeRequest:
		publicKey := publicKeyBlockPattern.FindString(msg.Content)
		if publicKey == "" {
			log.Debug("handshake request without key block ignored",
				zap.String("author", msg.AuthorID))
			return nil
		}
		if err := m.store.SavePeerKey(ctx, msg.AuthorID, publicKey); err != nil {
			return err
		}
		if err := m.sendProtocolMessage(ctx, msg.ConversationID, model.KindAccept); err != nil {
			return err
		}
		m.notifier.Notify("Cloak", fmt.Sprintf("🔐 Encryption enabled with %s", name))

	case model.HandshakeAccept:
		publicKey := publicKeyBlockPattern.FindString(msg.Content)
		if publicKey == "" {
			log.Debug("handshake accept without key block ignored",
				zap.String("author", msg.AuthorID))
			return nil
		}
		if err := m.store.SavePeerKey(ctx, msg.AuthorID, publicKey); err != nil {
			return err
		}
		m.notifier.Notify("Cloak", fmt.Sprintf("✅ %s accepted encryption!", name))
	}
	return nil
}

// HandlePluginTagged reacts to the first plain-tagged message observed
// from a peer with no stored preference: it surfaces the yes/no/never
// prompt. A "yes" answer persists the preference and sends a Request;
// "never" is terminal.
func (m *Machine) HandlePluginTagged(ctx context.Context, msg model.IncomingMessage) error {
	pref, err := m.store.Preference(ctx, msg.AuthorID)
	if err != nil {
		return err
	}
	if pref != model.PreferenceUnset {
		return nil
	}

	name := msg.AuthorName
	if name == "" {
		name = msg.AuthorID
	}
	conversationID := msg.ConversationID
	peerID := msg.AuthorID

	m.notifier.PromptEncryption(peerID, name, func(answer model.Preference) {
		ctx := context.Background()
		if err := m.store.SavePreference(ctx, peerID, answer); err != nil {
			log.Error("save preference failed", zap.Error(err))
			return
		}
		if answer == model.PreferenceYes {
			if err := m.sendProtocolMessage(ctx, conversationID, model.KindRequest); err != nil {
				log.Error("request after prompt failed", zap.Error(err))
				return
			}
			m.notifier.Notify("Cloak", fmt.Sprintf("🔐 Encryption request sent to %s", name))
		}
	})
	return nil
}

func (m *Machine) sendProtocolMessage(ctx context.Context, conversationID string, kind model.ProtocolKind) error {
	var myKeys *model.Keypair
	var err error
	if kind != model.KindDisable {
		myKeys, err = m.store.MyKeys(ctx)
		if err != nil {
			return err
		}
		if myKeys == nil {
			log.Info("generating new identity keypair")
			myKeys, err = m.engine.GenerateKeypair()
			if err != nil {
				return err
			}
			if err := m.store.SaveMyKeys(ctx, myKeys); err != nil {
				return err
			}
		}
	}

	payload := buildProtocolMessage(kind, myKeys)

	chunks := splitChunks(payload, chunkSize)
	log.Debug("sending protocol message",
		zap.String("kind", string(kind)),
		zap.Int("chunks", len(chunks)))

	// Chunks go out serially, each awaited, so the marker-bearing final
	// chunk is also the last to arrive.
	for i, chunk := range chunks {
		if err := m.sender.SendMessage(ctx, conversationID, chunk); err != nil {
			m.notifier.Notify("Cloak", fmt.Sprintf("❌ Failed to send protocol message: %v", err))
			return fmt.Errorf("%w: chunk %d/%d: %v", ErrSendFailure, i+1, len(chunks), err)
		}
	}
	return nil
}

func buildProtocolMessage(kind model.ProtocolKind, myKeys *model.Keypair) string {
	if kind == model.KindDisable {
		return "----------------\n" +
			bannerTitle + "\n" +
			"if you see this, enable the cloak overlay.\n" +
			"State: Encryption disabled\n" +
			"----------------\n" +
			"Encryption has been disabled for this conversation." +
			signature.DisableMarker
	}

	state := "Requesting encryption"
	marker := signature.RequestMarker
	if kind == model.KindAccept {
		state = "Accepting encryption"
		marker = signature.AcceptMarker
	}

	return "----------------\n" +
		bannerTitle + "\n" +
		"if you see this, enable the cloak overlay.\n" +
		"State: " + state + "\n" +
		"----------------\n" +
		myKeys.PublicKey + marker
}
