package overlay

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"cloak_chat/internal/model"
	"cloak_chat/internal/protocol/handshake"
	"cloak_chat/internal/signature"
	"cloak_chat/internal/utils/log"
)

// ProcessOutgoing classifies an outgoing message and either passes it
// through (protocol payloads, already-armored content, non-direct
// conversations), encrypts it, or tags it. Failures always degrade to
// the original content: the overlay never blocks a send.
func (o *Overlay) ProcessOutgoing(ctx context.Context, conversationID, content string) (string, bool) {
	if handshake.IsProtocolPayload(content) || strings.HasPrefix(content, signature.CiphertextPrefix) {
		return content, true
	}

	conv, err := o.conversations.Lookup(ctx, conversationID)
	if err != nil || conv.Kind != model.ConversationDirect {
		return content, true
	}

	rec, err := o.store.PeerRecord(ctx, conv.CounterpartID)
	if err != nil {
		log.Error("peer record lookup failed, sending unmodified", zap.Error(err))
		return content, true
	}

	if rec != nil && rec.EncryptionEnabled && rec.PublicKey != "" {
		own := ""
		if keys, kerr := o.store.MyKeys(ctx); kerr == nil && keys != nil {
			own = keys.PublicKey
		}
		return o.engine.EncryptText(content, rec.PublicKey, own), true
	}

	return signature.Tag(content, model.PlainTagged), true
}
