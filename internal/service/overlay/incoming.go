package overlay

import (
	"context"

	"go.uber.org/zap"

	"cloak_chat/internal/model"
	"cloak_chat/internal/signature"
	"cloak_chat/internal/utils/log"
)

func (o *Overlay) handleIncoming(ctx context.Context, msg model.IncomingMessage) {
	conv, err := o.conversations.Lookup(ctx, msg.ConversationID)
	if err != nil || conv.Kind != model.ConversationDirect {
		return
	}
	o.processMessage(ctx, msg, true)
}

// processMessage is the single classify-and-act path shared by live
// events (live == true) and rescans. State transitions only run for
// live events so that scanning history does not replay handshakes;
// rendering substitution runs for both. A message already marked
// processed is skipped entirely.
func (o *Overlay) processMessage(ctx context.Context, msg model.IncomingMessage, live bool) {
	kind := signature.Classify(msg.Content)

	switch kind {
	case model.HandshakeRequest, model.HandshakeAccept, model.HandshakeDisable:
		if !o.markProcessed(msg.ID) {
			return
		}
		// The raw banner is never rendered.
		o.renderer.ReplaceContent(msg.ID, StatusLine(kind))
		if live {
			if err := o.machine.HandleProtocolMessage(ctx, msg, kind); err != nil {
				log.Error("protocol message handling failed", zap.Error(err))
			}
		}

	case model.PlainTagged:
		if !o.markProcessed(msg.ID) {
			return
		}
		if live {
			if err := o.machine.HandlePluginTagged(ctx, msg); err != nil {
				log.Error("plugin-tagged handling failed", zap.Error(err))
			}
		}

	case model.Ciphertext:
		if !o.markProcessed(msg.ID) {
			return
		}
		keys, err := o.store.MyKeys(ctx)
		if err != nil || keys == nil {
			// No local private key: leave the armor visible.
			return
		}
		decrypted := o.engine.DecryptText(msg.Content, keys.PrivateKey)
		if decrypted == msg.Content {
			// Not for this key. Expected, not alarming.
			log.Debug("ciphertext not decryptable locally", zap.String("message", msg.ID))
			return
		}
		if !o.isActive() {
			return
		}
		o.renderer.ReplaceContent(msg.ID, decrypted)
		o.renderer.AddRevealToggle(msg.ID, msg.Content)
	}
}
