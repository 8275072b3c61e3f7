package overlay

import (
	"context"
	"time"

	"cloak_chat/internal/model"
)

// rescanDelay is the debounce quiet period: a burst of mutation events
// collapses into one scan.
const rescanDelay = 300 * time.Millisecond

// ScheduleRescan arms (or re-arms) the debounced rescan of a
// conversation. Each call resets the pending timer, so only the last
// trigger of a burst fires.
func (o *Overlay) ScheduleRescan(conversationID string, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return
	}
	if o.debounce != nil {
		o.debounce.Stop()
	}
	o.debounce = time.AfterFunc(delay, func() {
		o.Rescan(conversationID)
	})
}

// Rescan walks every currently rendered message through the shared
// classify-and-act path. Already-processed messages are skipped, which
// makes repeat scans free of duplicate decryption calls and duplicate
// affordances.
func (o *Overlay) Rescan(conversationID string) {
	if !o.isActive() {
		return
	}
	ctx := context.Background()
	for _, m := range o.renderer.Messages(conversationID) {
		o.processMessage(ctx, model.IncomingMessage{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			AuthorID:       m.AuthorID,
			AuthorName:     m.AuthorName,
			Content:        m.Content,
		}, false)
	}
}
