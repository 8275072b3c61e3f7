// Package overlay implements the message-confidentiality overlay: it
// installs itself into a host chat application through the host ports,
// negotiates per-peer encryption in-band and transparently rewrites
// rendered content.
package overlay

import (
	"context"
	"sync"
	"time"

	"cloak_chat/internal/cryptographic/pgpengine"
	"cloak_chat/internal/host"
	"cloak_chat/internal/protocol/handshake"
	"cloak_chat/internal/repository/peerstore"
)

type (
	Deps struct {
		Conversations host.Conversations
		Transport     host.Transport
		Renderer      host.Renderer
		Notifier      host.Notifier
		Fetcher       host.Fetcher
		Store         *peerstore.Store
		Engine        *pgpengine.Engine
	}

	// Overlay owns all hook and observer state. Multiple instances do
	// not collide: nothing lives at package level.
	Overlay struct {
		conversations host.Conversations
		transport     host.Transport
		renderer      host.Renderer
		notifier      host.Notifier
		fetcher       host.Fetcher
		store         *peerstore.Store
		engine        *pgpengine.Engine
		machine       *handshake.Machine

		mu        sync.Mutex
		active    bool
		unhooks   []func()
		debounce  *time.Timer
		processed map[string]struct{}
	}
)

func New(deps Deps) *Overlay {
	o := &Overlay{
		conversations: deps.Conversations,
		transport:     deps.Transport,
		renderer:      deps.Renderer,
		notifier:      deps.Notifier,
		fetcher:       deps.Fetcher,
		store:         deps.Store,
		engine:        deps.Engine,
		processed:     make(map[string]struct{}),
	}
	o.machine = handshake.NewMachine(deps.Store, deps.Engine, deps.Conversations, deps.Transport, deps.Notifier)
	return o
}

// Start installs the outgoing, upload and event hooks. Idempotent.
func (o *Overlay) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return
	}
	o.active = true
	o.unhooks = append(o.unhooks,
		o.transport.RegisterOutgoingInterceptor(o.ProcessOutgoing),
		o.transport.RegisterUploadInterceptor(o.ProcessUpload),
		o.transport.RegisterEventSubscriber(o.onEvent),
	)
}

// Stop detaches every hook and cancels a pending rescan. In-flight
// crypto calls are not awaited; they check the active flag before
// touching host state. Idempotent.
func (o *Overlay) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return
	}
	o.active = false
	for _, detach := range o.unhooks {
		detach()
	}
	o.unhooks = nil
	if o.debounce != nil {
		o.debounce.Stop()
		o.debounce = nil
	}
}

// RequestEncryption starts the handshake with the conversation's
// counterpart (user command surface).
func (o *Overlay) RequestEncryption(ctx context.Context, conversationID string) error {
	return o.machine.RequestEncryption(ctx, conversationID)
}

// DisableEncryption turns encryption off and tells the counterpart.
func (o *Overlay) DisableEncryption(ctx context.Context, conversationID string) error {
	return o.machine.DisableEncryption(ctx, conversationID)
}

func (o *Overlay) isActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// markProcessed records a message as handled; the second caller for the
// same id gets false. This is what keeps rescans idempotent.
func (o *Overlay) markProcessed(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.processed[id]; ok {
		return false
	}
	o.processed[id] = struct{}{}
	return true
}

func (o *Overlay) onEvent(ev host.Event) {
	if !o.isActive() {
		return
	}
	switch ev.Kind {
	case host.EventMessageCreated, host.EventMessageUpdated:
		if ev.Message == nil {
			return
		}
		o.handleIncoming(context.Background(), *ev.Message)
	case host.EventConversationSelected, host.EventHistoryLoaded:
		o.ScheduleRescan(ev.ConversationID, rescanDelay)
	}
}
