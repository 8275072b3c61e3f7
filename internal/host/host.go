// Package host declares the narrow contracts the confidentiality
// overlay has with its embedding chat application. The overlay depends
// only on these ports; hosts normalize their internal shapes (upload
// objects, dispatch payloads, rendered DOM) before crossing them.
package host

import (
	"context"

	"cloak_chat/internal/model"
)

type (
	EventKind int

	// Event is a host occurrence the overlay reacts to. Message is set
	// for the message events; ConversationID is set for conversation
	// switches and history loads.
	Event struct {
		Kind           EventKind
		Message        *model.IncomingMessage
		ConversationID string
	}

	EventSubscriber func(Event)

	// OutgoingInterceptor may rewrite an outgoing message or cancel it
	// (keep == false) before the host transmits it.
	OutgoingInterceptor func(ctx context.Context, conversationID, content string) (out string, keep bool)

	// UploadInterceptor may replace a pending upload before the host
	// transmits it.
	UploadInterceptor func(ctx context.Context, conversationID string, up model.PendingUpload) model.PendingUpload

	// Conversations resolves a conversation identifier to its kind and
	// counterpart. The overlay only acts on ConversationDirect.
	Conversations interface {
		Lookup(ctx context.Context, conversationID string) (model.Conversation, error)
	}

	// Transport is the host's send path plus the hook points the overlay
	// installs itself into. Each Register call returns its detach func.
	Transport interface {
		SendMessage(ctx context.Context, conversationID, content string) error
		RegisterOutgoingInterceptor(OutgoingInterceptor) (unregister func())
		RegisterUploadInterceptor(UploadInterceptor) (unregister func())
		RegisterEventSubscriber(EventSubscriber) (unregister func())
	}

	// Renderer enumerates currently visible messages and lets the
	// overlay rewrite what is shown without touching the transport copy.
	Renderer interface {
		Messages(conversationID string) []model.RenderedMessage
		ReplaceContent(messageID, text string)
		// AddRevealToggle attaches a user affordance that can flip the
		// rendered text back to the original ciphertext. Never deletes.
		AddRevealToggle(messageID, original string)
	}

	// Notifier is fire-and-forget. PromptEncryption offers yes/no/never;
	// the answer arrives asynchronously via the callback and the overlay
	// does not wait for it.
	Notifier interface {
		Notify(title, body string)
		PromptEncryption(peerID, peerName string, answer func(model.Preference))
	}

	// Fetcher retrieves raw attachment bytes for the download path.
	Fetcher interface {
		Fetch(ctx context.Context, url string) ([]byte, error)
	}
)

const (
	EventMessageCreated EventKind = iota
	EventMessageUpdated
	EventConversationSelected
	EventHistoryLoaded
)
