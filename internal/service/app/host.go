package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cloak_chat/internal/host"
	"cloak_chat/internal/model"
	"cloak_chat/internal/service/overlay"
)

// The app is the overlay's host: it implements every port itself. Hook
// registries live under the app mutex; dispatch and rendering always
// work on snapshots so overlay callbacks never run while it is held.

func (a *App) Lookup(_ context.Context, conversationID string) (model.Conversation, error) {
	if conversationID != a.toName {
		return model.Conversation{ID: conversationID, Kind: model.ConversationUnknown}, nil
	}
	return model.Conversation{
		ID:            conversationID,
		Kind:          model.ConversationDirect,
		CounterpartID: a.toName,
	}, nil
}

func (a *App) SendMessage(_ context.Context, _ string, content string) error {
	return a.conn.WriteJSON(&model.WireMessage{
		ID:      uuid.NewString(),
		From:    a.user.Name,
		To:      a.toName,
		Content: content,
	})
}

func (a *App) RegisterOutgoingInterceptor(ic host.OutgoingInterceptor) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextHook
	a.nextHook++
	a.outgoing[id] = ic
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.outgoing, id)
	}
}

func (a *App) RegisterUploadInterceptor(ic host.UploadInterceptor) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextHook
	a.nextHook++
	a.uploads[id] = ic
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.uploads, id)
	}
}

func (a *App) RegisterEventSubscriber(sub host.EventSubscriber) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextHook
	a.nextHook++
	a.subscribers[id] = sub
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

func (a *App) outgoingHooks() []host.OutgoingInterceptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	hooks := make([]host.OutgoingInterceptor, 0, len(a.outgoing))
	for _, ic := range a.outgoing {
		hooks = append(hooks, ic)
	}
	return hooks
}

func (a *App) uploadHooks() []host.UploadInterceptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	hooks := make([]host.UploadInterceptor, 0, len(a.uploads))
	for _, ic := range a.uploads {
		hooks = append(hooks, ic)
	}
	return hooks
}

func (a *App) dispatch(ev host.Event) {
	a.mu.Lock()
	subs := make([]host.EventSubscriber, 0, len(a.subscribers))
	for _, sub := range a.subscribers {
		subs = append(subs, sub)
	}
	a.mu.Unlock()

	for _, sub := range subs {
		sub(ev)
	}
}

func (a *App) Messages(conversationID string) []model.RenderedMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.RenderedMessage, 0, len(a.messages))
	for _, m := range a.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

func (a *App) ReplaceContent(messageID, text string) {
	a.mu.Lock()
	if i, ok := a.index[messageID]; ok {
		a.messages[i].Content = text
	}
	a.mu.Unlock()
	a.redraw()
}

func (a *App) AddRevealToggle(messageID, original string) {
	a.mu.Lock()
	a.originals[messageID] = original
	a.mu.Unlock()
	a.redraw()
}

func (a *App) Notify(title, body string) {
	a.setStatus(fmt.Sprintf("[gray]%s: %s[-]", title, body))
}

func (a *App) PromptEncryption(_, peerName string, answer func(model.Preference)) {
	a.mu.Lock()
	a.pendingAnswer = answer
	a.mu.Unlock()
	a.setStatus(fmt.Sprintf("[orange]%s uses encryption. Enable it? /trust <yes|no|never>[-]", peerName))
}

func (a *App) appendMessage(m model.RenderedMessage) {
	a.mu.Lock()
	a.index[m.ID] = len(a.messages)
	a.messages = append(a.messages, m)
	a.mu.Unlock()
	a.redraw()
}

// toggleReveal flips the nth visible message (1-based) between its
// rendered text and the original ciphertext, when a toggle exists.
func (a *App) toggleReveal(n int) {
	a.mu.Lock()
	if n < 1 || n > len(a.messages) {
		a.mu.Unlock()
		a.setStatus("[red]no such message[-]")
		return
	}
	id := a.messages[n-1].ID
	if _, ok := a.originals[id]; !ok {
		a.mu.Unlock()
		a.setStatus("[red]message has no hidden ciphertext[-]")
		return
	}
	a.revealed[id] = !a.revealed[id]
	a.mu.Unlock()
	a.redraw()
}

func (a *App) redraw() {
	a.mu.Lock()
	var b strings.Builder
	for i, m := range a.messages {
		content := m.Content
		transport := content
		if orig, ok := a.originals[m.ID]; ok {
			transport = orig
			if a.revealed[m.ID] {
				content = orig
			}
		}
		color := "green"
		if m.AuthorID == a.user.Name {
			color = "yellow"
		}
		dec := overlay.Decorate(transport)
		fmt.Fprintf(&b, "[gray](%d %s)[-] [%s]%s:[-] %s\n", i+1, dec.Icon, color, m.AuthorName, content)
	}
	a.mu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.chatbox.SetText(b.String())
		a.chatbox.ScrollToEnd()
	})
}

func (a *App) setStatus(text string) {
	a.app.QueueUpdateDraw(func() {
		a.status.SetText(text)
	})
}
