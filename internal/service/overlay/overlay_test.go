package overlay

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"cloak_chat/internal/cryptographic/pgpengine"
	"cloak_chat/internal/host"
	"cloak_chat/internal/model"
	"cloak_chat/internal/repository/peerstore"
	"cloak_chat/internal/service/kv"
	"cloak_chat/internal/signature"
)

type fakeConversations struct {
	convs map[string]model.Conversation
}

func (f *fakeConversations) Lookup(_ context.Context, id string) (model.Conversation, error) {
	return f.convs[id], nil
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	detached int
}

func (f *fakeTransport) SendMessage(_ context.Context, _, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return nil
}

func (f *fakeTransport) RegisterOutgoingInterceptor(host.OutgoingInterceptor) func() {
	return f.detach
}

func (f *fakeTransport) RegisterUploadInterceptor(host.UploadInterceptor) func() {
	return f.detach
}

func (f *fakeTransport) RegisterEventSubscriber(host.EventSubscriber) func() {
	return f.detach
}

func (f *fakeTransport) detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached++
}

type fakeRenderer struct {
	messages []model.RenderedMessage
	replaced map[string][]string
	toggles  map[string]int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		replaced: make(map[string][]string),
		toggles:  make(map[string]int),
	}
}

func (f *fakeRenderer) Messages(string) []model.RenderedMessage { return f.messages }

func (f *fakeRenderer) ReplaceContent(id, text string) {
	f.replaced[id] = append(f.replaced[id], text)
}

func (f *fakeRenderer) AddRevealToggle(id, _ string) { f.toggles[id]++ }

type fakeNotifier struct {
	notes []string
}

func (f *fakeNotifier) Notify(title, _ string) { f.notes = append(f.notes, title) }

func (f *fakeNotifier) PromptEncryption(_, _ string, _ func(model.Preference)) {}

type fakeFetcher struct {
	data []byte
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) { return f.data, nil }

type fixture struct {
	overlay   *Overlay
	store     *peerstore.Store
	engine    *pgpengine.Engine
	transport *fakeTransport
	renderer  *fakeRenderer
	notifier  *fakeNotifier
	fetcher   *fakeFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     peerstore.New(kv.NewMemory()),
		engine:    pgpengine.New(),
		transport: &fakeTransport{},
		renderer:  newFakeRenderer(),
		notifier:  &fakeNotifier{},
		fetcher:   &fakeFetcher{},
	}
	convs := &fakeConversations{convs: map[string]model.Conversation{
		"dm": {ID: "dm", Kind: model.ConversationDirect, CounterpartID: "peer"},
		"gc": {ID: "gc", Kind: model.ConversationGroup},
	}}
	f.overlay = New(Deps{
		Conversations: convs,
		Transport:     f.transport,
		Renderer:      f.renderer,
		Notifier:      f.notifier,
		Fetcher:       f.fetcher,
		Store:         f.store,
		Engine:        f.engine,
	})
	return f
}

// enableEncryption puts the fixture in the post-handshake state: own
// keys saved, peer key saved and enabled.
func (f *fixture) enableEncryption(t *testing.T) (peer *model.Keypair) {
	t.Helper()
	ctx := context.Background()
	mine, err := f.engine.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate own keypair: %v", err)
	}
	if err := f.store.SaveMyKeys(ctx, mine); err != nil {
		t.Fatalf("save own keys: %v", err)
	}
	peer, err = f.engine.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate peer keypair: %v", err)
	}
	if err := f.store.SavePeerKey(ctx, "peer", peer.PublicKey); err != nil {
		t.Fatalf("save peer key: %v", err)
	}
	return peer
}

func TestOutgoingTagsWhenEncryptionOff(t *testing.T) {
	f := newFixture(t)

	out, keep := f.overlay.ProcessOutgoing(context.Background(), "dm", "hello there")
	if !keep {
		t.Fatal("outgoing message was cancelled")
	}
	if signature.Classify(out) != model.PlainTagged {
		t.Fatalf("expected plain-tagged output, got classification %v", signature.Classify(out))
	}
	if !strings.HasPrefix(out, "hello there") {
		t.Fatalf("visible text changed: %q", out)
	}
}

func TestOutgoingEncryptsForEnabledPeer(t *testing.T) {
	f := newFixture(t)
	peer := f.enableEncryption(t)
	ctx := context.Background()

	out, keep := f.overlay.ProcessOutgoing(ctx, "dm", "secret plans")
	if !keep {
		t.Fatal("outgoing message was cancelled")
	}
	if !strings.HasPrefix(out, signature.CiphertextPrefix) {
		t.Fatalf("output is not armored: %q", out)
	}
	if strings.Contains(out, "secret plans") {
		t.Fatal("plaintext leaked into output")
	}

	if got := f.engine.DecryptText(out, peer.PrivateKey); got != "secret plans" {
		t.Fatalf("peer decryption got %q", got)
	}
	mine, err := f.store.MyKeys(ctx)
	if err != nil || mine == nil {
		t.Fatalf("own keys missing: %v", err)
	}
	if got := f.engine.DecryptText(out, mine.PrivateKey); got != "secret plans" {
		t.Fatalf("sender decryption got %q", got)
	}
}

func TestOutgoingPassThrough(t *testing.T) {
	f := newFixture(t)
	f.enableEncryption(t)
	ctx := context.Background()

	protocol := "some banner" + signature.Marker(model.HandshakeRequest)
	if out, _ := f.overlay.ProcessOutgoing(ctx, "dm", protocol); out != protocol {
		t.Fatal("protocol payload was rewritten")
	}

	armored := signature.CiphertextPrefix + "\nalready encrypted"
	if out, _ := f.overlay.ProcessOutgoing(ctx, "dm", armored); out != armored {
		t.Fatal("pre-armored content was rewritten")
	}

	if out, _ := f.overlay.ProcessOutgoing(ctx, "gc", "group chatter"); out != "group chatter" {
		t.Fatalf("group message was rewritten: %q", out)
	}
}

func TestIncomingDecryptsAndAddsReveal(t *testing.T) {
	f := newFixture(t)
	peer := f.enableEncryption(t)
	f.overlay.Start()
	defer f.overlay.Stop()
	ctx := context.Background()

	mine, _ := f.store.MyKeys(ctx)
	ct, err := f.engine.EncryptBytes([]byte("from the other side"), mine.PublicKey, peer.PublicKey)
	if err != nil {
		t.Fatalf("encrypt to self: %v", err)
	}

	msg := model.IncomingMessage{ID: "m1", ConversationID: "dm", AuthorID: "peer", Content: ct}
	f.overlay.processMessage(ctx, msg, true)

	got := f.renderer.replaced["m1"]
	if len(got) != 1 || got[0] != "from the other side" {
		t.Fatalf("rendered content = %v", got)
	}
	if f.renderer.toggles["m1"] != 1 {
		t.Fatalf("reveal toggles = %d", f.renderer.toggles["m1"])
	}
}

func TestForeignCiphertextLeftAlone(t *testing.T) {
	f := newFixture(t)
	f.enableEncryption(t)
	f.overlay.Start()
	defer f.overlay.Stop()
	ctx := context.Background()

	other, err := f.engine.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	ct, err := f.engine.EncryptBytes([]byte("not for us"), other.PublicKey, "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	msg := model.IncomingMessage{ID: "m2", ConversationID: "dm", AuthorID: "peer", Content: ct}
	f.overlay.processMessage(ctx, msg, true)

	if len(f.renderer.replaced["m2"]) != 0 {
		t.Fatal("foreign ciphertext was rewritten")
	}
	if f.renderer.toggles["m2"] != 0 {
		t.Fatal("reveal toggle added for unreadable ciphertext")
	}
}

func TestHandshakeBannerRenderedAsStatusLine(t *testing.T) {
	f := newFixture(t)
	f.overlay.Start()
	defer f.overlay.Stop()

	msg := model.IncomingMessage{
		ID:             "m3",
		ConversationID: "dm",
		AuthorID:       "peer",
		Content:        "banner text" + signature.Marker(model.HandshakeDisable),
	}
	f.overlay.processMessage(context.Background(), msg, true)

	got := f.renderer.replaced["m3"]
	if len(got) != 1 || got[0] != StatusLine(model.HandshakeDisable) {
		t.Fatalf("status line = %v", got)
	}
}

func TestRescanSkipsProcessedMessages(t *testing.T) {
	f := newFixture(t)
	peer := f.enableEncryption(t)
	f.overlay.Start()
	defer f.overlay.Stop()
	ctx := context.Background()

	mine, _ := f.store.MyKeys(ctx)
	ct, err := f.engine.EncryptBytes([]byte("once"), mine.PublicKey, peer.PublicKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	f.renderer.messages = []model.RenderedMessage{
		{ID: "m4", ConversationID: "dm", AuthorID: "peer", Content: ct},
	}

	f.overlay.Rescan("dm")
	f.overlay.Rescan("dm")

	if n := len(f.renderer.replaced["m4"]); n != 1 {
		t.Fatalf("content replaced %d times", n)
	}
	if n := f.renderer.toggles["m4"]; n != 1 {
		t.Fatalf("reveal toggle added %d times", n)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	f := newFixture(t)

	f.overlay.Start()
	f.overlay.Start()
	f.overlay.Stop()
	f.overlay.Stop()

	if f.transport.detached != 3 {
		t.Fatalf("detached %d hooks, want 3", f.transport.detached)
	}

	// A stopped overlay ignores events and rescans.
	f.renderer.messages = []model.RenderedMessage{
		{ID: "m5", ConversationID: "dm", Content: "plain" + signature.Marker(model.HandshakeRequest)},
	}
	f.overlay.Rescan("dm")
	if len(f.renderer.replaced["m5"]) != 0 {
		t.Fatal("stopped overlay still rewrites messages")
	}
}

func TestUploadRoundTrip(t *testing.T) {
	f := newFixture(t)
	peer := f.enableEncryption(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("attachment body "), 64<<10/16)
	up := f.overlay.ProcessUpload(ctx, "dm", model.PendingUpload{
		Name:        "photo.jpg",
		ContentType: "image/jpeg",
		Data:        payload,
	})

	if up.Name != "photo.jpg.txt" {
		t.Fatalf("name = %q", up.Name)
	}
	if up.ContentType != "text/plain" {
		t.Fatalf("content type = %q", up.ContentType)
	}
	if !strings.HasPrefix(string(up.Data), "%.jpg%\n") {
		t.Fatalf("missing extension header: %q", string(up.Data[:32]))
	}
	if !IsEncryptedAttachment(up.Name, up.ContentType) {
		t.Fatal("upload not detected as encrypted")
	}

	// The downloader on the other end recovers the original with the
	// peer's private key.
	f.fetcher.data = up.Data
	down := New(Deps{
		Conversations: &fakeConversations{},
		Transport:     &fakeTransport{},
		Renderer:      newFakeRenderer(),
		Notifier:      &fakeNotifier{},
		Fetcher:       f.fetcher,
		Store:         peerstore.New(kv.NewMemory()),
		Engine:        f.engine,
	})
	if err := down.store.SaveMyKeys(ctx, peer); err != nil {
		t.Fatalf("save peer keys: %v", err)
	}
	rec, err := down.DownloadDecrypted(ctx, "https://cdn.example/photo.jpg.txt", "photo.jpg.txt")
	if err != nil {
		t.Fatalf("download decrypted: %v", err)
	}
	if rec.Name != "photo.jpg" {
		t.Fatalf("recovered name = %q", rec.Name)
	}
	if rec.Ext != ".jpg" || !rec.Preview {
		t.Fatalf("ext = %q preview = %v", rec.Ext, rec.Preview)
	}
	if !bytes.Equal(rec.Data, payload) {
		t.Fatal("recovered bytes differ from original")
	}
}

func TestUploadPassThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No handshake yet.
	plain := model.PendingUpload{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("pdf")}
	if up := f.overlay.ProcessUpload(ctx, "dm", plain); up.Name != "doc.pdf" {
		t.Fatalf("upload rewritten without encryption enabled: %q", up.Name)
	}

	// Oversized files skip encryption even with encryption on.
	f.enableEncryption(t)
	huge := model.PendingUpload{Name: "video.mp4", ContentType: "video/mp4", Data: make([]byte, maxAttachmentBytes)}
	if up := f.overlay.ProcessUpload(ctx, "dm", huge); up.Name != "video.mp4" {
		t.Fatalf("oversized upload was rewritten: %q", up.Name)
	}
}

func TestDecorate(t *testing.T) {
	cases := []struct {
		content string
		icon    string
	}{
		{"hello" + signature.Marker(model.PlainTagged), "open"},
		{"banner" + signature.Marker(model.HandshakeAccept), "protocol"},
		{signature.CiphertextPrefix + "\nbody", "safe"},
		{"just text", "unsafe"},
	}
	for _, c := range cases {
		if got := Decorate(c.content); got.Icon != c.icon {
			t.Fatalf("Decorate(%q).Icon = %q, want %q", c.content, got.Icon, c.icon)
		}
	}
}
