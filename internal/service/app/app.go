// Package app is the demo client: a terminal chat UI that embeds the
// confidentiality overlay through the host ports. Everything the
// overlay needs from a host (transport hooks, rendering substitution,
// prompts) is implemented here against tview.
package app

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"cloak_chat/internal/cryptographic/pgpengine"
	"cloak_chat/internal/host"
	"cloak_chat/internal/model"
	"cloak_chat/internal/repository/peerstore"
	userRepo "cloak_chat/internal/repository/user"
	"cloak_chat/internal/service/overlay"
	"cloak_chat/internal/utils/log"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField
		status  *tview.TextView

		serverAddr string

		userRepo *userRepo.Repo
		user     *model.User
		toName   string

		store   *peerstore.Store
		engine  *pgpengine.Engine
		overlay *overlay.Overlay

		conn *websocket.Conn

		mu            sync.Mutex
		messages      []model.RenderedMessage
		index         map[string]int
		originals     map[string]string
		revealed      map[string]bool
		nextHook      int
		outgoing      map[int]host.OutgoingInterceptor
		uploads       map[int]host.UploadInterceptor
		subscribers   map[int]host.EventSubscriber
		pendingAnswer func(model.Preference)
	}
)

func NewApp(serverAddr string, userRepo *userRepo.Repo, store *peerstore.Store) *App {
	a := &App{
		app:         tview.NewApplication(),
		serverAddr:  serverAddr,
		userRepo:    userRepo,
		store:       store,
		engine:      pgpengine.New(),
		index:       make(map[string]int),
		originals:   make(map[string]string),
		revealed:    make(map[string]bool),
		outgoing:    make(map[int]host.OutgoingInterceptor),
		uploads:     make(map[int]host.UploadInterceptor),
		subscribers: make(map[int]host.EventSubscriber),
	}
	a.overlay = overlay.New(overlay.Deps{
		Conversations: a,
		Transport:     a,
		Renderer:      a,
		Notifier:      a,
		Fetcher:       a,
		Store:         store,
		Engine:        a.engine,
	})
	return a
}

func (a *App) Run(ctx context.Context, name string) {
	u, err := a.getUserAndCreateIfNotExist(ctx, name)
	if err != nil {
		log.Fatal("get user info failed", zap.Error(err))
	}
	a.user = u

	var toName string
	fmt.Print("Enter recipient's name: ")
	if _, err := fmt.Scan(&toName); err != nil {
		fmt.Println("error:", err)
		return
	}
	a.toName = toName

	if peer, err := a.lookupPeer(toName); err != nil {
		log.Error("peer lookup failed", zap.Error(err))
	} else if peer == nil {
		fmt.Printf("%s has not registered yet; messages will wait in their mailbox\n", toName)
	}

	a.conn, err = a.initWebhook(a.user.Name)
	if err != nil {
		log.Fatal("init webhook to server failed", zap.Error(err))
	}

	a.overlay.Start()

	go a.listenOnWebhook()
	a.renderUI()
}

func (a *App) Stop() {
	a.overlay.Stop()
	if a.conn != nil {
		a.conn.Close()
	}
	a.app.Stop()
}

// blocking function
func (a *App) renderUI() {
	a.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", a.toName))

	a.status = tview.NewTextView().SetDynamicColors(true)
	a.status.SetText("[gray]/encrypt  /disable  /trust <yes|no|never>  /reveal <n>[-]")

	a.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	a.input.SetBorder(true).SetTitle(" New Message ")

	a.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := a.input.GetText()
			if text == "" {
				return
			}
			a.input.SetText("")
			a.submit(text)
		}
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.chatbox, 0, 1, false).
		AddItem(a.status, 1, 0, false).
		AddItem(a.input, 3, 0, true)

	if err := a.app.SetRoot(layout, true).SetFocus(a.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

func (a *App) submit(text string) {
	if strings.HasPrefix(text, "/") {
		a.runCommand(text)
		return
	}

	go func(msg string) {
		ctx := context.Background()
		content := msg
		keep := true
		for _, ic := range a.outgoingHooks() {
			content, keep = ic(ctx, a.toName, content)
			if !keep {
				return
			}
		}

		if err := a.SendMessage(ctx, a.toName, content); err != nil {
			a.setStatus(fmt.Sprintf("[red]send failed: %v[-]", err))
			return
		}

		// The local echo shows what was typed, not what went on the
		// wire.
		a.appendMessage(model.RenderedMessage{
			ID:             uuid.NewString(),
			ConversationID: a.toName,
			AuthorID:       a.user.Name,
			AuthorName:     "You",
			Content:        msg,
		})
	}(text)
}

func (a *App) runCommand(text string) {
	fields := strings.Fields(text)
	ctx := context.Background()

	switch fields[0] {
	case "/encrypt":
		go func() {
			if err := a.overlay.RequestEncryption(ctx, a.toName); err != nil {
				a.setStatus(fmt.Sprintf("[red]%v[-]", err))
			}
		}()

	case "/disable":
		go func() {
			if err := a.overlay.DisableEncryption(ctx, a.toName); err != nil {
				a.setStatus(fmt.Sprintf("[red]%v[-]", err))
			}
		}()

	case "/trust":
		if len(fields) < 2 {
			a.setStatus("[red]usage: /trust <yes|no|never>[-]")
			return
		}
		a.answerPrompt(fields[1])

	case "/attach":
		if len(fields) < 2 {
			a.setStatus("[red]usage: /attach <path>[-]")
			return
		}
		go a.sendAttachment(ctx, fields[1])

	case "/reveal":
		if len(fields) < 2 {
			a.setStatus("[red]usage: /reveal <n>[-]")
			return
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			a.setStatus("[red]usage: /reveal <n>[-]")
			return
		}
		a.toggleReveal(n)

	default:
		a.setStatus(fmt.Sprintf("[red]unknown command %s[-]", fields[0]))
	}
}

func (a *App) answerPrompt(answer string) {
	a.mu.Lock()
	cb := a.pendingAnswer
	a.pendingAnswer = nil
	a.mu.Unlock()

	if cb == nil {
		a.setStatus("[red]no pending encryption prompt[-]")
		return
	}

	switch answer {
	case "yes":
		cb(model.PreferenceYes)
	case "no":
		cb(model.PreferenceNo)
	case "never":
		cb(model.PreferenceNever)
	default:
		a.setStatus("[red]usage: /trust <yes|no|never>[-]")
		return
	}
	a.setStatus("")
}

// sendAttachment runs a local file through the upload hooks. The demo
// wire only carries text, so only files the overlay turned into armored
// text actually go out; anything still binary is refused.
func (a *App) sendAttachment(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		a.setStatus(fmt.Sprintf("[red]read attachment: %v[-]", err))
		return
	}

	up := model.PendingUpload{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}
	for _, ic := range a.uploadHooks() {
		up = ic(ctx, a.toName, up)
	}

	if !overlay.IsEncryptedAttachment(up.Name, up.ContentType) {
		a.setStatus("[red]attachment was not encrypted; not sending over the demo wire[-]")
		return
	}

	if err := a.SendMessage(ctx, a.toName, string(up.Data)); err != nil {
		a.setStatus(fmt.Sprintf("[red]send attachment: %v[-]", err))
		return
	}
	a.setStatus(fmt.Sprintf("[gray]sent encrypted attachment %s[-]", up.Name))
}

func (a *App) listenOnWebhook() {
	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			log.Debug("client web socket closed", zap.Error(err))
			a.conn.Close()
			break
		}

		frame, err := decodeFrame(data)
		if err != nil {
			log.Error("unmarshal frame failed", zap.Error(err))
			continue
		}

		msg := model.IncomingMessage{
			ID:             frame.ID,
			ConversationID: a.toName,
			AuthorID:       frame.From,
			AuthorName:     frame.From,
			Content:        frame.Content,
		}
		a.appendMessage(model.RenderedMessage(msg))
		a.dispatch(host.Event{Kind: host.EventMessageCreated, Message: &msg})
	}
}
