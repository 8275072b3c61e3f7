package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"cloak_chat/internal/model"
)

func (a *App) initWebhook(name string) (*websocket.Conn, error) {
	params := url.Values{
		"userID": []string{name},
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     a.serverAddr,
		Path:     "/init",
		RawQuery: params.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

func (a *App) lookupPeer(name string) (*model.User, error) {
	u := url.URL{
		Scheme: "http",
		Host:   a.serverAddr,
		Path:   fmt.Sprintf("/users/%s", name),
	}

	resp, err := http.Get(u.String())
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer lookup: unexpected status %d", resp.StatusCode)
	}

	var peer model.User
	if err := json.NewDecoder(resp.Body).Decode(&peer); err != nil {
		return nil, err
	}

	return &peer, nil
}

// Fetch retrieves raw attachment bytes for the overlay's download
// path.
func (a *App) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func decodeFrame(data []byte) (*model.WireMessage, error) {
	var frame model.WireMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}
