package peerstore

import (
	"context"
	"encoding/json"
	"fmt"

	"cloak_chat/internal/model"
	"cloak_chat/internal/service/kv"
)

const (
	myKeysKey      = "cloak_my_keys"
	peerKeysKey    = "cloak_user_keys"
	preferencesKey = "cloak_user_preferences"
)

type (
	// Store persists the local identity keypair, per-peer records and
	// per-peer prompt preferences over a KV port. Writes are
	// read-modify-write with last-write-wins semantics; there is no
	// cross-caller locking.
	Store struct {
		kv kv.Store
	}
)

func New(store kv.Store) *Store {
	return &Store{
		kv: store,
	}
}

// MyKeys returns the local identity, or nil when none was generated yet.
func (s *Store) MyKeys(ctx context.Context) (*model.Keypair, error) {
	raw, ok, err := s.kv.Get(ctx, myKeysKey)
	if err != nil || !ok {
		return nil, err
	}

	var kp model.Keypair
	if err := json.Unmarshal([]byte(raw), &kp); err != nil {
		return nil, fmt.Errorf("unmarshal my keys: %w", err)
	}
	return &kp, nil
}

func (s *Store) SaveMyKeys(ctx context.Context, kp *model.Keypair) error {
	data, err := json.Marshal(kp)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, myKeysKey, string(data))
}

// PeerRecord returns the stored record for a peer, or nil when the peer
// never completed a handshake with us.
func (s *Store) PeerRecord(ctx context.Context, peerID string) (*model.PeerRecord, error) {
	records, err := s.peerRecords(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := records[peerID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// SavePeerKey stores a peer's public key and marks encryption enabled,
// as both a received Request and a received Accept do.
func (s *Store) SavePeerKey(ctx context.Context, peerID, publicKey string) error {
	records, err := s.peerRecords(ctx)
	if err != nil {
		return err
	}
	records[peerID] = model.PeerRecord{PublicKey: publicKey, EncryptionEnabled: true}
	return s.savePeerRecords(ctx, records)
}

// DisablePeer turns encryption off for a peer. The key is retained so a
// later re-enable does not need a fresh handshake payload.
func (s *Store) DisablePeer(ctx context.Context, peerID string) error {
	records, err := s.peerRecords(ctx)
	if err != nil {
		return err
	}
	rec, ok := records[peerID]
	if !ok {
		return nil
	}
	rec.EncryptionEnabled = false
	records[peerID] = rec
	return s.savePeerRecords(ctx, records)
}

func (s *Store) Preference(ctx context.Context, peerID string) (model.Preference, error) {
	prefs, err := s.preferences(ctx)
	if err != nil {
		return model.PreferenceUnset, err
	}
	return prefs[peerID], nil
}

func (s *Store) SavePreference(ctx context.Context, peerID string, pref model.Preference) error {
	prefs, err := s.preferences(ctx)
	if err != nil {
		return err
	}
	prefs[peerID] = pref
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, preferencesKey, string(data))
}

func (s *Store) peerRecords(ctx context.Context) (map[string]model.PeerRecord, error) {
	records := make(map[string]model.PeerRecord)
	raw, ok, err := s.kv.Get(ctx, peerKeysKey)
	if err != nil || !ok {
		return records, err
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("unmarshal peer records: %w", err)
	}
	return records, nil
}

func (s *Store) savePeerRecords(ctx context.Context, records map[string]model.PeerRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, peerKeysKey, string(data))
}

func (s *Store) preferences(ctx context.Context) (map[string]model.Preference, error) {
	prefs := make(map[string]model.Preference)
	raw, ok, err := s.kv.Get(ctx, preferencesKey)
	if err != nil || !ok {
		return prefs, err
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	return prefs, nil
}
