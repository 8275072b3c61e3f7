package peerstore

import (
	"context"
	"testing"

	"cloak_chat/internal/model"
	"cloak_chat/internal/service/kv"
)

func TestMyKeysAbsentThenPresent(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	kp, err := s.MyKeys(ctx)
	if err != nil {
		t.Fatalf("my keys: %v", err)
	}
	if kp != nil {
		t.Fatalf("expected nil keypair before save")
	}

	want := &model.Keypair{PrivateKey: "priv", PublicKey: "pub"}
	if err := s.SaveMyKeys(ctx, want); err != nil {
		t.Fatalf("save my keys: %v", err)
	}
	got, err := s.MyKeys(ctx)
	if err != nil {
		t.Fatalf("my keys after save: %v", err)
	}
	if got == nil || got.PrivateKey != "priv" || got.PublicKey != "pub" {
		t.Fatalf("keypair did not round-trip: %+v", got)
	}
}

func TestPeerRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	rec, err := s.PeerRecord(ctx, "alice")
	if err != nil {
		t.Fatalf("peer record: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no record for unknown peer")
	}

	if err := s.SavePeerKey(ctx, "alice", "armored-key"); err != nil {
		t.Fatalf("save peer key: %v", err)
	}
	rec, err = s.PeerRecord(ctx, "alice")
	if err != nil {
		t.Fatalf("peer record after save: %v", err)
	}
	if rec == nil || !rec.EncryptionEnabled || rec.PublicKey != "armored-key" {
		t.Fatalf("record after save: %+v", rec)
	}

	if err := s.DisablePeer(ctx, "alice"); err != nil {
		t.Fatalf("disable peer: %v", err)
	}
	rec, err = s.PeerRecord(ctx, "alice")
	if err != nil {
		t.Fatalf("peer record after disable: %v", err)
	}
	if rec == nil || rec.EncryptionEnabled {
		t.Fatalf("disable did not clear the flag: %+v", rec)
	}
	if rec.PublicKey != "armored-key" {
		t.Fatalf("disable must retain the key, got %q", rec.PublicKey)
	}
}

func TestDisableUnknownPeerIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())
	if err := s.DisablePeer(ctx, "nobody"); err != nil {
		t.Fatalf("disable unknown peer: %v", err)
	}
	rec, err := s.PeerRecord(ctx, "nobody")
	if err != nil {
		t.Fatalf("peer record: %v", err)
	}
	if rec != nil {
		t.Fatalf("disable must not create a record")
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	pref, err := s.Preference(ctx, "bob")
	if err != nil {
		t.Fatalf("preference: %v", err)
	}
	if pref != model.PreferenceUnset {
		t.Fatalf("expected unset preference, got %q", pref)
	}

	if err := s.SavePreference(ctx, "bob", model.PreferenceNever); err != nil {
		t.Fatalf("save preference: %v", err)
	}
	pref, err = s.Preference(ctx, "bob")
	if err != nil {
		t.Fatalf("preference after save: %v", err)
	}
	if pref != model.PreferenceNever {
		t.Fatalf("preference did not round-trip: %q", pref)
	}
}

func TestRecordsAreIndependentPerPeer(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	if err := s.SavePeerKey(ctx, "alice", "key-a"); err != nil {
		t.Fatalf("save alice: %v", err)
	}
	if err := s.SavePeerKey(ctx, "bob", "key-b"); err != nil {
		t.Fatalf("save bob: %v", err)
	}
	if err := s.DisablePeer(ctx, "alice"); err != nil {
		t.Fatalf("disable alice: %v", err)
	}

	bob, err := s.PeerRecord(ctx, "bob")
	if err != nil {
		t.Fatalf("bob record: %v", err)
	}
	if bob == nil || !bob.EncryptionEnabled || bob.PublicKey != "key-b" {
		t.Fatalf("disabling alice affected bob: %+v", bob)
	}
}
