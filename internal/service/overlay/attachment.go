package overlay

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"cloak_chat/internal/cryptographic/compression"
	"cloak_chat/internal/cryptographic/pgpengine"
	"cloak_chat/internal/model"
	"cloak_chat/internal/signature"
	"cloak_chat/internal/utils/log"
)

const (
	// maxAttachmentBytes is the ceiling above which files pass through
	// unencrypted.
	maxAttachmentBytes = 10 << 20

	// encryptedSuffix / encryptedContentType are the detection
	// convention: the generic text type keeps the host from trying to
	// preview ciphertext as media.
	encryptedSuffix      = ".txt"
	encryptedContentType = "text/plain"
)

var (
	ErrNotEncryptedPayload = errors.New("downloaded content carries no armored message")

	imagePattern = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|bmp|webp|svg|tiff?)$`)
	videoPattern = regexp.MustCompile(`(?i)\.(mp4|webm|ogg|mov|avi|mkv|flv|wmv|m4v)$`)
	audioPattern = regexp.MustCompile(`(?i)\.(mp3|wav|ogg|flac|aac|m4a|wma|aiff)$`)
)

// ProcessUpload encrypts an outgoing attachment when the conversation
// has encryption enabled. The payload is compressed, encrypted for
// both peer and self (so the sender can open their own file later),
// prefixed with a %ext% header carrying the original extension, and
// renamed. Anything that cannot be encrypted passes through unchanged.
func (o *Overlay) ProcessUpload(ctx context.Context, conversationID string, up model.PendingUpload) model.PendingUpload {
	if len(up.Data) >= maxAttachmentBytes {
		return up
	}

	conv, err := o.conversations.Lookup(ctx, conversationID)
	if err != nil || conv.Kind != model.ConversationDirect {
		return up
	}
	rec, err := o.store.PeerRecord(ctx, conv.CounterpartID)
	if err != nil || rec == nil || !rec.EncryptionEnabled || rec.PublicKey == "" {
		return up
	}
	keys, err := o.store.MyKeys(ctx)
	if err != nil || keys == nil {
		return up
	}

	packed, err := compression.Compress(up.Data)
	if err != nil {
		log.Error("attachment compression failed, uploading original", zap.Error(err))
		return up
	}
	armored, err := o.engine.EncryptBytes(packed, rec.PublicKey, keys.PublicKey)
	if err != nil {
		log.Error("attachment encryption failed, uploading original", zap.Error(err))
		return up
	}

	body := "%" + path.Ext(up.Name) + "%\n" + armored
	return model.PendingUpload{
		Name:        up.Name + encryptedSuffix,
		ContentType: encryptedContentType,
		Data:        []byte(body),
	}
}

// IsEncryptedAttachment detects the upload convention on the receiving
// side. The armor itself is only verified once the bytes are fetched.
func IsEncryptedAttachment(name, contentType string) bool {
	return strings.HasSuffix(name, encryptedSuffix) && contentType == encryptedContentType
}

// DownloadDecrypted runs the user-initiated recovery path: fetch,
// decrypt, decompress, and report whether the recovered extension is
// previewable media.
func (o *Overlay) DownloadDecrypted(ctx context.Context, url, filename string) (*model.RecoveredAttachment, error) {
	keys, err := o.store.MyKeys(ctx)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, pgpengine.ErrKeyNotFound
	}

	raw, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment: %w", err)
	}
	text := string(raw)

	idx := strings.Index(text, signature.CiphertextPrefix)
	if idx < 0 {
		return nil, ErrNotEncryptedPayload
	}

	ext := encryptedSuffix
	if parts := strings.SplitN(text, "%", 3); len(parts) == 3 {
		ext = parts[1]
	}

	packed, err := o.engine.DecryptBytes(text[idx:], keys.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt attachment: %w", err)
	}
	data, err := compression.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("decompress attachment: %w", err)
	}

	return &model.RecoveredAttachment{
		Name:    strings.TrimSuffix(filename, encryptedSuffix),
		Ext:     ext,
		Data:    data,
		Preview: isPreviewable(ext),
	}, nil
}

func isPreviewable(ext string) bool {
	return imagePattern.MatchString(ext) || videoPattern.MatchString(ext) || audioPattern.MatchString(ext)
}
