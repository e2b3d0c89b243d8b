package imaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"TrendIllustrator/internal/ports"
)

// DefaultMinImageBytes guards against truncated or placeholder downloads.
const DefaultMinImageBytes int64 = 15 * 1024

// acceptedExtensions is the image-format set an artifact key may carry.
var acceptedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Validator is the sole gate for "does this story already have a usable
// image". The checks run in order and short-circuit: existence, minimum
// size, accepted format.
type Validator struct {
	store    ports.BlobStore
	minBytes int64
	logger   *slog.Logger
}

// NewValidator wires the blob store the predicate inspects. minBytes <= 0
// falls back to DefaultMinImageBytes.
func NewValidator(store ports.BlobStore, minBytes int64, logger *slog.Logger) *Validator {
	if minBytes <= 0 {
		minBytes = DefaultMinImageBytes
	}
	return &Validator{store: store, minBytes: minBytes, logger: logger}
}

// MinBytes exposes the size threshold for candidate payload checks.
func (v *Validator) MinBytes() int64 {
	return v.minBytes
}

// IsValid reports whether a usable artifact is stored under key. It is
// re-applied after every write; a write is never assumed to have succeeded.
func (v *Validator) IsValid(ctx context.Context, key string) bool {
	ok, err := v.store.Exists(ctx, key)
	if err != nil || !ok {
		return false
	}

	info, err := v.store.Stat(ctx, key)
	if err != nil {
		return false
	}
	if info.Size < v.minBytes {
		v.debug("artifact below size threshold", "key", key, "size", info.Size, "min", v.minBytes)
		return false
	}

	return acceptedExtensions[strings.ToLower(filepath.Ext(key))]
}

// CheckPayload vets candidate bytes before they are written under key:
// size threshold, accepted key extension, and an image content sniff.
func (v *Validator) CheckPayload(key string, data []byte) error {
	if int64(len(data)) < v.minBytes {
		return fmt.Errorf("payload %d bytes, below %d byte minimum", len(data), v.minBytes)
	}
	if !acceptedExtensions[strings.ToLower(filepath.Ext(key))] {
		return fmt.Errorf("key %s has no accepted image extension", key)
	}
	if kind := http.DetectContentType(data); !strings.HasPrefix(kind, "image/") {
		return fmt.Errorf("payload sniffed as %s, not an image", kind)
	}
	return nil
}

func (v *Validator) debug(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}
