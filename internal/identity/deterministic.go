// Package identity derives stable IDs for synchronized documents.
package identity

import (
	"path/filepath"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers prefix keys by kind so different entities never share a key.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// DocumentUUID identifies the document stored at path. Equivalent spellings
// of the same path map to the same ID.
func DocumentUUID(path string) uuid.UUID {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return uuid.Nil
	}
	return UUID("mdsync:document:" + filepath.ToSlash(filepath.Clean(trimmed)))
}

// SessionUUID identifies one presentation surface attached to a document.
func SessionUUID(documentID uuid.UUID, surface string) uuid.UUID {
	surface = strings.ToLower(strings.TrimSpace(surface))
	if documentID == uuid.Nil || surface == "" {
		return uuid.Nil
	}
	return UUID("mdsync:session:" + documentID.String() + ":" + surface)
}
