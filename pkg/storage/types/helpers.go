package types

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// NewHandleID creates a short random handle id, hex(blake3(uuid())[:8]).
func NewHandleID() string {
	u := uuid.New()
	hash := blake3.Sum256(u[:])
	return hex.EncodeToString(hash[:8])
}

// Fingerprint is a stable, non-reversible id for a connection string.
func Fingerprint(uri string) string {
	hash := blake3.Sum256([]byte("uri:" + uri))
	return hex.EncodeToString(hash[:6])
}

// RedactURI returns "hosts#fingerprint" so a connection string can be logged
// without its credentials or options.
func RedactURI(uri string) string {
	fp := Fingerprint(uri)
	cs, err := connstring.Parse(uri)
	if err != nil || len(cs.Hosts) == 0 {
		return "#" + fp
	}
	return strings.Join(cs.Hosts, ",") + "#" + fp
}

// DatabaseFromURI returns the database named by a connection string, or
// fallback when it names none or cannot be parsed.
func DatabaseFromURI(uri, fallback string) string {
	cs, err := connstring.Parse(uri)
	if err != nil || cs.Database == "" {
		return fallback
	}
	return cs.Database
}
