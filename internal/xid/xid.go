// Package xid generates prefixed identifiers such as "pay-1693...-af09b2c1".
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form "<prefix>-<unix nanos>-<random hex>". The
// timestamp keeps ids within a prefix roughly sortable by creation time.
func New(prefix string) string {
	var random [8]byte
	if _, err := rand.Read(random[:]); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(random[:]))
}
