package trigger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Domain prefixes for content-addressed identity. The version suffix
// leaves room for an algorithm change.
const (
	DomainTrigger = "keytrigger/trigger/v1"
	DomainKey     = "keytrigger/key/v1"
)

// keyNamespace scopes key uids so they never collide with other UUIDv5
// users of the same canonical bytes.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte(DomainKey))

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content address of t. Two triggers with equal values
// hash identically regardless of how they were built.
func Hash(t Trigger) (string, error) {
	canonical, err := MarshalCanonical(t)
	if err != nil {
		return "", fmt.Errorf("trigger hash: %w", err)
	}
	return hashWithDomain(DomainTrigger, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when t is known to be valid.
func MustHash(t Trigger) string {
	h, err := Hash(t)
	if err != nil {
		panic(err)
	}
	return h
}

// AssignUID returns k with a uid that no key in existing uses.
//
// The uid is a UUIDv5 over the key's canonical identity (every field except
// uid and click type) and an occurrence counter, so rebuilding the same
// trigger in the same order yields the same uids.
func AssignUID(k Key, existing []Key) Key {
	identity := WithClickType(WithUID(k, ""), ShortPress)
	doc := keyToDocument(identity)
	data, err := Canonical(doc)
	if err != nil {
		// Key documents hold only strings, ints and bools.
		panic(fmt.Sprintf("assign uid: %v", err))
	}
	taken := make(map[string]bool, len(existing))
	for _, e := range existing {
		taken[e.KeyUID()] = true
	}
	for n := 0; ; n++ {
		name := append(append([]byte{}, data...), fmt.Sprintf("#%d", n)...)
		uid := uuid.NewSHA1(keyNamespace, name).String()
		if !taken[uid] {
			return WithUID(k, uid)
		}
	}
}
