/*
Package ident derives stable deduplication keys for announcements.
*/
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shanehull/grantwatch/internal/types"
)

// Resolve returns the first non-empty identifier candidate, or a content hash
// over title and link when the source supplies none.
func Resolve(a types.Announcement) string {
	for _, c := range a.IDCandidates {
		if id := collapse(c); id != "" {
			return id
		}
	}
	if !a.Usable() {
		return ""
	}
	return ContentHash(a.Title, a.Link)
}

// ContentHash is the hex sha256 of "title|link" with whitespace runs collapsed.
func ContentHash(title, link string) string {
	sum := sha256.Sum256([]byte(collapse(title) + "|" + collapse(link)))
	return hex.EncodeToString(sum[:])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
