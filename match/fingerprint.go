package match

import (
	"encoding/hex"
	"regexp"

	"lukechampine.com/blake3"
)

// Fingerprint is the content-derived identity of a logical change: the
// BLAKE3 hash of the normalized diff, hex encoded. Commits produced by a
// clean cherry-pick or rebase of the same change collide on it.
type Fingerprint string

// Sum fingerprints an already normalized diff. The empty normalized diff has
// no fingerprint.
func Sum(normalized []byte) Fingerprint {
	if len(normalized) == 0 {
		return ""
	}

	sum := blake3.Sum256(normalized)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

var (
	changeIDRe   = regexp.MustCompile(`(?m)^\s*Change-Id:\s*(I[0-9a-fA-F]{8,40})\s*$`)
	cherryPickRe = regexp.MustCompile(`\(cherry picked from commit ([0-9a-fA-F]{7,40})\)`)
)

// Tokens extracts the cross-reference tokens a backport workflow may have
// preserved in the commit message: Gerrit-style Change-Id trailers and the
// hash recorded by git cherry-pick -x. A cherry-pick hash doubles as an
// alternate key tying the copy to its original commit identifier.
func Tokens(message string) []string {
	var tokens []string
	for _, m := range changeIDRe.FindAllStringSubmatch(message, -1) {
		tokens = append(tokens, m[1])
	}

	for _, m := range cherryPickRe.FindAllStringSubmatch(message, -1) {
		tokens = append(tokens, m[1])
	}

	return tokens
}
