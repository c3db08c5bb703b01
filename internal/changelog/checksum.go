package changelog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"

	"github.com/warpdb/warp/internal/script"
)

// Checksum returns the lower-case hex SHA-256 of the canonical form of the
// change set's actions. The canonical form is the compact XML encoding of
// each action in order, with raw SQL in script.Canonical form. Whitespace
// between elements of the source document, the layout of raw SQL and its
// "--" comments do not affect the result. The id is not part of the
// checksum.
func Checksum(cs ChangeSet) (string, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := encodeActions(enc, canonical(cs.Actions)); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func canonical(actions []Action) []Action {
	out := make([]Action, len(actions))
	for i, a := range actions {
		if r, ok := a.(RunSQL); ok {
			r.SQL = script.Canonical(r.SQL)
			a = r
		}
		out[i] = a
	}
	return out
}
