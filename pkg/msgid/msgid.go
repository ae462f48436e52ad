// Package msgid generates time-ordered message identifiers. Unlike the
// random UUIDv4 the teacher uses for its domain records, message ids must
// sort by creation time so the Message Processor can bucket and range-scan
// a conversation's log without a separate timestamp index (spec §4.D).
package msgid

import "github.com/google/uuid"

// New returns a new UUIDv7 message id. UUIDv7 embeds a millisecond
// timestamp in its high bits, so lexical and chronological order agree.
func New() (uuid.UUID, error) {
	return uuid.NewV7()
}

// MustNew is New but panics on entropy-source failure, for call sites
// that cannot meaningfully continue without an id (mirrors the teacher's
// use of uuid.New() at construction time, which has the same property).
func MustNew() uuid.UUID {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}
