package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// argon2Params are tuned so verification takes roughly 100ms+ on typical
// server hardware (spec §4.A), per the RFC 9106 "moderate" profile.
type argon2Params struct {
	memoryKiB  uint32
	iterations uint32
	threads    uint8
	keyLen     uint32
	saltLen    int
}

var defaultArgon2Params = argon2Params{
	memoryKiB:  64 * 1024,
	iterations: 3,
	threads:    2,
	keyLen:     32,
	saltLen:    16,
}

const credentialAlgoArgon2id = "argon2id"

// hashPasswordArgon2 derives a salted argon2id verifier for the given
// password. The salt is random and per-user, matching spec §4.A.
func hashPasswordArgon2(password string) (hash string, salt []byte, err error) {
	salt = make([]byte, defaultArgon2Params.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", nil, fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, defaultArgon2Params.iterations,
		defaultArgon2Params.memoryKiB, defaultArgon2Params.threads, defaultArgon2Params.keyLen)

	return base64.RawStdEncoding.EncodeToString(key), salt, nil
}

// verifyPasswordArgon2 recomputes the argon2id key from the supplied
// password and salt and compares it to the stored hash in constant time.
func verifyPasswordArgon2(password, hash string, salt []byte) bool {
	want, err := base64.RawStdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, defaultArgon2Params.iterations,
		defaultArgon2Params.memoryKiB, defaultArgon2Params.threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(want, got) == 1
}
