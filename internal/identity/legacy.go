package identity

import "golang.org/x/crypto/bcrypt"

// credentialAlgoBcrypt marks rows written before the argon2id migration.
// Verification still accepts them; new credentials never use this path.
const credentialAlgoBcrypt = "bcrypt"

// verifyPasswordBcrypt checks a legacy bcrypt-hashed credential. Kept
// so accounts created by earlier deployments keep authenticating; a
// successful login does not re-hash them to argon2id.
func verifyPasswordBcrypt(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
