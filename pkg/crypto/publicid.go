package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const publicIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const publicIDRandomLength = 6

// UserIDPrefix is the public identifier prefix for user records.
const UserIDPrefix = "USR"

// GeneratePublicID builds an unguessable external identifier of the form
// PREFIX-<epochSeconds>-<6 chars from [A-Z0-9]>, e.g. USR-1733707200-A7X9F2.
func GeneratePublicID(prefix string) (string, error) {
	random, err := randomString(publicIDRandomLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), random), nil
}

// GenerateUserPublicID builds a public identifier for a user record.
func GenerateUserPublicID() (string, error) {
	return GeneratePublicID(UserIDPrefix)
}

func randomString(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(publicIDAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = publicIDAlphabet[n.Int64()]
	}
	return string(out), nil
}
