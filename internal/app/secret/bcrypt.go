package secret

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes and verifies link passwords.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher using the given cost, or bcrypt.DefaultCost when cost is 0.
func NewBcrypt(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
