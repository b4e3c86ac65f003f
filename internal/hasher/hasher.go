// hasher — хэширование учётных данных пользователей (bcrypt).
package hasher

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt хэширует пароли с заданной стоимостью.
type Bcrypt struct {
	cost int
}

// New создаёт хэшер. cost вне [bcrypt.MinCost, bcrypt.MaxCost] заменяется на bcrypt.DefaultCost.
func New(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Bcrypt{cost: cost}
}

// Hash хэширует пароль с помощью bcrypt.
func (b *Bcrypt) Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", fmt.Errorf("hasher: %w", err)
	}

	return string(bytes), nil
}

// Compare сверяет пароль с bcrypt-хэшем.
func (b *Bcrypt) Compare(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// RandomSecret возвращает случайную строку для учётных записей, под которыми нельзя войти.
func RandomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("hasher: random secret: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
