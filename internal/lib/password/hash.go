// Package password хеширует и проверяет пароли bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinLength: минимальная длина пароля учётной записи.
const MinLength = 8

// ErrTooShort: пароль короче MinLength.
var ErrTooShort = errors.New("password is too short")

// GetHash возвращает bcrypt-хэш пароля. Пароли короче MinLength отклоняются.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	if len(password) < MinLength {
		return "", fmt.Errorf("%s: %w", op, ErrTooShort)
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash возвращает nil, если пароль соответствует хэшу.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
