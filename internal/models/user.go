package models

import "time"

const (
	// RoleUser: обычный пользователь.
	RoleUser = "user"
	// RoleAdmin: администратор.
	RoleAdmin = "admin"
)

// User: пользователь системы.
type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Username            string    `json:"username"`
	PasswordHash        string    `json:"-"`
	Role                string    `json:"role"`
	ExternalCustomerRef *string   `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
}
