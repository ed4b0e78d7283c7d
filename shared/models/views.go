package models

import "time"

// UserView is the representation returned to the account owner after signup.
// It never exposes PasswordHash.
type UserView struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	AuthToken          string     `json:"auth_token"`
	ConfirmationToken  string     `json:"confirmation_token"`
	ConfirmationSentAt time.Time  `json:"confirmation_sent_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Session is the cached projection of an authenticated identity.
// TokenHash is the SHA-256 of the auth token; the token itself is not cached.
type Session struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	TokenHash string `json:"tokenHash"`
}

// ToView builds the public representation of u.
func (u *User) ToView() *UserView {
	return &UserView{
		ID:                 u.ID,
		Email:              u.Email,
		AuthToken:          u.AuthToken,
		ConfirmationToken:  u.ConfirmationToken,
		ConfirmationSentAt: u.ConfirmationSentAt,
		ConfirmedAt:        u.ConfirmedAt,
		CreatedAt:          u.CreatedAt,
	}
}
