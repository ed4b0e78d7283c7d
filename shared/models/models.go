package models

import "time"

// User is the write model of an account. PasswordHash never leaves the service.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	AuthToken          string     `json:"auth_token"`
	ConfirmationToken  string     `json:"confirmation_token"`
	ConfirmationSentAt time.Time  `json:"confirmation_sent_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Confirmed reports whether the email address has been confirmed.
func (u *User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

// Note is a record owned by a user and removed together with it.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
