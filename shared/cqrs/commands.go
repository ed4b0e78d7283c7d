package cqrs

type CreateUserCommand struct {
	Email                string
	Password             string
	PasswordConfirmation string
}

// DeleteUserCommand removes the authenticated caller's own account.
type DeleteUserCommand struct {
	UserID string
}

type ResetPasswordCommand struct {
	Email                   string
	NewPassword             string
	NewPasswordConfirmation string
}

type ConfirmEmailCommand struct {
	Token string
}

type ResendConfirmationCommand struct {
	Email string
}

type CreateNoteCommand struct {
	UserID  string
	Title   string
	Content string
}
