package cqrs

// ---------- User queries ----------

// AuthenticateQuery resolves a presented auth token to an identity.
type AuthenticateQuery struct {
	Token string
}

// ---------- Note queries ----------

// ListNotesQuery fetches all notes belonging to a user.
type ListNotesQuery struct {
	UserID string
}

// SignInQuery exchanges credentials for the account's current auth token.
type SignInQuery struct {
	Email    string
	Password string
}
