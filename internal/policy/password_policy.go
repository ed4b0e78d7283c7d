// Package policy holds the account validation rules applied before any
// mutation: email plausibility, password length bounds and confirmation.
package policy

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMinLength is the minimum password length.
const DefaultMinLength = 8

// MaxLength is the longest password bcrypt accepts, in bytes.
const MaxLength = 72

// ValidationError collects every failed rule in evaluation order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// PasswordPolicy validates signup and reset input.
type PasswordPolicy struct {
	minLength int
	validate  *validator.Validate
}

func NewPasswordPolicy(minLength int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &PasswordPolicy{minLength: minLength, validate: validator.New()}
}

func (p *PasswordPolicy) MinLength() int { return p.minLength }

// CheckSignup validates email, then length, then confirmation.
func (p *PasswordPolicy) CheckSignup(email, password, confirmation string) error {
	var msgs []string
	msgs = p.appendEmail(msgs, "Email", email)
	msgs = p.appendLength(msgs, "Password", password)
	msgs = p.appendConfirmation(msgs, "Password", password, confirmation)
	return result(msgs)
}

// CheckReset validates confirmation, then length, then email. The order is
// the same whether or not the account exists.
func (p *PasswordPolicy) CheckReset(email, newPassword, confirmation string) error {
	var msgs []string
	msgs = p.appendConfirmation(msgs, "New password", newPassword, confirmation)
	msgs = p.appendLength(msgs, "New password", newPassword)
	msgs = p.appendEmail(msgs, "Email", email)
	return result(msgs)
}

// CheckEmail validates a bare address.
func (p *PasswordPolicy) CheckEmail(email string) error {
	return result(p.appendEmail(nil, "Email", email))
}

func (p *PasswordPolicy) appendEmail(msgs []string, label, email string) []string {
	if err := p.validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		return append(msgs, label+" is invalid")
	}
	return msgs
}

func (p *PasswordPolicy) appendLength(msgs []string, label, password string) []string {
	if err := p.validate.Var(password, "min="+strconv.Itoa(p.minLength)); err != nil {
		return append(msgs, label+" is too short (minimum is "+strconv.Itoa(p.minLength)+" characters)")
	}
	if len(password) > MaxLength {
		return append(msgs, label+" is too long (maximum is "+strconv.Itoa(MaxLength)+" characters)")
	}
	return msgs
}

func (p *PasswordPolicy) appendConfirmation(msgs []string, label, password, confirmation string) []string {
	if err := p.validate.VarWithValue(confirmation, password, "eqcsfield"); err != nil {
		return append(msgs, label+" confirmation doesn't match "+label)
	}
	return msgs
}

func result(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{Messages: msgs}
}
