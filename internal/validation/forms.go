package validation

import "strings"

// Errors maps a form field to its human-readable violation messages.
// Validation is all-or-nothing: a submission either passes with no entries
// here, or nothing is persisted.
type Errors map[string][]string

// Add records a violation message for a field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Any reports whether any field has a violation.
func (e Errors) Any() bool {
	return len(e) > 0
}

// First returns the first violation for a field, or "".
func (e Errors) First(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// RegistrationForm carries a /register submission.
type RegistrationForm struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Normalize trims form-only whitespace. Passwords are left untouched since
// leading/trailing spaces may be intentional.
func (f *RegistrationForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

// Validate checks field-level rules. Uniqueness of username/email is
// checked against the store by the service layer, which appends to the
// same Errors map.
func (f *RegistrationForm) Validate() Errors {
	f.Normalize()
	errs := Errors{}

	if f.Username == "" {
		errs.Add("username", "Username is required.")
	} else if err := ValidateUsername(f.Username); err != nil {
		errs.Add("username", capitalize(err.Error()))
	}

	if f.Email == "" {
		errs.Add("email", "Email is required.")
	} else if err := ValidateEmail(f.Email); err != nil {
		errs.Add("email", capitalize(err.Error()))
	}

	if err := ValidatePassword(f.Password); err != nil {
		errs.Add("password", capitalize(err.Error()))
	}
	if f.Password != f.ConfirmPassword {
		errs.Add("confirm_password", "Passwords do not match.")
	}

	return errs
}

// LoginForm carries a /login submission.
type LoginForm struct {
	Email    string
	Password string
	Remember bool
}

func (f *LoginForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
}

func (f *LoginForm) Validate() Errors {
	f.Normalize()
	errs := Errors{}

	if err := ValidateEmail(f.Email); err != nil {
		errs.Add("email", capitalize(err.Error()))
	}
	if f.Password == "" {
		errs.Add("password", "Password is required.")
	}

	return errs
}

// AccountUpdateForm carries an /account submission. The profile image is
// handled separately as a multipart file.
type AccountUpdateForm struct {
	Username string
	Email    string
}

func (f *AccountUpdateForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

func (f *AccountUpdateForm) Validate() Errors {
	f.Normalize()
	errs := Errors{}

	if f.Username == "" {
		errs.Add("username", "Username is required.")
	} else if err := ValidateUsername(f.Username); err != nil {
		errs.Add("username", capitalize(err.Error()))
	}

	if f.Email == "" {
		errs.Add("email", "Email is required.")
	} else if err := ValidateEmail(f.Email); err != nil {
		errs.Add("email", capitalize(err.Error()))
	}

	return errs
}

// ResetRequestForm carries a /reset_password submission.
type ResetRequestForm struct {
	Email string
}

func (f *ResetRequestForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
}

func (f *ResetRequestForm) Validate() Errors {
	f.Normalize()
	errs := Errors{}

	if err := ValidateEmail(f.Email); err != nil {
		errs.Add("email", capitalize(err.Error()))
	}

	return errs
}

// ResetPasswordForm carries a /reset_password/:token submission. The
// "differs from current password" rule needs the stored hash and is
// enforced by the service layer.
type ResetPasswordForm struct {
	Password        string
	ConfirmPassword string
}

func (f *ResetPasswordForm) Validate() Errors {
	errs := Errors{}

	if err := ValidatePassword(f.Password); err != nil {
		errs.Add("password", capitalize(err.Error()))
	}
	if f.Password != f.ConfirmPassword {
		errs.Add("confirm_password", "Passwords do not match.")
	}

	return errs
}

// JournalEntryForm carries a /journal submission.
type JournalEntryForm struct {
	Title   string
	Mood    string
	Content string
}

func (f *JournalEntryForm) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Mood = strings.TrimSpace(f.Mood)
	f.Content = strings.TrimSpace(f.Content)
}

func (f *JournalEntryForm) Validate() Errors {
	f.Normalize()
	errs := Errors{}

	if f.Title == "" {
		errs.Add("title", "Title is required.")
	} else if len(f.Title) > 120 {
		errs.Add("title", "Title must not exceed 120 characters.")
	}
	if f.Content == "" {
		errs.Add("content", "Entry content is required.")
	}
	if len(f.Mood) > 40 {
		errs.Add("mood", "Mood must not exceed 40 characters.")
	}

	return errs
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
