package service

import (
	"context"
	"errors"
	"fmt"

	"haven/internal/auth"
	"haven/internal/cache"
	"haven/internal/mail"
	"haven/internal/middleware"
	"haven/internal/models"
	"haven/internal/repository"
	"haven/internal/storage"
	"haven/internal/validation"

	"gorm.io/gorm"
)

// AccountService implements registration, authentication, profile management
// and the password reset flow.
type AccountService struct {
	db      *gorm.DB
	users   repository.UserRepository
	hasher  *auth.PasswordHasher
	reset   *auth.ResetTokenCodec
	mailer  mail.Mailer
	avatars *storage.AvatarStore
	baseURL string
}

// NewAccountService wires an AccountService from its dependencies.
func NewAccountService(
	db *gorm.DB,
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	reset *auth.ResetTokenCodec,
	mailer mail.Mailer,
	avatars *storage.AvatarStore,
	baseURL string,
) *AccountService {
	return &AccountService{
		db:      db,
		users:   users,
		hasher:  hasher,
		reset:   reset,
		mailer:  mailer,
		avatars: avatars,
		baseURL: baseURL,
	}
}

// Register creates a new account. Field violations, including taken
// usernames and emails, come back in the Errors map; nothing is persisted
// unless it is empty.
func (s *AccountService) Register(ctx context.Context, form *validation.RegistrationForm) (*models.User, validation.Errors, error) {
	errs := form.Validate()

	if form.Username != "" && errs.First("username") == "" {
		existing, err := s.users.GetByUsername(ctx, form.Username)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			errs.Add("username", "That username is already taken.")
		}
	}
	if form.Email != "" && errs.First("email") == "" {
		existing, err := s.users.GetByEmail(ctx, form.Email)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			errs.Add("email", "That email is already registered.")
		}
	}

	if errs.Any() {
		return nil, errs, nil
	}

	hashed, err := s.hasher.Hash(form.Password)
	if err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:     form.Username,
		Email:        form.Email,
		Password:     hashed,
		ProfileImage: models.DefaultProfileImage,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration can win the race between the uniqueness
		// check and the insert. Surface it as a field error, not a 500.
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR" {
			errs.Add("username", "That username or email is already taken.")
			return nil, errs, nil
		}
		return nil, nil, err
	}

	middleware.Logger.InfoContext(ctx, "account registered", "user_id", user.ID, "username", user.Username)
	return user, errs, nil
}

// Authenticate checks a login submission against the credential store. On
// credential mismatch it returns an unauthorized AppError with a message
// that does not reveal whether the email exists.
func (s *AccountService) Authenticate(ctx context.Context, form *validation.LoginForm) (*models.User, error) {
	form.Normalize()

	user, err := s.users.GetByEmail(ctx, form.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(user.Password, form.Password) {
		return nil, models.NewUnauthorizedError("Invalid email or password.")
	}
	return user, nil
}

// GetUser loads a user's profile for display.
func (s *AccountService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile applies an account form and optional avatar upload. A taken
// username/email or a bad image comes back in the Errors map and leaves the
// stored profile untouched.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, form *validation.AccountUpdateForm, avatar []byte, avatarType string) (*models.User, validation.Errors, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	errs := form.Validate()

	if form.Username != user.Username && errs.First("username") == "" {
		existing, err := s.users.GetByUsername(ctx, form.Username)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			errs.Add("username", "That username is already taken.")
		}
	}
	if form.Email != user.Email && errs.First("email") == "" {
		existing, err := s.users.GetByEmail(ctx, form.Email)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			errs.Add("email", "That email is already registered.")
		}
	}

	newRef := ""
	if len(avatar) > 0 && !errs.Any() {
		ref, err := s.avatars.Save(avatar, avatarType)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR" {
				errs.Add("profile_image", appErr.Message)
			} else {
				return nil, nil, err
			}
		} else {
			newRef = ref
		}
	}

	if errs.Any() {
		return nil, errs, nil
	}

	oldRef := user.ProfileImage
	user.Username = form.Username
	user.Email = form.Email
	if newRef != "" {
		user.ProfileImage = newRef
	}

	if err := s.users.Update(ctx, user); err != nil {
		if newRef != "" {
			_ = s.avatars.Remove(newRef)
		}
		return nil, nil, err
	}

	// Old avatar cleanup is best-effort; the profile update is already
	// committed.
	if newRef != "" && oldRef != newRef {
		if err := s.avatars.Remove(oldRef); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to remove replaced avatar",
				"user_id", userID, "ref", oldRef, "error", err.Error())
		}
	}

	return user, errs, nil
}

// DeleteAccount removes the user and everything they own. Messages, journal
// entries and the user row go in a single transaction so a failure leaves
// the account fully intact.
func (s *AccountService) DeleteAccount(ctx context.Context, userID uint) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Journal{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.User{}, userID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("User", userID)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, userID)
	cache.InvalidateConversation(ctx, userID)

	if err := s.avatars.Remove(user.ProfileImage); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to remove avatar of deleted account",
			"user_id", userID, "ref", user.ProfileImage, "error", err.Error())
	}

	middleware.Logger.InfoContext(ctx, "account deleted", "user_id", userID)
	return nil
}

// RequestReset issues a reset token and emails it. It deliberately behaves
// identically whether or not the email is registered, so the endpoint
// cannot be used to probe for accounts.
func (s *AccountService) RequestReset(ctx context.Context, form *validation.ResetRequestForm) error {
	if errs := form.Validate(); errs.Any() {
		// Handlers show the same neutral flash for bad addresses too.
		return nil
	}

	user, err := s.users.GetByEmail(ctx, form.Email)
	if err != nil {
		return err
	}
	if user == nil {
		middleware.Logger.InfoContext(ctx, "reset requested for unknown email")
		return nil
	}

	token, err := s.reset.Issue(user.ID)
	if err != nil {
		return models.NewInternalError(err)
	}

	resetURL := fmt.Sprintf("%s/reset_password/%s", s.baseURL, token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, resetURL); err != nil {
		return models.NewInternalError(err)
	}

	middleware.Logger.InfoContext(ctx, "reset email sent", "user_id", user.ID)
	return nil
}

// VerifyResetToken resolves a reset token to its user. Expired and invalid
// tokens come back as unauthorized AppErrors with user-facing messages.
func (s *AccountService) VerifyResetToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.reset.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			middleware.ResetTokenFailures.WithLabelValues("expired").Inc()
			return nil, models.NewUnauthorizedError("That password reset link has expired. Please request a new one.")
		}
		middleware.ResetTokenFailures.WithLabelValues("invalid").Inc()
		return nil, models.NewUnauthorizedError("That password reset link is invalid.")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if models.IsNotFound(err) {
			// The account was deleted after the token was issued.
			middleware.ResetTokenFailures.WithLabelValues("unknown_user").Inc()
			return nil, models.NewUnauthorizedError("That password reset link is invalid.")
		}
		return nil, err
	}
	return user, nil
}

// ResetPassword completes the reset flow: it re-verifies the token,
// validates the new password and stores its hash. The new password must
// differ from the current one.
func (s *AccountService) ResetPassword(ctx context.Context, token string, form *validation.ResetPasswordForm) (validation.Errors, error) {
	user, err := s.VerifyResetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	errs := form.Validate()
	if !errs.Any() && s.hasher.Verify(user.Password, form.Password) {
		errs.Add("password", "New password must be different from your current password.")
	}
	if errs.Any() {
		return errs, nil
	}

	hashed, err := s.hasher.Hash(form.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "password reset completed", "user_id", user.ID)
	return errs, nil
}
