package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lumos-api/internal/domain"
	"lumos-api/internal/repository"
)

const (
	maxNameLength     = 150
	maxUsernameLength = 150
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// UserService coordina reglas de negocio para el perfil del usuario.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	now    func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		users:  users,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProfileUpdate trae los campos editables; nil = no tocar.
// En un PUT el handler exige Username.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Username  *string
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// UpdateProfile aplica el update parcial. Un username ocupado por otra cuenta
// es un error de validacion sobre el campo username.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (domain.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	verr := &ValidationError{}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if len([]rune(v)) > maxNameLength {
			verr.Add("first_name", "Ensure this field has no more than 150 characters.")
		}
		user.FirstName = v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if len([]rune(v)) > maxNameLength {
			verr.Add("last_name", "Ensure this field has no more than 150 characters.")
		}
		user.LastName = v
	}
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		switch {
		case v == "":
			verr.Add("username", "This field may not be blank.")
		case len([]rune(v)) > maxUsernameLength:
			verr.Add("username", "Ensure this field has no more than 150 characters.")
		case !usernamePattern.MatchString(v):
			verr.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
		}
		user.Username = v
	}
	if !verr.Empty() {
		return domain.User{}, verr
	}

	now := s.now()
	if err := s.users.UpdateProfile(ctx, user.ID, user.FirstName, user.LastName, user.Username, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameConflict):
			return domain.User{}, newValidationError("username", "This username is already taken.")
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, ErrUserNotFound
		}
		s.logger.Error("update profile failed", zap.String("user_id", userID), zap.Error(err))
		return domain.User{}, err
	}
	user.UpdatedAt = now
	return user, nil
}
