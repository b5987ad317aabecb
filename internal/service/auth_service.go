package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"medcart/internal/domain"
	"medcart/internal/notify"
	"medcart/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email already registered")
)

const (
	sessionTTL    = 24 * time.Hour
	resetTokenTTL = 30 * time.Minute
)

// AuthService регистрация, логин, сессии и восстановление пароля
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	email    notify.EmailSender
	baseURL  string
}

func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, email notify.EmailSender, baseURL string) *AuthService {
	return &AuthService{users: users, sessions: sessions, email: email, baseURL: strings.TrimRight(baseURL, "/")}
}

// RegisterInput входные данные регистрации
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     domain.Role
}

// Register создаёт учётную запись и шлёт письмо с токеном подтверждения.
// Снаружи доступны только роли USER и DOCTOR; персонал заводится при старте.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if in.Email == "" || !strings.Contains(in.Email, "@") || len(in.Password) < 8 {
		return nil, ErrInvalidInput
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleDoctor {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := domain.User{
		Email:        strings.ToLower(in.Email),
		Phone:        in.Phone,
		Name:         in.Name,
		Role:         role,
		PasswordHash: string(hash),
		VerifyToken:  uuid.NewString(),
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	// доставка без гарантий: ошибка письма не откатывает регистрацию
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, u.VerifyToken)
	body := fmt.Sprintf("Welcome to the pharmacy.\nConfirm your email: %s", link)
	if err := s.email.Send(ctx, u.Email, "Confirm your email", body); err != nil {
		log.Printf("WARN: verification email to %s failed: %v", u.Email, err)
	}
	return &u, nil
}

// VerifyEmail одноразовое подтверждение почты по токену из письма
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidInput
	}
	u, err := s.users.GetByVerifyToken(ctx, token)
	if err != nil {
		return err
	}
	u.Verified = true
	u.VerifyToken = ""
	return s.users.Update(ctx, u)
}

// Login проверяет пароль и выдаёт bearer-сессию
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	sess := domain.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Role:      u.Role,
		Email:     u.Email,
		Phone:     u.Phone,
		ExpiresAt: time.Now().UTC().Add(sessionTTL),
	}
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Authenticate резолвит токен в контекст авторизации запроса
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Actor, error) {
	if token == "" {
		return domain.Actor{}, ErrUnauthorized
	}
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return domain.Actor{}, ErrUnauthorized
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return domain.Actor{}, ErrUnauthorized
	}
	return domain.Actor{UserID: sess.UserID, Role: sess.Role, Email: sess.Email, Phone: sess.Phone}, nil
}

// Logout удаляет сессию; отсутствие сессии не считается ошибкой
func (s *AuthService) Logout(ctx context.Context, token string) {
	_ = s.sessions.Delete(ctx, token)
}

// RequestPasswordReset выдаёт одноразовый токен с ограниченным сроком
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return err
	}
	u.ResetToken = uuid.NewString()
	exp := time.Now().UTC().Add(resetTokenTTL)
	u.ResetTokenExpires = &exp
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	body := fmt.Sprintf("Your password reset code: %s\nIt expires in %d minutes.", u.ResetToken, int(resetTokenTTL.Minutes()))
	if err := s.email.Send(ctx, u.Email, "Password reset", body); err != nil {
		log.Printf("WARN: reset email to %s failed: %v", u.Email, err)
	}
	return nil
}

// ResetPassword меняет пароль по действительному токену; токен гасится
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if token == "" || len(newPassword) < 8 {
		return ErrInvalidInput
	}
	u, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return err
	}
	if u.ResetToken == "" || u.ResetToken != token {
		return ErrInvalidInput
	}
	if u.ResetTokenExpires == nil || time.Now().UTC().After(*u.ResetTokenExpires) {
		return ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.ResetToken = ""
	u.ResetTokenExpires = nil
	return s.users.Update(ctx, u)
}
