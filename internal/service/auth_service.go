package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lumos-api/internal/domain"
	"lumos-api/internal/email"
	"lumos-api/internal/google"
	"lumos-api/internal/repository"
)

const (
	defaultMagicLinkTTL   = 15 * time.Minute
	defaultEmailAttempts  = 2
	usernameSuffixRetries = 5
	minPasswordLength     = 8
)

// GoogleVerifier resuelve un access token de Google a su perfil.
type GoogleVerifier interface {
	Verify(ctx context.Context, accessToken string) (google.Profile, error)
}

// AuthConfig agrupa la politica del login sin password.
type AuthConfig struct {
	FrontendURL          string
	AllowedRedirectHosts []string
	MagicLinkTTL         time.Duration
	EmailAttempts        int
}

// AuthService orquesta magic links, Google, password y cierre de sesion.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	credentials repository.CredentialRepository
	links       repository.MagicLinkRepository
	sessions    *SessionService
	jwt         *JWTService
	emailSender email.Sender
	google      GoogleVerifier
	limiter     RateLimiter
	cfg         AuthConfig
	now         func() time.Time
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	credentials repository.CredentialRepository,
	links repository.MagicLinkRepository,
	sessions *SessionService,
	jwtSvc *JWTService,
	emailSender email.Sender,
	googleVerifier GoogleVerifier,
	limiter RateLimiter,
	cfg AuthConfig,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = defaultMagicLinkTTL
	}
	if cfg.EmailAttempts <= 0 {
		cfg.EmailAttempts = defaultEmailAttempts
	}
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")
	return &AuthService{
		logger:      logger,
		users:       users,
		credentials: credentials,
		links:       links,
		sessions:    sessions,
		jwt:         jwtSvc,
		emailSender: emailSender,
		google:      googleVerifier,
		limiter:     limiter,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type MagicLinkRequest struct {
	Email       string
	IsSignup    bool
	RedirectURL string
}

type MagicLinkSent struct {
	Email     string
	ExpiresIn int
}

// AuthResult es lo que recibe el cliente tras un login exitoso.
type AuthResult struct {
	User      domain.User
	Tokens    TokenPair
	IsNewUser bool
}

// RequestMagicLink valida el email segun el modo (signup/login), emite un link
// de un solo uso y lo envia por correo. El token nunca se devuelve.
func (s *AuthService) RequestMagicLink(ctx context.Context, req MagicLinkRequest) (MagicLinkSent, error) {
	emailAddr, err := validateEmail(req.Email)
	if err != nil {
		return MagicLinkSent{}, err
	}
	if r := strings.TrimSpace(req.RedirectURL); r != "" && !isHTTPURL(r) {
		return MagicLinkSent{}, newValidationError("redirect_url", "Enter a valid URL.")
	}

	exists, err := s.users.ExistsByEmail(ctx, emailAddr)
	if err != nil {
		return MagicLinkSent{}, err
	}
	if req.IsSignup && exists {
		return MagicLinkSent{}, newValidationError("email", "An account with this email already exists. Try logging in instead.")
	}
	if !req.IsSignup && !exists {
		return MagicLinkSent{}, newValidationError("email", "No account found with this email. Try signing up instead.")
	}

	if s.limiter != nil && !s.limiter.Allow(ctx, emailAddr) {
		return MagicLinkSent{}, ErrRateLimited
	}

	var user domain.User
	if req.IsSignup {
		user, _, err = s.getOrCreateUser(ctx, domain.User{Email: emailAddr})
	} else {
		user, err = s.users.GetByEmail(ctx, emailAddr)
	}
	if err != nil {
		return MagicLinkSent{}, fmt.Errorf("resolve user: %w", err)
	}

	token, err := GenerateMagicToken()
	if err != nil {
		return MagicLinkSent{}, fmt.Errorf("generate token: %w", err)
	}
	now := s.now()
	link := domain.MagicLink{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		Email:     emailAddr,
		IsSignup:  req.IsSignup,
		ExpiresAt: now.Add(s.cfg.MagicLinkTTL),
		CreatedAt: now,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return MagicLinkSent{}, fmt.Errorf("store magic link: %w", err)
	}

	msg := email.MagicLinkMessage{
		To:        emailAddr,
		URL:       s.verifyURL(token, sanitizeRedirect(req.RedirectURL, s.cfg.AllowedRedirectHosts)),
		IsSignup:  req.IsSignup,
		ExpiresIn: s.cfg.MagicLinkTTL,
	}
	if err := s.sendWithRetry(ctx, msg); err != nil {
		return MagicLinkSent{}, err
	}

	return MagicLinkSent{
		Email:     emailAddr,
		ExpiresIn: int(s.cfg.MagicLinkTTL / time.Second),
	}, nil
}

// VerifyMagicLink consume el link y abre una sesion magic_link.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string, client ClientInfo) (AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthResult{}, ErrMagicLinkInvalid
	}
	link, err := s.links.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthResult{}, ErrMagicLinkInvalid
		}
		return AuthResult{}, err
	}
	now := s.now()
	if !link.IsValid(now) {
		return AuthResult{}, ErrMagicLinkExpired
	}
	consumed, err := s.links.Consume(ctx, link.ID, now)
	if err != nil {
		return AuthResult{}, err
	}
	if !consumed {
		return AuthResult{}, ErrMagicLinkExpired
	}

	user, err := s.users.GetByID(ctx, link.UserID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("load link user: %w", err)
	}
	if link.IsSignup && !user.IsEmailVerified {
		if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
			return AuthResult{}, fmt.Errorf("mark email verified: %w", err)
		}
		user.IsEmailVerified = true
	}

	return s.startSession(ctx, user, domain.LoginMethodMagicLink, client)
}

// GoogleAuth valida el access token contra Google y hace get-or-create por email.
func (s *AuthService) GoogleAuth(ctx context.Context, accessToken string, client ClientInfo) (AuthResult, error) {
	if s.google == nil {
		return AuthResult{}, errors.New("google verifier not configured")
	}
	profile, err := s.google.Verify(ctx, accessToken)
	if err != nil {
		if errors.Is(err, google.ErrInvalidToken) {
			return AuthResult{}, ErrGoogleTokenInvalid
		}
		return AuthResult{}, err
	}
	emailAddr := normalizeEmail(profile.Email)
	if emailAddr == "" {
		return AuthResult{}, ErrGoogleEmailMissing
	}

	googleID := optionalString(profile.ID)
	avatar := optionalString(profile.Picture)
	user, created, err := s.getOrCreateUser(ctx, domain.User{
		Email:           emailAddr,
		FirstName:       strings.TrimSpace(profile.GivenName),
		LastName:        strings.TrimSpace(profile.FamilyName),
		IsEmailVerified: true,
		GoogleID:        googleID,
		AvatarURL:       avatar,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("resolve google user: %w", err)
	}

	if !created && !user.HasGoogleIdentity() && googleID != nil {
		linked, err := s.users.LinkGoogle(ctx, user.ID, *googleID, avatar, s.now())
		if err != nil {
			return AuthResult{}, fmt.Errorf("link google identity: %w", err)
		}
		if linked {
			user.GoogleID = googleID
			if avatar != nil {
				user.AvatarURL = avatar
			}
			user.IsEmailVerified = true
		} else if user, err = s.users.GetByID(ctx, user.ID); err != nil {
			return AuthResult{}, err
		}
	}
	// Google ya verifico el email aunque el perfil no traiga id.
	if !user.IsEmailVerified {
		now := s.now()
		if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
			return AuthResult{}, fmt.Errorf("mark email verified: %w", err)
		}
		user.IsEmailVerified = true
		user.UpdatedAt = now
	}

	result, err := s.startSession(ctx, user, domain.LoginMethodGoogleOAuth, client)
	if err != nil {
		return AuthResult{}, err
	}
	result.IsNewUser = created
	return result, nil
}

// PasswordLogin autentica contra la credencial bcrypt del usuario.
func (s *AuthService) PasswordLogin(ctx context.Context, emailAddr, password string, client ClientInfo) (AuthResult, error) {
	if s.credentials == nil {
		return AuthResult{}, errors.New("credential store not configured")
	}
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if !user.IsActive {
		return AuthResult{}, ErrInvalidCredentials
	}
	cred, err := s.credentials.GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.startSession(ctx, user, domain.LoginMethodPassword, client)
}

// SetPassword crea o reemplaza la credencial del usuario.
func (s *AuthService) SetPassword(ctx context.Context, userID, password string) error {
	if s.credentials == nil {
		return errors.New("credential store not configured")
	}
	if len([]rune(password)) < minPasswordLength {
		return newValidationError("password", "Ensure this field has at least 8 characters.")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.credentials.Upsert(ctx, domain.UserCredential{
		UserID:       userID,
		PasswordHash: string(hash),
		UpdatedAt:    s.now(),
	})
}

// Logout desactiva la sesion del access token. El refresh token opcional se
// revoca en modo best-effort.
func (s *AuthService) Logout(ctx context.Context, claims Claims, refreshToken string) error {
	if err := s.sessions.End(ctx, claims.UserID, claims.SessionKey); err != nil {
		return err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	if err := s.jwt.RevokeRefresh(ctx, refreshToken); err != nil {
		s.logger.Warn("revoke refresh token on logout failed",
			zap.String("user_id", claims.UserID),
			zap.Error(err),
		)
	}
	return nil
}

// Refresh rota el par de tokens si la sesion sigue activa.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.jwt.ParseRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.SessionKey != "" {
		if err := s.sessions.Touch(ctx, claims.UserID, claims.SessionKey); err != nil {
			if errors.Is(err, ErrSessionInactive) {
				if revokeErr := s.jwt.RevokeRefresh(ctx, refreshToken); revokeErr != nil {
					s.logger.Warn("revoke refresh token of inactive session failed", zap.Error(revokeErr))
				}
			}
			return TokenPair{}, err
		}
	}
	return s.jwt.RefreshPair(ctx, refreshToken)
}

func (s *AuthService) startSession(ctx context.Context, user domain.User, method domain.LoginMethod, client ClientInfo) (AuthResult, error) {
	session, err := s.sessions.Start(ctx, user.ID, method, client)
	if err != nil {
		return AuthResult{}, fmt.Errorf("record session: %w", err)
	}
	tokens, err := s.jwt.GeneratePair(ctx, user, session.SessionKey)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return AuthResult{User: user, Tokens: tokens}, nil
}

// getOrCreateUser inserta la cuenta si el email no existe. El username parte del
// local-part del email y se desambigua con sufijos numericos.
func (s *AuthService) getOrCreateUser(ctx context.Context, tmpl domain.User) (domain.User, bool, error) {
	now := s.now()
	base := usernameFromEmail(tmpl.Email)
	for attempt := 0; attempt <= usernameSuffixRetries+1; attempt++ {
		user := tmpl
		user.ID = uuid.NewString()
		user.Username = candidateUsername(base, attempt)
		user.IsActive = true
		user.CreatedAt = now
		user.UpdatedAt = now

		got, created, err := s.users.CreateIfNotExists(ctx, user)
		if err == nil {
			return got, created, nil
		}
		if !errors.Is(err, repository.ErrUsernameConflict) {
			return domain.User{}, false, err
		}
		s.logger.Debug("username taken, retrying", zap.String("username", user.Username))
	}
	return domain.User{}, false, repository.ErrUsernameConflict
}

func (s *AuthService) sendWithRetry(ctx context.Context, msg email.MagicLinkMessage) error {
	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	var lastErr error
	for attempt := 1; attempt <= s.cfg.EmailAttempts; attempt++ {
		if err := s.emailSender.SendMagicLink(ctx, msg); err != nil {
			lastErr = err
			s.logger.Warn("send magic link failed",
				zap.String("email", msg.To),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrEmailSendFailure, lastErr)
}

func (s *AuthService) verifyURL(token, redirect string) string {
	u := s.cfg.FrontendURL + "/auth/verify?token=" + url.QueryEscape(token)
	if redirect != "" {
		u += "&redirect=" + url.QueryEscape(redirect)
	}
	return u
}

// sanitizeRedirect solo deja pasar URLs absolutas http/https; si hay lista de
// hosts permitidos, el host debe estar en ella.
func sanitizeRedirect(raw string, allowedHosts []string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if len(allowedHosts) == 0 {
		return u.String()
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedHosts {
		if strings.ToLower(strings.TrimSpace(allowed)) == host {
			return u.String()
		}
	}
	return ""
}

func validateEmail(raw string) (string, error) {
	emailAddr := normalizeEmail(raw)
	if emailAddr == "" {
		return "", newValidationError("email", "This field is required.")
	}
	addr, err := mail.ParseAddress(emailAddr)
	if err != nil || addr.Address != emailAddr || !strings.Contains(emailAddr[strings.LastIndex(emailAddr, "@")+1:], ".") {
		return "", newValidationError("email", "Enter a valid email address.")
	}
	return emailAddr, nil
}

func normalizeEmail(emailAddr string) string {
	return strings.ToLower(strings.TrimSpace(emailAddr))
}

func usernameFromEmail(emailAddr string) string {
	local := emailAddr
	if i := strings.Index(emailAddr, "@"); i >= 0 {
		local = emailAddr[:i]
	}
	if local == "" {
		local = "user"
	}
	return local
}

// candidateUsername: intento 0 = base, 1..N = base1..baseN, despues sufijo aleatorio.
func candidateUsername(base string, attempt int) string {
	switch {
	case attempt == 0:
		return base
	case attempt <= usernameSuffixRetries:
		return base + strconv.Itoa(attempt)
	default:
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return base + strconv.FormatInt(time.Now().UnixNano()%1_000_000, 10)
		}
		return base + hex.EncodeToString(buf)
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
