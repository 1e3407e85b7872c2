package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/config"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/logging"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRateLimited        = errors.New("too many login attempts")
)

const (
	minPasswordLen = 6

	// limiterIdle must exceed the time a limiter needs to refill its burst.
	limiterIdle = 10 * time.Minute
)

type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Location string `json:"location"`
	Phone    string `json:"phone"`
}

// Service manages accounts and issues the bearer tokens the HTTP layer turns into
// principals.
type Service struct {
	users  store.UserRepo
	tokens *tokenIssuer
	admins map[string]bool
	logger *zap.Logger
	now    func() time.Time

	limitMu    sync.Mutex
	limiters   map[string]*loginLimiter
	lastSweep  time.Time
	loginLimit rate.Limit
	loginBurst int
}

type loginLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewService(users store.UserRepo, cfg config.AuthConfig, logger *zap.Logger) *Service {
	now := func() time.Time { return time.Now().UTC() }

	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		admins[strings.ToLower(email)] = true
	}

	burst := max(cfg.LoginRatePerMinute, 1)
	return &Service{
		users:      users,
		tokens:     &tokenIssuer{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL, now: now},
		admins:     admins,
		logger:     logging.OrNop(logger),
		now:        now,
		limiters:   make(map[string]*loginLimiter),
		loginLimit: rate.Every(time.Minute / time.Duration(burst)),
		loginBurst: burst,
	}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &market.ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &market.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(req.Password) < minPasswordLen {
		return nil, &market.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}

	hash, salt, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		IsAdmin:   s.admins[email],
		Location:  strings.TrimSpace(req.Location),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.InsertUser(ctx, user, models.Credential{PasswordHash: hash, Salt: salt}); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.Bool("admin", user.IsAdmin))
	return user, nil
}

// Login returns a signed token for the user. Attempts are rate limited per email.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.allowLogin(email) {
		s.logger.Warn("login rate limited", zap.String("email", email))
		return "", nil, ErrRateLimited
	}

	user, cred, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) ParseToken(token string) (market.Principal, error) {
	return s.tokens.parse(token)
}

func (s *Service) Me(ctx context.Context, p market.Principal) (*models.User, error) {
	if !p.Authenticated() {
		return nil, market.ErrAuthRequired
	}
	user, err := s.users.GetUser(ctx, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, market.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Service) UpdateLocation(ctx context.Context, p market.Principal, location string) (*models.User, error) {
	user, err := s.Me(ctx, p)
	if err != nil {
		return nil, err
	}

	location = strings.TrimSpace(location)
	if location == "" {
		return nil, &market.ValidationError{Field: "location", Reason: "must not be empty"}
	}

	user.Location = location
	user.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// allowLogin takes a token from the email's limiter. Limiters idle for limiterIdle are
// full again, so they are dropped and recreated on demand.
func (s *Service) allowLogin(email string) bool {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterIdle {
		for k, l := range s.limiters {
			if now.Sub(l.seen) >= limiterIdle {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	l, ok := s.limiters[email]
	if !ok {
		l = &loginLimiter{lim: rate.NewLimiter(s.loginLimit, s.loginBurst)}
		s.limiters[email] = l
	}
	l.seen = now
	return l.lim.AllowN(now, 1)
}
