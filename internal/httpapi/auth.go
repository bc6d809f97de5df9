package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"bloomtrack/backend/internal/cache"
	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/store"
	"bloomtrack/backend/internal/xid"
)

// ErrSignupRejected marks signup failures caused by the request itself, so
// the transport can keep storage errors behind a generic 500.
var ErrSignupRejected = errors.New("signup rejected")

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	denylist  cache.TokenDenylist
}

// UserStore is the slice of the repository the auth layer needs.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount, profile domain.Profile) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, userID string, passwordHash string) error
}

type ownerClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, denylist cache.TokenDenylist) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 168 * time.Hour
	}
	if denylist == nil {
		denylist = cache.NewMemoryDenylist()
	}

	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		denylist:  denylist,
	}
}

func (a *AuthManager) Signup(ctx context.Context, req domain.SignupRequest) (domain.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.AuthResponse{}, fmt.Errorf("%w: a valid email is required", ErrSignupRejected)
	}
	if len(req.Password) < 8 {
		return domain.AuthResponse{}, fmt.Errorf("%w: password must be at least 8 characters", ErrSignupRejected)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.AuthResponse{}, fmt.Errorf("failed to hash password")
	}

	user, err := a.userStore.CreateUser(ctx, domain.UserAccount{
		Email:        email,
		PasswordHash: passwordHash,
	}, domain.Profile{
		OwnerName: strings.TrimSpace(req.OwnerName),
		Mobile:    strings.TrimSpace(req.Mobile),
		ShopName:  strings.TrimSpace(req.ShopName),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.AuthResponse{}, fmt.Errorf("%w: email already registered", ErrSignupRejected)
		}
		return domain.AuthResponse{}, err
	}

	return a.issueToken(*user)
}

func (a *AuthManager) Signin(ctx context.Context, req domain.SigninRequest) (domain.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := a.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.AuthResponse{}, errors.New("invalid credentials")
	}

	stored := user.PasswordHash
	if !isPasswordHash(stored) {
		// Legacy plain-text row: verify directly, then upgrade in place.
		if stored == "" || stored != req.Password {
			return domain.AuthResponse{}, errors.New("invalid credentials")
		}
		if hashed, err := hashPassword(req.Password); err == nil {
			_ = a.userStore.UpdateUserPassword(ctx, user.ID, hashed)
		}
	} else if !verifyPassword(stored, req.Password) {
		return domain.AuthResponse{}, errors.New("invalid credentials")
	}

	return a.issueToken(*user)
}

// CurrentUser resolves the bearer token's subject back to the account row.
func (a *AuthManager) CurrentUser(ctx context.Context, actor domain.Actor) (domain.UserAccount, error) {
	user, err := a.userStore.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return domain.UserAccount{}, errors.New("account no longer exists")
	}
	return *user, nil
}

func (a *AuthManager) ParseToken(ctx context.Context, tokenStr string) (domain.Actor, error) {
	claims := &ownerClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	if claims.ID != "" {
		revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return domain.Actor{}, errors.New("token verification unavailable")
		}
		if revoked {
			return domain.Actor{}, errors.New("token has been revoked")
		}
	}
	return domain.Actor{UserID: sub, Email: claims.Email}, nil
}

// Signout revokes the token id until its natural expiry.
func (a *AuthManager) Signout(ctx context.Context, tokenStr string) error {
	claims := &ownerClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid || claims.ID == "" {
		return errors.New("invalid or expired token")
	}

	ttl := a.tokenTTL
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return a.denylist.Revoke(ctx, claims.ID, ttl)
}

func (a *AuthManager) issueToken(user domain.UserAccount) (domain.AuthResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user, expiresAt)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	return domain.AuthResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        user,
	}, nil
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := ownerClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			ID:        xid.New("tok"),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "bloomtrack",
		},
		Email: user.Email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
