package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// User is an entry in the local credential table.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	ClientID     string
}

// LocalVerifier issues and validates self-signed HMAC tokens against a
// configured secret, backed by an in-process credential table.
type LocalVerifier struct {
	secret []byte
	ttl    time.Duration
	users  map[string]User
}

type tokenClaims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

func NewLocalVerifier(secret string, ttl time.Duration, users []User) *LocalVerifier {
	byName := make(map[string]User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	return &LocalVerifier{
		secret: []byte(secret),
		ttl:    ttl,
		users:  byName,
	}
}

// Login validates a username/password pair against the credential table and
// returns a signed token plus the identity it encodes.
func (v *LocalVerifier) Login(username, password string) (string, *Identity, error) {
	u, ok := v.users[username]
	if !ok {
		// Burn a comparison anyway so a missing user costs the same as a
		// wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	id := &Identity{ID: u.ID, Username: u.Username, Role: u.Role, ClientID: u.ClientID}
	token, err := v.IssueToken(id)
	if err != nil {
		return "", nil, err
	}
	return token, id, nil
}

// IssueToken signs a fresh token for an already-established identity.
func (v *LocalVerifier) IssueToken(id *Identity) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Username: id.Username,
		Role:     string(id.Role),
		ClientID: id.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (v *LocalVerifier) Verify(_ context.Context, credential string) (*Identity, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}

	role := Role(claims.Role)
	switch role {
	case RoleAdmin, RoleClient, RolePublic:
	default:
		role = RolePublic
	}
	return &Identity{
		ID:       claims.Subject,
		Username: claims.Username,
		Role:     role,
		ClientID: claims.ClientID,
	}, nil
}

// Users returns the credential table without password material, sorted by
// username.
func (v *LocalVerifier) Users() []Identity {
	out := make([]Identity, 0, len(v.users))
	for _, u := range v.users {
		out = append(out, Identity{ID: u.ID, Username: u.Username, Role: u.Role, ClientID: u.ClientID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// HashPassword produces a bcrypt hash for seeding the credential table.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
