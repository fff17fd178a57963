package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceClaims identify the terminal to the backend.
type DeviceClaims struct {
	TerminalID string `json:"terminal_id"`
	LocationID int    `json:"location_id"`
	jwt.RegisteredClaims
}

// DeviceTokenSource mints short-lived HS256 bearer tokens signed with the
// terminal's device secret. A token is reused until it is within refreshSkew
// of expiring.
type DeviceTokenSource struct {
	secret     []byte
	terminalID string
	locationID int
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

const refreshSkew = 30 * time.Second

func NewDeviceTokenSource(secret, terminalID string, locationID int, ttl time.Duration) (*DeviceTokenSource, error) {
	if secret == "" {
		return nil, errors.New("device secret is empty")
	}
	if ttl <= refreshSkew {
		ttl = 5 * time.Minute
	}
	return &DeviceTokenSource{
		secret:     []byte(secret),
		terminalID: terminalID,
		locationID: locationID,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Token returns a valid signed token.
func (s *DeviceTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(refreshSkew).Before(s.expires) {
		return s.token, nil
	}

	expires := now.Add(s.ttl)
	claims := DeviceClaims{
		TerminalID: s.terminalID,
		LocationID: s.locationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.terminalID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	s.token, s.expires = signed, expires
	return signed, nil
}
