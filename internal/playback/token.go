// Package playback issues and verifies the short-lived tokens that gate
// access to video streams. A playback token is the only credential the
// proxy endpoint accepts, so it is bound to a single video and user and
// signed with a key derived exclusively for this token class.
package playback

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates playback tokens from any other token class the
// service issues.
const TokenKind = "playback"

// keySuffix is appended to the base secret so playback tokens never verify
// against keys used for other purposes.
const keySuffix = "-playback"

var (
	// ErrTokenMalformed indicates the token string could not be decoded.
	ErrTokenMalformed = errors.New("playback token malformed")
	// ErrTokenBadSignature indicates the signature check failed.
	ErrTokenBadSignature = errors.New("playback token signature invalid")
	// ErrTokenExpired indicates the token's validity window has passed.
	ErrTokenExpired = errors.New("playback token expired")
	// ErrTokenWrongKind indicates a token of another class was presented.
	ErrTokenWrongKind = errors.New("token is not a playback token")
	// ErrTokenVideoMismatch indicates the token authorizes a different video.
	ErrTokenVideoMismatch = errors.New("playback token video mismatch")
	// ErrTokenUserMismatch indicates the token was issued to a different user.
	ErrTokenUserMismatch = errors.New("playback token user mismatch")
)

// Claims are the signed statements carried by a playback token.
type Claims struct {
	VideoID string `json:"video_id"`
	UserID  string `json:"user_id"`
	Kind    string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies playback tokens. Tokens are self-contained
// and never stored; once expired they cannot be renewed or revoked early.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewTokenService derives the playback signing key from the provided base
// secret. Rotating the base secret invalidates all outstanding tokens.
func NewTokenService(baseSecret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{
		secret:  []byte(baseSecret + keySuffix),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// TTL reports the validity window applied to issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue mints a signed token authorizing the given user to play the given video.
func (s *TokenService) Issue(userID, videoID string) (string, error) {
	now := s.now()
	claims := &Claims{
		VideoID: videoID,
		UserID:  userID,
		Kind:    TokenKind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify decodes and validates a playback token against the expected video.
// An empty userID skips the subject check: that path grants access based
// solely on possession of the token and is reserved for endpoints that have
// no independent proof of the caller's identity.
func (s *TokenService) Verify(tokenString, videoID, userID string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenBadSignature
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenBadSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.Kind != TokenKind {
		return nil, ErrTokenWrongKind
	}
	if claims.VideoID != videoID {
		return nil, ErrTokenVideoMismatch
	}
	if userID != "" && claims.UserID != userID {
		return nil, ErrTokenUserMismatch
	}

	return claims, nil
}

func (s *TokenService) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}
