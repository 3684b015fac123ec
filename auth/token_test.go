package auth

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testEpoch = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// testClock is a settable time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCodec(t *testing.T, cfg TokenConfig) (*Codec, *testClock) {
	t.Helper()
	key, err := NewSigningKey(KeyConfig{UseStaticSecret: true, Secret: testSecret})
	if err != nil {
		t.Fatalf("NewSigningKey() error = %v", err)
	}
	clock := &testClock{now: testEpoch}
	codec, err := NewCodec(key, cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return codec, clock
}

func TestNewCodec_RequiresKey(t *testing.T) {
	if _, err := NewCodec(nil, TokenConfig{}); err == nil {
		t.Error("NewCodec(nil) should fail")
	}
}

func TestCodec_IssueParseRoundTrip(t *testing.T) {
	codec, _ := newTestCodec(t, TokenConfig{})

	tests := []struct {
		name        string
		subject     string
		authorities []string
		rememberMe  bool
	}{
		{"single role", "alice", []string{"ROLE_USER"}, false},
		{"two roles unordered", "bob", []string{"ROLE_USER", "ROLE_ADMIN"}, true},
		{"no roles", "carol", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := codec.Issue(tt.subject, tt.authorities, tt.rememberMe)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			claims, err := codec.Parse(tok.Value)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if claims.Subject != tt.subject {
				t.Errorf("Subject = %v, want %v", claims.Subject, tt.subject)
			}
			want := normalizeAuthorities(tt.authorities)
			if got := claims.Authorities(); !reflect.DeepEqual(got, want) {
				t.Errorf("Authorities() = %v, want %v", got, want)
			}
		})
	}
}

func TestCodec_EndToEndAlice(t *testing.T) {
	codec, _ := newTestCodec(t, TokenConfig{Expiration: 5 * time.Minute})

	tok, err := codec.Issue("alice", []string{"USER"}, false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	sub, err := codec.ExtractSubject(tok.Value)
	if err != nil || sub != "alice" {
		t.Errorf("ExtractSubject() = %v, %v, want alice", sub, err)
	}

	auths, err := codec.ExtractAuthorities(tok.Value)
	if err != nil || !reflect.DeepEqual(auths, []string{"USER"}) {
		t.Errorf("ExtractAuthorities() = %v, %v, want [USER]", auths, err)
	}

	exp, err := codec.ExtractExpiration(tok.Value)
	if err != nil {
		t.Fatalf("ExtractExpiration() error = %v", err)
	}
	if d := exp.Sub(testEpoch); d < 5*time.Minute-time.Second || d > 5*time.Minute+time.Second {
		t.Errorf("expiration offset = %v, want ~5m", d)
	}
}

func TestCodec_Lifetimes(t *testing.T) {
	tests := []struct {
		name       string
		cfg        TokenConfig
		rememberMe bool
		want       time.Duration
	}{
		{"default lifetime", TokenConfig{}, false, DefaultTokenExpiration},
		{"configured lifetime", TokenConfig{Expiration: 10 * time.Minute}, false, 10 * time.Minute},
		{"remember me configured", TokenConfig{Expiration: time.Minute, RememberMeExpiration: 24 * time.Hour}, true, 24 * time.Hour},
		{"remember me not requested", TokenConfig{Expiration: time.Minute, RememberMeExpiration: 24 * time.Hour}, false, time.Minute},
		{"remember me not configured", TokenConfig{Expiration: time.Minute}, true, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, _ := newTestCodec(t, tt.cfg)
			tok, err := codec.Issue("alice", []string{"ROLE_USER"}, tt.rememberMe)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			if got := tok.ExpiresAt.Sub(tok.IssuedAt); got != tt.want {
				t.Errorf("lifetime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	codec, clock := newTestCodec(t, TokenConfig{Expiration: time.Minute})

	tok, err := codec.Issue("alice", []string{"ROLE_USER"}, false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	clock.Advance(time.Minute - time.Second)
	expired, err := codec.IsExpired(tok.Value)
	if err != nil || expired {
		t.Errorf("IsExpired() one second before = %v, %v, want false", expired, err)
	}
	if _, err := codec.Parse(tok.Value); err != nil {
		t.Errorf("Parse() one second before expiry error = %v", err)
	}

	clock.Advance(time.Second)
	expired, err = codec.IsExpired(tok.Value)
	if err != nil || !expired {
		t.Errorf("IsExpired() at boundary = %v, %v, want true", expired, err)
	}
	if _, err := codec.Parse(tok.Value); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Parse() at boundary error = %v, want ErrTokenExpired", err)
	}
}

func TestCodec_ParseErrors(t *testing.T) {
	codec, _ := newTestCodec(t, TokenConfig{})

	otherKey, _ := NewSigningKey(KeyConfig{})
	otherCodec, _ := NewCodec(otherKey, TokenConfig{})
	forged, _ := otherCodec.Issue("mallory", []string{"ROLE_ADMIN"}, false)

	hs256, _ := NewSigningKey(KeyConfig{UseStaticSecret: true, Secret: testSecret, Algorithm: "HS256"})
	hs256Codec, _ := NewCodec(hs256, TokenConfig{})
	wrongAlg, _ := hs256Codec.Issue("alice", []string{"ROLE_USER"}, false)

	tests := []struct {
		name     string
		token    string
		kind     error
		contains string
	}{
		{"segments", "not-a-token", ErrTokenMalformed, "token contains an invalid number of segments"},
		{"empty", "", ErrTokenMalformed, "token is malformed"},
		{"bad encoding", "a.b.c", ErrTokenMalformed, "token is malformed"},
		{"forged signature", forged.Value, ErrTokenSignature, "signature is invalid"},
		{"wrong algorithm", wrongAlg.Value, ErrTokenSignature, "signing method HS256 is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Parse(tt.token)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.kind)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Parse() error = %q, want it to contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestCodec_MalformedMessageVerbatim(t *testing.T) {
	codec, _ := newTestCodec(t, TokenConfig{})

	_, err := codec.Parse("not-a-token")
	want := "token is malformed: token contains an invalid number of segments"
	if err == nil || err.Error() != want {
		t.Errorf("Parse() error = %v, want %q", err, want)
	}
	if !errors.Is(err, jwt.ErrTokenMalformed) {
		t.Error("error should still match jwt.ErrTokenMalformed")
	}
}

func TestCodec_IsExpiredVerifiesSignature(t *testing.T) {
	codec, _ := newTestCodec(t, TokenConfig{})

	otherKey, _ := NewSigningKey(KeyConfig{})
	otherCodec, _ := NewCodec(otherKey, TokenConfig{})
	forged, _ := otherCodec.Issue("mallory", []string{"ROLE_ADMIN"}, false)

	if _, err := codec.IsExpired(forged.Value); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("IsExpired() error = %v, want ErrTokenSignature", err)
	}
}

func TestCodec_ExtractAuthoritiesMissingClaim(t *testing.T) {
	codec, _ := newTestCodec(t, TokenConfig{})

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(testEpoch),
		ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(codec.key.Method(), claims).SignedString(codec.key.key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	got, err := codec.ExtractAuthorities(signed)
	if err != nil {
		t.Fatalf("ExtractAuthorities() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ExtractAuthorities() = %v, want empty", got)
	}
}

func TestCodec_Refresh(t *testing.T) {
	codec, clock := newTestCodec(t, TokenConfig{Expiration: time.Minute, RememberMeExpiration: time.Hour})

	tok, _ := codec.Issue("alice", []string{"ROLE_USER", "ROLE_ADMIN"}, false)
	clock.Advance(30 * time.Second)

	refreshed, err := codec.Refresh(tok.Value, true)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.Subject != "alice" {
		t.Errorf("Subject = %v, want alice", refreshed.Subject)
	}
	if !reflect.DeepEqual(refreshed.Authorities, tok.Authorities) {
		t.Errorf("Authorities = %v, want %v", refreshed.Authorities, tok.Authorities)
	}
	if want := clock.Now().Add(time.Hour); !refreshed.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", refreshed.ExpiresAt, want)
	}

	clock.Advance(time.Hour)
	if _, err := codec.Refresh(tok.Value, false); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Refresh() of expired token error = %v, want ErrTokenExpired", err)
	}
}
