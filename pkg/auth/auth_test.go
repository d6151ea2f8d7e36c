package auth_test

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	httptestutil "github.com/lmfdb/lmfdb/internal/testutils/http"
	"github.com/lmfdb/lmfdb/pkg/auth"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestSigner(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	testee := try.To(auth.New([]byte("s3cr3t"), "lmfdb", time.Hour, auth.WithClock(clock.Now))).OrFatal(t)

	t.Run("issued token is verified", func(t *testing.T) {
		token := try.To(testee.Issue("jdoe", 0)).OrFatal(t)
		claims := try.To(testee.Verify(token)).OrFatal(t)

		if claims.Author() != "jdoe" {
			t.Errorf("subject: %s", claims.Author())
		}
		if claims.Issuer != "lmfdb" {
			t.Errorf("issuer: %s", claims.Issuer)
		}
		if claims.ID == "" {
			t.Error("token should have jti")
		}
		if !claims.ExpiresAt.Time.Equal(clock.now.Add(time.Hour)) {
			t.Errorf("exp: %s", claims.ExpiresAt)
		}
	})

	t.Run("each token has its own id", func(t *testing.T) {
		a := try.To(testee.Verify(try.To(testee.Issue("jdoe", 0)).OrFatal(t))).OrFatal(t)
		b := try.To(testee.Verify(try.To(testee.Issue("jdoe", 0)).OrFatal(t))).OrFatal(t)
		if a.ID == b.ID {
			t.Errorf("jti collides: %s", a.ID)
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := try.To(testee.Issue("jdoe", time.Minute)).OrFatal(t)

		later := &fakeClock{now: clock.now.Add(2 * time.Minute)}
		verifier := try.To(auth.New([]byte("s3cr3t"), "lmfdb", time.Hour, auth.WithClock(later.Now))).OrFatal(t)
		if _, err := verifier.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("token signed by another secret is rejected", func(t *testing.T) {
		other := try.To(auth.New([]byte("another"), "lmfdb", time.Hour, auth.WithClock(clock.Now))).OrFatal(t)
		token := try.To(other.Issue("jdoe", 0)).OrFatal(t)
		if _, err := testee.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("token by another issuer is rejected", func(t *testing.T) {
		other := try.To(auth.New([]byte("s3cr3t"), "elsewhere", time.Hour, auth.WithClock(clock.Now))).OrFatal(t)
		token := try.To(other.Issue("jdoe", 0)).OrFatal(t)
		if _, err := testee.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unsigned token is rejected", func(t *testing.T) {
		token := try.To(jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "jdoe",
			Issuer:    "lmfdb",
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)).OrFatal(t)
		if _, err := testee.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("malformed token is rejected", func(t *testing.T) {
		if _, err := testee.Verify("not.a.token"); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty subject cannot be issued", func(t *testing.T) {
		if _, err := testee.Issue("", 0); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNew_EmptySecret(t *testing.T) {
	if _, err := auth.New(nil, "lmfdb", time.Hour); !errors.Is(err, auth.ErrNoSecret) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadSecret(t *testing.T) {
	dir := t.TempDir()

	t.Run("it trims whitespaces", func(t *testing.T) {
		path := filepath.Join(dir, "secret")
		if err := os.WriteFile(path, []byte("  s3cr3t\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if actual := try.To(auth.LoadSecret(path)).OrFatal(t); string(actual) != "s3cr3t" {
			t.Errorf("actual = %q", actual)
		}
	})

	t.Run("empty secret is an error", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		if err := os.WriteFile(path, []byte("\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := auth.LoadSecret(path); !errors.Is(err, auth.ErrNoSecret) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	signer := try.To(auth.New([]byte("s3cr3t"), "lmfdb", time.Hour)).OrFatal(t)

	var seen string
	handler := signer.Middleware()(func(c echo.Context) error {
		claims, ok := auth.Editor(c)
		if !ok {
			t.Fatal("claims should be set")
		}
		seen = claims.Author()
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("valid token passes", func(t *testing.T) {
		token := try.To(signer.Issue("jdoe", 0)).OrFatal(t)
		c, resp := httptestutil.Put(e, "/api/knowls/a/", nil, httptestutil.Bearer(token))
		if err := handler(c); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusNoContent || seen != "jdoe" {
			t.Errorf("status = %d, editor = %s", resp.Code, seen)
		}
	})

	for name, opts := range map[string][]httptestutil.RequestOption{
		"no header":     {},
		"not bearer":    {httptestutil.WithHeader("Authorization", "Basic amRvZTpwYXNz")},
		"invalid token": {httptestutil.Bearer("not.a.token")},
	} {
		t.Run(name+" is unauthorized", func(t *testing.T) {
			c, _ := httptestutil.Put(e, "/api/knowls/a/", nil, opts...)
			err := handler(c)
			he := new(echo.HTTPError)
			if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
