package models

import (
	"testing"
	"time"
)

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Now()
	rt := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	if !rt.Usable(now) {
		t.Fatalf("fresh token should be usable")
	}
	rt.Revoked = true
	if rt.Usable(now) {
		t.Fatalf("revoked token must not be usable")
	}
	expired := RefreshToken{ExpiresAt: now.Add(-time.Minute)}
	if expired.Usable(now) {
		t.Fatalf("expired token must not be usable")
	}
}
