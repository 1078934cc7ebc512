package auth

import (
	"testing"
	"time"
)

func TestRevocationStore_RevokeAndCheck(t *testing.T) {
	s := NewTokenRevocationStore()
	defer s.Close()

	if s.IsRevoked("jti-1") {
		t.Error("expected unknown JTI to not be revoked")
	}

	s.Revoke("jti-1", "user-1", time.Now().Add(time.Hour))

	if !s.IsRevoked("jti-1") {
		t.Error("expected revoked JTI to be reported as revoked")
	}
	if s.IsRevoked("jti-2") {
		t.Error("expected other JTIs to be unaffected")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestRevocationStore_IgnoresEmptyJTI(t *testing.T) {
	s := NewTokenRevocationStore()
	defer s.Close()

	s.Revoke("", "user-1", time.Now().Add(time.Hour))

	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after revoking empty JTI", s.Count())
	}
	if s.IsRevoked("") {
		t.Error("empty JTI must never read as revoked")
	}
}

func TestRevocationStore_CleanupRemovesExpired(t *testing.T) {
	s := NewTokenRevocationStore()
	defer s.Close()

	s.Revoke("expired", "user-1", time.Now().Add(-time.Minute))
	s.Revoke("live", "user-1", time.Now().Add(time.Hour))

	s.cleanup()

	if s.IsRevoked("expired") {
		t.Error("expected expired entry to be cleaned up")
	}
	if !s.IsRevoked("live") {
		t.Error("expected live entry to survive cleanup")
	}
}

func TestRevocationStore_CloseTwice(t *testing.T) {
	s := NewTokenRevocationStore()
	s.Close()
	s.Close()
}

func TestRevocationStore_ConcurrentAccess(t *testing.T) {
	s := NewTokenRevocationStore()
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			s.Revoke("jti-a", "user-1", time.Now().Add(time.Hour))
		}
	}()
	for i := 0; i < 100; i++ {
		s.IsRevoked("jti-a")
	}
	<-done
}
