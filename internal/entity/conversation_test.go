package entity

import (
	"testing"

	"github.com/google/uuid"
)

func TestPairKeyForIsOrderIndependent(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	if PairKeyFor(a, b) != PairKeyFor(b, a) {
		t.Fatal("pair key must not depend on argument order")
	}
}

func TestOtherParticipant(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	conv := Conversation{UserAID: a, UserBID: b}

	if got := conv.OtherParticipant(a); got != b {
		t.Fatalf("expected %s, got %s", b, got)
	}
	if got := conv.OtherParticipant(b); got != a {
		t.Fatalf("expected %s, got %s", a, got)
	}
	if !conv.HasParticipant(a) || !conv.HasParticipant(b) {
		t.Fatal("both users should be participants")
	}
	if conv.HasParticipant(uuid.New()) {
		t.Fatal("stranger should not be a participant")
	}
}
