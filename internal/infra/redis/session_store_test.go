package redis

import (
	"testing"
	"time"

	"speak-assessment-service/internal/app"
	"speak-assessment-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	session, err := app.NewController("session-1", domain.QuestionSet{
		Section:    domain.SectionListening,
		TimeBudget: time.Minute,
		Questions:  samplePool().Questions,
	}, app.Devices{})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	store.Put(session)
	got, err := mr.Get("assessment:session:session-1")
	if err != nil {
		t.Fatalf("expected redis key to be set: %v", err)
	}
	if got != "listening" {
		t.Fatalf("expected section marker, got %q", got)
	}
	if _, ok := store.Get("session-1"); !ok {
		t.Fatalf("expected session present")
	}

	store.Delete("session-1")
	if mr.Exists("assessment:session:session-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSessionStoreMarkerOutlivesTimeBudget(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 10*time.Minute)

	session, err := app.NewController("session-qa", domain.QuestionSet{
		Section:    domain.SectionListening,
		TimeBudget: 24 * time.Minute,
		Questions:  samplePool().Questions,
	}, app.Devices{})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	store.Put(session)
	if ttl := mr.TTL("assessment:session:session-qa"); ttl != 24*time.Minute {
		t.Fatalf("expected marker ttl to cover the time budget, got %v", ttl)
	}

	mr.FastForward(20 * time.Minute)
	if _, ok := store.Get("session-qa"); !ok {
		t.Fatalf("expected session present")
	}
	if ttl := mr.TTL("assessment:session:session-qa"); ttl != 24*time.Minute {
		t.Fatalf("expected lookup to refresh the marker, got %v", ttl)
	}

	mr.FastForward(20 * time.Minute)
	if !mr.Exists("assessment:session:session-qa") {
		t.Fatalf("expected refreshed marker to still be live")
	}
}
