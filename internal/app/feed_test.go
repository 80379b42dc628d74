package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/domain"
)

type recordingPresence struct {
	mu       sync.Mutex
	touches  map[string]int
	releases map[string]int
}

func newRecordingPresence() *recordingPresence {
	return &recordingPresence{touches: make(map[string]int), releases: make(map[string]int)}
}

func (p *recordingPresence) Touch(lobbyID string) {
	p.mu.Lock()
	p.touches[lobbyID]++
	p.mu.Unlock()
}

func (p *recordingPresence) Release(lobbyID string) {
	p.mu.Lock()
	p.releases[lobbyID]++
	p.mu.Unlock()
}

func (p *recordingPresence) counts(lobbyID string) (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.touches[lobbyID], p.releases[lobbyID]
}

func TestSubscribeReceivesBoardUpdates(t *testing.T) {
	f := newFixture(t)

	updates, cancel := f.service.Subscribe(f.lobby.ID)
	defer cancel()

	f.selectQuestion(t, "History", 100)

	select {
	case update := <-updates:
		if update.Type != app.FeedBoard || update.Board == nil {
			t.Fatalf("unexpected update %+v", update)
		}
		q := findQuestion(t, update.Board, "History", 100)
		if q.Status != domain.QuestionActive {
			t.Fatalf("expected ACTIVE on pushed board, got %s", q.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no feed update received")
	}
}

func TestSlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lobby := f.join(t, f.players[0])
	participant := findParticipant(t, lobby, f.players[0].ID)
	updates, cancel := f.service.Subscribe(f.lobby.ID)
	defer cancel()

	// More publishes than the channel buffers; the publisher must not
	// block even though nothing is reading.
	state := f.selectQuestion(t, "History", 100)
	for i := 0; i < 20; i++ {
		if _, err := f.service.ResolveQuestion(ctx, app.ResolveParams{
			LobbyID:         f.lobby.ID,
			QuestionStateID: state.ID,
			ParticipantID:   participant.ID,
			ActingUserID:    f.admin.ID,
			Verdict:         domain.VerdictIncorrect,
		}); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}

	select {
	case update := <-updates:
		if update.Board == nil {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("expected at least one buffered update")
	}
}

func TestPresenceRefreshedWhileSubscribed(t *testing.T) {
	presence := newRecordingPresence()
	f := newFixture(t, app.WithPresence(presence, 5*time.Millisecond))

	_, cancel := f.service.Subscribe(f.lobby.ID)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if touches, _ := presence.counts(f.lobby.ID); touches >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("presence marker not refreshed while subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if _, releases := presence.counts(f.lobby.ID); releases != 1 {
		t.Fatalf("expected one release after last unsubscribe, got %d", releases)
	}

	// No refreshes keep firing once the lobby has no subscribers. A tick
	// already in flight at cancel time is allowed to settle first.
	time.Sleep(20 * time.Millisecond)
	touchesAfter, _ := presence.counts(f.lobby.ID)
	time.Sleep(50 * time.Millisecond)
	if touches, _ := presence.counts(f.lobby.ID); touches != touchesAfter {
		t.Fatalf("expected refresher stopped, touches went %d -> %d", touchesAfter, touches)
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	f := newFixture(t)

	updates, cancel := f.service.Subscribe(f.lobby.ID)
	cancel()

	if _, ok := <-updates; ok {
		t.Fatal("expected channel closed after cancel")
	}
}
