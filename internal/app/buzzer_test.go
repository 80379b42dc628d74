package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"buzzboard/internal/domain"
)

func TestBuzzOrderFollowsArrival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, f.players[0])
	f.join(t, f.players[1])
	f.selectQuestion(t, "History", 200)

	first, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID)
	if err != nil {
		t.Fatalf("first buzz: %v", err)
	}
	second, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[1].ID)
	if err != nil {
		t.Fatalf("second buzz: %v", err)
	}
	if first.OrderIndex != 0 || second.OrderIndex != 1 {
		t.Fatalf("expected order 0 and 1, got %d and %d", first.OrderIndex, second.OrderIndex)
	}
	if first.Result != domain.BuzzPending || second.Result != domain.BuzzPending {
		t.Fatalf("expected PENDING attempts, got %s and %s", first.Result, second.Result)
	}
}

func TestBuzzOncePerQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, f.players[0])
	f.selectQuestion(t, "History", 200)

	if _, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID); err != nil {
		t.Fatalf("first buzz: %v", err)
	}
	_, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID)
	if !errors.Is(err, domain.ErrAlreadyBuzzed) {
		t.Fatalf("expected ErrAlreadyBuzzed, got %v", err)
	}
}

func TestBuzzRequiresActiveQuestion(t *testing.T) {
	f := newFixture(t)

	f.join(t, f.players[0])
	_, err := f.service.SubmitBuzzAttempt(context.Background(), f.lobby.ID, f.players[0].ID)
	if !errors.Is(err, domain.ErrNoActiveQuestion) {
		t.Fatalf("expected ErrNoActiveQuestion, got %v", err)
	}
}

func TestBuzzRejectsAdmin(t *testing.T) {
	f := newFixture(t)

	f.selectQuestion(t, "History", 200)
	_, err := f.service.SubmitBuzzAttempt(context.Background(), f.lobby.ID, f.admin.ID)
	if !errors.Is(err, domain.ErrPlayersOnly) {
		t.Fatalf("expected ErrPlayersOnly, got %v", err)
	}
}

func TestBuzzRejectsAfterTimerExpired(t *testing.T) {
	f := newFixture(t)

	f.join(t, f.players[0])
	f.selectQuestion(t, "History", 200)

	// The timer is checked at submission even before a board read has
	// materialized the expiry.
	f.clock.advance(30 * time.Second)
	_, err := f.service.SubmitBuzzAttempt(context.Background(), f.lobby.ID, f.players[0].ID)
	if !errors.Is(err, domain.ErrTimerExpired) {
		t.Fatalf("expected ErrTimerExpired, got %v", err)
	}
}

func TestBuzzReArmsTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, f.players[0])
	f.join(t, f.players[1])
	f.selectQuestion(t, "History", 200)

	f.clock.advance(20 * time.Second)
	if _, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID); err != nil {
		t.Fatalf("buzz: %v", err)
	}

	active, err := f.store.ActiveQuestionState(ctx, f.lobby.ID)
	if err != nil {
		t.Fatalf("active state: %v", err)
	}
	wantEnds := f.clock.Now().Add(30 * time.Second)
	if active.TimerEndsAt == nil || !active.TimerEndsAt.Equal(wantEnds) {
		t.Fatalf("expected timer re-armed to %v, got %v", wantEnds, active.TimerEndsAt)
	}

	// The fresh window keeps the question open for the second player past
	// the original deadline.
	f.clock.advance(15 * time.Second)
	if _, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[1].ID); err != nil {
		t.Fatalf("second buzz inside re-armed window: %v", err)
	}
}

func TestMarkBuzzCorrectResolvesQuestionAndScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lobby := f.join(t, f.players[0])
	f.join(t, f.players[1])
	participant := findParticipant(t, lobby, f.players[0].ID)
	state := f.selectQuestion(t, "Science", 500)

	winner, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID)
	if err != nil {
		t.Fatalf("buzz: %v", err)
	}
	loser, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[1].ID)
	if err != nil {
		t.Fatalf("buzz: %v", err)
	}

	marked, err := f.service.MarkBuzzAttemptResult(ctx, f.lobby.ID, winner.ID, f.admin.ID, domain.VerdictCorrect)
	if err != nil {
		t.Fatalf("mark result: %v", err)
	}
	if marked.Result != domain.BuzzCorrect {
		t.Fatalf("expected CORRECT, got %s", marked.Result)
	}

	reloaded, err := f.store.QuestionStateByID(ctx, state.ID)
	if err != nil {
		t.Fatalf("reload state: %v", err)
	}
	if reloaded.Status != domain.QuestionResolved {
		t.Fatalf("expected RESOLVED, got %s", reloaded.Status)
	}

	scored, err := f.store.ParticipantByID(ctx, participant.ID)
	if err != nil {
		t.Fatalf("reload participant: %v", err)
	}
	if scored.Score != 500 {
		t.Fatalf("expected score 500, got %d", scored.Score)
	}

	// The unresolved buzz is closed out, not left dangling.
	closed, err := f.store.BuzzerAttemptByID(ctx, loser.ID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if closed.Result != domain.BuzzSkipped {
		t.Fatalf("expected SKIPPED for pending attempt, got %s", closed.Result)
	}
}

func TestMarkBuzzIncorrectKeepsQuestionOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lobby := f.join(t, f.players[0])
	f.join(t, f.players[1])
	participant := findParticipant(t, lobby, f.players[0].ID)
	state := f.selectQuestion(t, "Science", 500)

	attempt, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID)
	if err != nil {
		t.Fatalf("buzz: %v", err)
	}
	marked, err := f.service.MarkBuzzAttemptResult(ctx, f.lobby.ID, attempt.ID, f.admin.ID, domain.VerdictIncorrect)
	if err != nil {
		t.Fatalf("mark result: %v", err)
	}
	if marked.Result != domain.BuzzIncorrect {
		t.Fatalf("expected INCORRECT, got %s", marked.Result)
	}

	reloaded, err := f.store.QuestionStateByID(ctx, state.ID)
	if err != nil {
		t.Fatalf("reload state: %v", err)
	}
	if reloaded.Status != domain.QuestionActive {
		t.Fatalf("expected question to stay ACTIVE, got %s", reloaded.Status)
	}

	scored, err := f.store.ParticipantByID(ctx, participant.ID)
	if err != nil {
		t.Fatalf("reload participant: %v", err)
	}
	if scored.Score != -250 {
		t.Fatalf("expected score -250, got %d", scored.Score)
	}

	// The next player in line can still win it.
	if _, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[1].ID); err != nil {
		t.Fatalf("second buzz after incorrect: %v", err)
	}
}

func TestMarkBuzzResultOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, f.players[0])
	f.selectQuestion(t, "History", 200)

	attempt, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID)
	if err != nil {
		t.Fatalf("buzz: %v", err)
	}
	if _, err := f.service.MarkBuzzAttemptResult(ctx, f.lobby.ID, attempt.ID, f.admin.ID, domain.VerdictIncorrect); err != nil {
		t.Fatalf("mark result: %v", err)
	}
	_, err = f.service.MarkBuzzAttemptResult(ctx, f.lobby.ID, attempt.ID, f.admin.ID, domain.VerdictCorrect)
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestMarkBuzzResultRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, f.players[0])
	f.selectQuestion(t, "History", 200)

	attempt, err := f.service.SubmitBuzzAttempt(ctx, f.lobby.ID, f.players[0].ID)
	if err != nil {
		t.Fatalf("buzz: %v", err)
	}
	_, err = f.service.MarkBuzzAttemptResult(ctx, f.lobby.ID, attempt.ID, f.players[0].ID, domain.VerdictCorrect)
	if !errors.Is(err, domain.ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
}

func TestMarkBuzzResultUnknownAttempt(t *testing.T) {
	f := newFixture(t)

	f.selectQuestion(t, "History", 200)
	_, err := f.service.MarkBuzzAttemptResult(context.Background(), f.lobby.ID, "missing", f.admin.ID, domain.VerdictCorrect)
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}
