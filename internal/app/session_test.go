package app_test

import (
	"context"
	"testing"
	"time"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/domain"
)

func TestSessionSubscribeReceivesTransitions(t *testing.T) {
	gw := newFakeGateway()
	manager := app.NewAttemptManager(gw, nil)
	session := app.NewSession("s1", nil)

	ch, cancel := session.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.State != domain.StateNoAttempt || initial.SessionID != "s1" {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	if _, err := manager.StartOrResume(context.Background(), session, 7, 10); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case snapshot := <-ch:
		if snapshot.State != domain.StateInProgress || snapshot.Attempt == nil || snapshot.Attempt.ID != 501 {
			t.Fatalf("unexpected snapshot %+v", snapshot)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestSessionSlowSubscriberGetsLatest(t *testing.T) {
	gw := newFakeGateway()
	manager := app.NewAttemptManager(gw, nil)
	session := app.NewSession("s1", nil)
	ch, cancel := session.Subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		if _, err := manager.StartOrResume(context.Background(), session, 7, int64(10+i)); err != nil {
			t.Fatalf("start failed: %v", err)
		}
	}

	var last domain.SessionSnapshot
	for {
		select {
		case snapshot := <-ch:
			last = snapshot
			continue
		default:
		}
		break
	}
	if last.QuizID != 29 {
		t.Fatalf("expected latest quiz 29, got %d", last.QuizID)
	}
}

func TestSessionOnChangeSeesEveryUpdate(t *testing.T) {
	var seen []domain.AttemptState
	session := app.NewSession("s1", func(s domain.SessionSnapshot) {
		seen = append(seen, s.State)
	})
	gw := newFakeGateway()
	manager := app.NewAttemptManager(gw, nil)

	if _, err := manager.StartOrResume(context.Background(), session, 7, 10); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := manager.Abandon(context.Background(), session); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != domain.StateInProgress || seen[1] != domain.StateNoAttempt {
		t.Fatalf("unexpected transitions %v", seen)
	}
}

func TestRestoreSessionKeepsState(t *testing.T) {
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	restored := app.RestoreSession(domain.SessionSnapshot{
		SessionID: "s1",
		StudentID: 7,
		QuizID:    10,
		State:     domain.StateInProgress,
		Attempt:   &domain.Attempt{ID: 501, QuizID: 10, StudentID: 7},
		UpdatedAt: updated,
	}, nil)

	snapshot := restored.Snapshot()
	if snapshot.State != domain.StateInProgress || snapshot.Attempt.ID != 501 || !snapshot.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected restored snapshot %+v", snapshot)
	}

	// A restored in-progress attempt is abandonable like a live one.
	gw := newFakeGateway()
	gw.attempts[7] = []domain.Attempt{{ID: 501, QuizID: 10, StudentID: 7}}
	if err := app.NewAttemptManager(gw, nil).Abandon(context.Background(), restored); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	if gw.count("DeleteAttempt") != 1 {
		t.Fatalf("expected delete of restored attempt")
	}
}

func TestSessionCloseEndsSubscriptions(t *testing.T) {
	session := app.NewSession("s1", nil)
	ch, cancel := session.Subscribe()
	<-ch

	session.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	cancel()
}

func TestSessionSubscribeRacingClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		session := app.NewSession("s1", nil)
		closed := make(chan struct{})
		go func() {
			session.Close()
			close(closed)
		}()

		updates, cancel := session.Subscribe()
		snap, ok := <-updates
		if !ok || snap.SessionID != "s1" {
			t.Fatalf("iteration %d: expected the initial snapshot, got %+v ok=%v", i, snap, ok)
		}
		<-closed
		cancel()
	}
}
