package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
	"edu-quiz-engine/internal/metrics"
)

// DefaultBadgeThreshold is the inclusive score floor for a reward.
const DefaultBadgeThreshold = 70.0

// Award is the outcome of a completion. Badge is nil when nothing was assigned;
// Owned is the refreshed ownership view after an assignment.
type Award struct {
	Badge *domain.Badge  `json:"badge,omitempty"`
	Owned []domain.Badge `json:"owned,omitempty"`
}

// Assigned reports whether a badge was granted.
func (a Award) Assigned() bool {
	return a.Badge != nil
}

// BadgeAssigner grants at most one not-yet-owned badge per qualifying completion.
//
// Selection is read-check-then-write: two completions for the same student can
// both pick a badge before either assigns it. A shared ClaimStore narrows that
// window; only a backend uniqueness constraint on (student, badge) closes it.
type BadgeAssigner struct {
	badges    BadgeGateway
	claims    ClaimStore
	threshold float64
	log       *zap.Logger
}

// NewBadgeAssigner builds an assigner; claims may be nil and threshold <= 0
// selects DefaultBadgeThreshold.
func NewBadgeAssigner(badges BadgeGateway, claims ClaimStore, threshold float64, log *zap.Logger) *BadgeAssigner {
	if claims == nil {
		claims = noClaims{}
	}
	if threshold <= 0 {
		threshold = DefaultBadgeThreshold
	}
	return &BadgeAssigner{
		badges:    badges,
		claims:    claims,
		threshold: threshold,
		log:       logging.OrNop(log),
	}
}

// AssignForCompletion picks the first catalog badge the student does not own
// and assigns it. Scores under the threshold, an empty catalog and a student
// who owns everything all yield an empty Award without error.
func (b *BadgeAssigner) AssignForCompletion(ctx context.Context, studentID, quizID int64, score float64) (Award, error) {
	if score < b.threshold {
		metrics.BadgesAssigned.WithLabelValues("below_threshold").Inc()
		return Award{}, nil
	}

	catalog, err := b.badges.ListBadges(ctx)
	if err != nil {
		return Award{}, fmt.Errorf("list badges: %w", err)
	}
	if len(catalog) == 0 {
		metrics.BadgesAssigned.WithLabelValues("empty_catalog").Inc()
		return Award{}, nil
	}

	owned, err := b.badges.ListStudentBadges(ctx, studentID)
	if err != nil {
		return Award{}, fmt.Errorf("list badges of student %d: %w", studentID, err)
	}

	selected, ok := b.selectBadge(ctx, studentID, catalog, owned)
	if !ok {
		metrics.BadgesAssigned.WithLabelValues("all_owned").Inc()
		return Award{}, nil
	}

	assigned, err := b.badges.AssignBadge(ctx, selected.ID, studentID)
	if err != nil {
		metrics.BadgesAssigned.WithLabelValues("failed").Inc()
		if releaseErr := b.claims.Release(context.WithoutCancel(ctx), studentID, selected.ID); releaseErr != nil {
			b.log.Warn("badge claim not released", zap.Int64("badge_id", selected.ID), zap.Error(releaseErr))
		}
		return Award{}, fmt.Errorf("assign badge %d to student %d: %w", selected.ID, studentID, err)
	}
	if assigned.Title == "" {
		assigned = selected
	}
	metrics.BadgesAssigned.WithLabelValues("assigned").Inc()
	b.log.Info("badge assigned",
		zap.Int64("student_id", studentID),
		zap.Int64("quiz_id", quizID),
		zap.Int64("badge_id", assigned.ID),
		zap.Float64("score", score))

	refreshed, err := b.badges.ListStudentBadges(ctx, studentID)
	if err != nil {
		b.log.Warn("owned badges not refreshed", zap.Int64("student_id", studentID), zap.Error(err))
		refreshed = append(append([]domain.Badge{}, owned...), assigned)
	}
	return Award{Badge: &assigned, Owned: refreshed}, nil
}

// selectBadge walks the catalog in order and claims the first badge that is
// neither owned nor claimed by a concurrent completion.
func (b *BadgeAssigner) selectBadge(ctx context.Context, studentID int64, catalog, owned []domain.Badge) (domain.Badge, bool) {
	ownedIDs := make(map[int64]struct{}, len(owned))
	for _, badge := range owned {
		ownedIDs[badge.ID] = struct{}{}
	}

	for _, badge := range catalog {
		if _, ok := ownedIDs[badge.ID]; ok {
			continue
		}
		claimed, err := b.claims.Claim(ctx, studentID, badge.ID)
		if err != nil {
			// The claim store is an optimisation; fall back to plain selection.
			b.log.Warn("badge claim unavailable", zap.Int64("badge_id", badge.ID), zap.Error(err))
			return badge, true
		}
		if claimed {
			return badge, true
		}
	}
	return domain.Badge{}, false
}
