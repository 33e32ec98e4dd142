package app

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
	"edu-quiz-engine/internal/metrics"
)

const (
	DefaultStoryFetchSize = 1000
	DefaultPageSize       = 10
)

type AggregatorOptions struct {
	// OptionConcurrency bounds in-flight option fetches; 0 means unbounded.
	OptionConcurrency int
	StoryFetchSize    int
	PageSize          int
	Logger            *zap.Logger
}

// QuizAggregator composes a quiz, its questions and their options into one tree.
type QuizAggregator struct {
	quizzes        QuizGateway
	concurrency    int
	storyFetchSize int
	pageSize       int
	log            *zap.Logger
	sf             singleflight.Group
}

func NewQuizAggregator(quizzes QuizGateway, opts AggregatorOptions) *QuizAggregator {
	a := &QuizAggregator{
		quizzes:        quizzes,
		concurrency:    opts.OptionConcurrency,
		storyFetchSize: opts.StoryFetchSize,
		pageSize:       opts.PageSize,
		log:            logging.OrNop(opts.Logger),
	}
	if a.storyFetchSize <= 0 {
		a.storyFetchSize = DefaultStoryFetchSize
	}
	if a.pageSize <= 0 {
		a.pageSize = DefaultPageSize
	}
	return a
}

// LoadFullQuiz returns the quiz with every question and its options resolved.
// Only a failure to fetch the quiz itself is returned; question and option
// failures degrade to empty lists. Concurrent loads of the same quiz share one
// flight; nothing is cached once it lands.
func (a *QuizAggregator) LoadFullQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	result, err := joinFlight(ctx, &a.sf, strconv.FormatInt(quizID, 10), func(ctx context.Context) (interface{}, error) {
		return a.loadFullQuiz(ctx, quizID)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return cloneQuiz(result.(domain.Quiz)), nil
}

func (a *QuizAggregator) loadFullQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, err := a.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz %d: %w", quizID, err)
	}

	questions, err := a.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		metrics.AbsorbedFailures.WithLabelValues("questions").Inc()
		a.log.Warn("questions unavailable, serving quiz without questions",
			zap.Int64("quiz_id", quizID), zap.Error(err))
		quiz.Questions = []domain.Question{}
		return quiz, nil
	}

	// Each branch owns exactly one slot, fixed before any branch starts.
	resolved := make([]domain.Question, len(questions))
	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i := range questions {
		slot := i
		question := questions[i]
		g.Go(func() error {
			options, err := a.quizzes.ListOptions(ctx, question.ID)
			if err != nil {
				metrics.AbsorbedFailures.WithLabelValues("options").Inc()
				a.log.Warn("options unavailable, question served without options",
					zap.Int64("quiz_id", quizID), zap.Int64("question_id", question.ID), zap.Error(err))
				options = nil
			}
			if options == nil {
				options = []domain.Option{}
			}
			question.Options = options
			resolved[slot] = question
			return nil
		})
	}
	// Branches never return errors, so Wait only joins.
	_ = g.Wait()

	quiz.Questions = resolved
	return quiz, nil
}

// LoadQuizzesForStory filters a large quiz page by story on the client and
// recomputes pagination from the filtered length.
func (a *QuizAggregator) LoadQuizzesForStory(ctx context.Context, storyID int64) (domain.QuizPage, error) {
	page, err := a.quizzes.ListQuizzes(ctx, 0, a.storyFetchSize)
	if err != nil {
		return domain.QuizPage{}, fmt.Errorf("list quizzes for story %d: %w", storyID, err)
	}

	filtered := make([]domain.Quiz, 0, len(page.Quizzes))
	for _, quiz := range page.Quizzes {
		if quiz.StoryID == storyID {
			filtered = append(filtered, quiz)
		}
	}

	total := len(filtered)
	return domain.QuizPage{
		Quizzes: filtered,
		Meta: domain.PageMeta{
			Page:          0,
			Size:          a.pageSize,
			TotalPages:    (total + a.pageSize - 1) / a.pageSize,
			TotalElements: int64(total),
		},
	}, nil
}

// cloneQuiz copies the question tree so callers sharing a flight never alias.
func cloneQuiz(quiz domain.Quiz) domain.Quiz {
	if quiz.Questions == nil {
		return quiz
	}
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		if q.Options != nil {
			q.Options = append([]domain.Option{}, q.Options...)
		}
		questions[i] = q
	}
	quiz.Questions = questions
	return quiz
}

// joinFlight runs fn once for all concurrent callers of key. The flight is
// detached from the cancellation of whichever caller started it; each caller
// stops waiting when its own ctx ends.
func joinFlight(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
