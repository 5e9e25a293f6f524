// Package marketing handles newsletter sign-ups and the product quiz.
package marketing

import (
	"context"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/gateway/klaviyo"
)

// QuizMetric is the marketing event sent for a completed quiz.
const QuizMetric = "Quiz Completed"

// Platform is the marketing platform.
type Platform interface {
	TrackEvent(ctx context.Context, ev klaviyo.Event) error
	Subscribe(ctx context.Context, email, source string) error
}

type Service struct {
	platform Platform
	logger   zerolog.Logger
}

func New(platform Platform, logger zerolog.Logger) *Service {
	return &Service{platform: platform, logger: logger}
}

// Subscribe adds email to the newsletter list.
func (s *Service) Subscribe(ctx context.Context, email, source string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if source == "" {
		source = "website"
	}
	if err := s.platform.Subscribe(ctx, email, source); err != nil {
		return errors.Wrap(err, "subscribe")
	}
	s.logger.Info().Str("source", source).Msg("newsletter subscription")
	return nil
}

// Quiz scores the answers and, when an email is given, records the result
// with the marketing platform. Recording failures are logged only.
func (s *Service) Quiz(ctx context.Context, a Answers) (Recommendation, error) {
	a, err := a.normalize()
	if err != nil {
		return Recommendation{}, err
	}
	rec := Recommend(a)
	if a.Email == "" {
		return rec, nil
	}
	err = s.platform.TrackEvent(ctx, klaviyo.Event{
		Metric: QuizMetric,
		Email:  a.Email,
		Properties: map[string]interface{}{
			"goal":           a.Goal,
			"activity":       a.Activity,
			"diet":           a.Diet,
			"recommendation": rec.Handle,
		},
	})
	if err != nil && !errors.Is(err, klaviyo.ErrDisabled) {
		s.logger.Warn().Err(err).Str("recommendation", rec.Handle).Msg("track quiz result")
	}
	return rec, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil || addr.Address != email {
		return "", domain.Invalid("email", "is not a valid email address")
	}
	return email, nil
}
