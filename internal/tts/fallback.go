package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/book-expert/hearo-tools/internal/core"
	"github.com/book-expert/logger"
)

// FailureClass names the reason a synthesis attempt did not produce audio.
type FailureClass string

// Failure classes recognised by the fallback chain.
const (
	FailureRateLimited   FailureClass = "rate_limited"
	FailureQuotaExceeded FailureClass = "quota_exceeded"
	FailureBadStatus     FailureClass = "bad_status"
	FailureMalformed     FailureClass = "malformed_payload"
	FailureTimeout       FailureClass = "timeout"
	FailureTransport     FailureClass = "transport"
)

// Static errors.
var (
	ErrNoTiers       = errors.New("at least one synthesis tier is required")
	ErrNilTierClient = errors.New("tier client cannot be nil")
)

const (
	logFmtEscalating    = "%s tier failed (%s), falling back to %s: %v"
	logFmtRateLimitWait = "%s tier rate limited, waiting %s (%d/%d)"
	logFmtRetriesSpent  = "%s tier rate limit retries exhausted"
	logFmtQuota         = "%s tier quota exceeded, limit reset required"
	logFmtTierFailed    = "%s tier failed (%s): %v"
	logFmtTierRecovered = "%s tier produced audio after fallback"
)

// Tier describes one model of the remote service and how rate limit responses
// are handled on it.
type Tier struct {
	// Name is a short human label such as "Flash" or "Pro".
	Name string
	// Model is the remote model identifier.
	Model string
	// RateLimitRetries is how many times a rate limited request is repeated
	// on this tier. It only applies to the final tier of a chain; earlier
	// tiers escalate instead.
	RateLimitRetries int
}

// StatusError is a non-success HTTP answer from the remote service.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech service returned %d %s: %s", e.Code, e.Status, e.Message)
}

// SynthesisError is the terminal failure of a whole fallback chain.
type SynthesisError struct {
	Tier  string
	Class FailureClass
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed on %s tier (%s): %v", e.Tier, e.Class, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// SleepFunc blocks for the given duration or until the context ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Classify maps an error returned by a TierClient to its failure class.
func Classify(err error) FailureClass {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusTooManyRequests:
			return FailureRateLimited
		case http.StatusForbidden:
			return FailureQuotaExceeded
		default:
			return FailureBadStatus
		}
	}

	if errors.Is(err, ErrEmptyAudio) || errors.Is(err, ErrMalformedAudio) {
		return FailureMalformed
	}

	var corruptErr base64.CorruptInputError
	if errors.As(err, &corruptErr) {
		return FailureMalformed
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return FailureMalformed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	return FailureTransport
}

// FallbackSynthesizer walks an ordered list of tiers. Any failure on a tier
// that is not the last one moves on to the next tier; the last tier only
// repeats rate limited requests, with a linearly growing delay.
type FallbackSynthesizer struct {
	client  core.TierClient
	tiers   []Tier
	backoff time.Duration
	timeout time.Duration
	sleep   SleepFunc
	log     *logger.Logger
}

// FallbackOption customises a FallbackSynthesizer.
type FallbackOption func(*FallbackSynthesizer)

// WithSleep replaces the function used to wait between rate limit retries.
func WithSleep(sleep SleepFunc) FallbackOption {
	return func(s *FallbackSynthesizer) {
		s.sleep = sleep
	}
}

// WithRequestTimeout bounds every single request to the remote service.
func WithRequestTimeout(timeout time.Duration) FallbackOption {
	return func(s *FallbackSynthesizer) {
		s.timeout = timeout
	}
}

// NewFallbackSynthesizer creates a synthesizer over the given tiers. The
// backoff is the delay before the first rate limit retry; retry n waits
// backoff*(n+1).
func NewFallbackSynthesizer(
	client core.TierClient,
	tiers []Tier,
	backoff time.Duration,
	log *logger.Logger,
	opts ...FallbackOption,
) (*FallbackSynthesizer, error) {
	if client == nil {
		return nil, ErrNilTierClient
	}

	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}

	synth := &FallbackSynthesizer{
		client:  client,
		tiers:   tiers,
		backoff: backoff,
		timeout: 0,
		sleep:   Sleep,
		log:     log,
	}

	for _, opt := range opts {
		opt(synth)
	}

	return synth, nil
}

// DefaultTiers builds the standard primary/fallback chain. An empty fallback
// model yields a single-tier chain.
func DefaultTiers(primaryModel, fallbackModel string, rateLimitRetries int) []Tier {
	if fallbackModel == "" {
		return []Tier{{Name: "Primary", Model: primaryModel, RateLimitRetries: rateLimitRetries}}
	}

	return []Tier{
		{Name: "Flash", Model: primaryModel, RateLimitRetries: 0},
		{Name: "Pro", Model: fallbackModel, RateLimitRetries: rateLimitRetries},
	}
}

// Synthesize returns raw PCM samples for the request or a *SynthesisError.
func (s *FallbackSynthesizer) Synthesize(ctx context.Context, req core.SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	var lastErr error

	for index, tier := range s.tiers {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return nil, fmt.Errorf("synthesis cancelled: %w", ctxErr)
		}

		final := index == len(s.tiers)-1

		audio, class, err := s.attemptTier(ctx, tier, final, req)
		if err == nil {
			if index > 0 {
				s.log.Info(logFmtTierRecovered, tier.Name)
			}

			return audio, nil
		}

		lastErr = &SynthesisError{Tier: tier.Name, Class: class, Err: err}

		if !final {
			s.log.Warn(logFmtEscalating, tier.Name, class, s.tiers[index+1].Name, err)
		}
	}

	return nil, lastErr
}

// attemptTier sends the request to one tier. Rate limited answers are
// retried only when the tier is the last one in the chain.
func (s *FallbackSynthesizer) attemptTier(
	ctx context.Context,
	tier Tier,
	final bool,
	req core.SpeechRequest,
) ([]byte, FailureClass, error) {
	retries := 0
	if final {
		retries = tier.RateLimitRetries
	}

	for attempt := 0; ; attempt++ {
		audio, err := s.generate(ctx, tier, req)
		if err == nil {
			return audio, "", nil
		}

		class := Classify(err)

		switch {
		case class == FailureRateLimited && attempt < retries:
			wait := s.backoff * time.Duration(attempt+1)
			s.log.Warn(logFmtRateLimitWait, tier.Name, wait, attempt+1, retries)

			sleepErr := s.sleep(ctx, wait)
			if sleepErr != nil {
				return nil, class, fmt.Errorf("rate limit wait interrupted: %w", sleepErr)
			}
		case class == FailureRateLimited && final:
			s.log.Error(logFmtRetriesSpent, tier.Name)

			return nil, class, err
		case class == FailureQuotaExceeded && final:
			s.log.Error(logFmtQuota, tier.Name)

			return nil, class, err
		default:
			if final {
				s.log.Error(logFmtTierFailed, tier.Name, class, err)
			}

			return nil, class, err
		}
	}
}

func (s *FallbackSynthesizer) generate(ctx context.Context, tier Tier, req core.SpeechRequest) ([]byte, error) {
	if s.timeout <= 0 {
		return s.client.Generate(ctx, tier.Model, req)
	}

	requestCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.Generate(requestCtx, tier.Model, req)
}
