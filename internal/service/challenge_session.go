package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"careerprep/internal/domain"
)

const currentChallengeKey = "current_challenge_id"

func submissionMarkerKey(challengeID, date string) string {
	return fmt.Sprintf("submission:%s:%s", challengeID, date)
}

// submission is a claimed submission. Everyone waiting on the same challenge
// shares it and reads the outcome once done is closed.
type submission struct {
	done   chan struct{}
	result *domain.SubmissionResult
	err    error
}

// SessionOptions configures a ChallengeSession.
type SessionOptions struct {
	UserID string
	// Duration is the fixed answer window in timer units.
	Duration int
	Retry    RetryPolicy
	// AutoRetry paces the unbounded retry loop of an expired challenge's answer.
	AutoRetry RetryPolicy
	// OnSubmitted runs after a submission is stored; auto reports whether the
	// timer triggered it.
	OnSubmitted func(challenge domain.Challenge, result domain.SubmissionResult, auto bool)
	OnExpired   func(challenge domain.Challenge)
}

// ChallengeSession coordinates one user's attempt at the day's challenge:
// NoChallenge -> Ready -> Active -> Submitted, with SubmissionPending while an
// expired challenge's answer is being retried.
//
// A submission is claimed under the lock before any network call, so a manual
// submit racing the timer results in exactly one SubmitChallenge call. The
// answer draft is not persisted and is lost on reload.
type ChallengeSession struct {
	mu           sync.Mutex
	opts         SessionOptions
	source       domain.ChallengeSource
	store        domain.LocalStore
	entitlements domain.EntitlementChecker
	timer        *ChallengeTimer
	logger       domain.Logger
	now          func() time.Time

	// background outlives individual requests so an expired answer keeps retrying.
	background context.Context
	stop       context.CancelFunc

	state       domain.SessionState
	challenge   *domain.Challenge
	date        string
	answerDraft string
	inflight    *submission
	result      *domain.SubmissionResult
	submittedAt *time.Time
	lastErr     error
}

// NewChallengeSession creates a session in the NoChallenge state.
func NewChallengeSession(
	opts SessionOptions,
	source domain.ChallengeSource,
	store domain.LocalStore,
	entitlements domain.EntitlementChecker,
	timer *ChallengeTimer,
	logger domain.Logger,
) *ChallengeSession {
	background, stop := context.WithCancel(context.Background())
	s := &ChallengeSession{
		opts:         opts,
		source:       source,
		store:        store,
		entitlements: entitlements,
		timer:        timer,
		logger:       logger,
		now:          time.Now,
		background:   background,
		stop:         stop,
		state:        domain.SessionNoChallenge,
	}
	timer.OnExpire(s.handleExpiry)
	return s
}

// Close stops any background retry.
func (s *ChallengeSession) Close() {
	s.stop()
}

// Timer exposes the session's timer so a driver can tick it.
func (s *ChallengeSession) Timer() *ChallengeTimer {
	return s.timer
}

// LoadToday resolves today's challenge. A challenge already submitted today
// (per the local submission marker) moves straight to Submitted without asking
// the challenge source. Loading again on the same day keeps an in-progress
// attempt untouched.
func (s *ChallengeSession) LoadToday(ctx context.Context) (domain.ChallengeSessionView, error) {
	today := domain.DateKey(s.now())

	s.mu.Lock()
	if s.date == today && s.state != domain.SessionNoChallenge {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	}
	if s.date != "" && s.date != today {
		s.resetLocked()
	}
	if marker, ok := s.markerForCurrentLocked(today); ok {
		s.restoreLocked(marker)
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	}
	s.mu.Unlock()

	var challenge *domain.Challenge
	err := Retry(ctx, s.opts.Retry, func(ctx context.Context) error {
		var err error
		challenge, err = s.source.FetchTodayChallenge(ctx, s.opts.UserID, today)
		return err
	})
	if err != nil {
		return s.Snapshot(), fmt.Errorf("failed to fetch today's challenge: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent LoadToday may have won while the fetch was in flight.
	if s.date == today && s.state != domain.SessionNoChallenge {
		return s.viewLocked(), nil
	}
	s.date = today
	if challenge == nil || (!challenge.ExpiresAt.IsZero() && !s.now().Before(challenge.ExpiresAt)) {
		s.state = domain.SessionNoChallenge
		s.challenge = nil
		return s.viewLocked(), nil
	}

	c := *challenge
	s.challenge = &c
	if err := s.store.Set(currentChallengeKey, []byte(c.ID)); err != nil {
		s.logger.Warn("Failed to persist current challenge id", "challenge_id", c.ID, "error", err)
	}
	if marker, ok := s.readMarkerLocked(c.ID, today); ok {
		s.restoreLocked(marker)
		return s.viewLocked(), nil
	}
	s.state = domain.SessionReady
	return s.viewLocked(), nil
}

// Begin starts the answer window.
func (s *ChallengeSession) Begin() (domain.ChallengeSessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionReady {
		return s.viewLocked(), s.transitionError("begin")
	}

	duration := s.opts.Duration
	if s.challenge != nil && !s.challenge.ExpiresAt.IsZero() {
		// Never run past the challenge's own expiry.
		left := int(s.challenge.ExpiresAt.Sub(s.now()) / s.timer.unit)
		if left <= 0 {
			s.state = domain.SessionNoChallenge
			s.challenge = nil
			return s.viewLocked(), domain.ErrChallengeNotFound
		}
		if left < duration {
			duration = left
		}
	}
	s.timer.Reset()
	if err := s.timer.Start(duration); err != nil {
		return s.viewLocked(), err
	}
	s.state = domain.SessionActive
	s.answerDraft = ""
	s.lastErr = nil
	return s.viewLocked(), nil
}

// UpdateAnswer replaces the answer draft. It is only valid while Active and
// before a submission has been claimed.
func (s *ChallengeSession) UpdateAnswer(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionActive || s.inflight != nil {
		return s.transitionError("update answer")
	}
	s.answerDraft = text
	return nil
}

// Submit sends the answer. A caller arriving while another submission for the
// same challenge is in flight waits for it and gets the same result. On a
// network failure before expiry the session stays Active with the draft intact.
func (s *ChallengeSession) Submit(ctx context.Context) (*domain.SubmissionResult, error) {
	s.mu.Lock()
	switch {
	case s.state == domain.SessionSubmitted:
		result := s.result
		s.mu.Unlock()
		return result, nil
	case s.inflight != nil:
		sub := s.inflight
		s.mu.Unlock()
		s.logger.Debug("Submission already in flight, waiting", "user_id", s.opts.UserID)
		return s.wait(ctx, sub)
	case s.state != domain.SessionActive:
		err := s.transitionError("submit")
		s.mu.Unlock()
		return nil, err
	}
	sub, challenge, answer := s.claimLocked()
	s.mu.Unlock()

	return s.send(ctx, sub, challenge, answer, false)
}

// ViewOthersSolutions checks the others_solutions entitlement. It does not
// depend on the session state.
func (s *ChallengeSession) ViewOthersSolutions(ctx context.Context) (domain.Decision, error) {
	return s.entitlements.Check(ctx, s.opts.UserID, domain.FeatureOthersSolutions)
}

// Snapshot returns a copy of the session state.
func (s *ChallengeSession) Snapshot() domain.ChallengeSessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// handleExpiry runs from the timer. It claims the submission synchronously and
// sends it in the background so the tick source is never blocked.
func (s *ChallengeSession) handleExpiry() {
	s.mu.Lock()
	var challenge domain.Challenge
	if s.challenge != nil {
		challenge = *s.challenge
	}
	if s.state != domain.SessionActive || s.inflight != nil {
		s.mu.Unlock()
		s.notifyExpired(challenge)
		return
	}
	sub, challenge, answer := s.claimLocked()
	s.mu.Unlock()

	s.logger.Info("Challenge timer expired, submitting answer", "user_id", s.opts.UserID, "challenge_id", challenge.ID)
	s.notifyExpired(challenge)
	go func() {
		_, _ = s.send(s.background, sub, challenge, answer, true)
	}()
}

func (s *ChallengeSession) notifyExpired(challenge domain.Challenge) {
	if s.opts.OnExpired != nil && challenge.ID != "" {
		s.opts.OnExpired(challenge)
	}
}

// claimLocked marks the challenge as being submitted. Callers hold s.mu.
func (s *ChallengeSession) claimLocked() (*submission, domain.Challenge, string) {
	sub := &submission{done: make(chan struct{})}
	s.inflight = sub
	return sub, *s.challenge, s.answerDraft
}

// send performs the network call for a claimed submission. Manual sends use
// the bounded retry policy; automatic sends retry until they succeed or the
// session is closed.
func (s *ChallengeSession) send(ctx context.Context, sub *submission, challenge domain.Challenge, answer string, auto bool) (*domain.SubmissionResult, error) {
	policy := s.opts.Retry
	if auto {
		policy = s.opts.AutoRetry
		policy.MaxAttempts = 0
		policy.OnRetry = func(attempt int, err error) {
			s.logger.Warn("Retrying expired challenge submission", "user_id", s.opts.UserID, "challenge_id", challenge.ID, "attempt", attempt, "error", err)
			s.markPending(sub, err)
		}
	} else if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error) {
			s.logger.Warn("Retrying challenge submission", "user_id", s.opts.UserID, "challenge_id", challenge.ID, "attempt", attempt, "error", err)
		}
	}

	var result *domain.SubmissionResult
	err := Retry(ctx, policy, func(ctx context.Context) error {
		var err error
		result, err = s.source.SubmitChallenge(ctx, s.opts.UserID, challenge.ID, answer)
		return err
	})
	if errors.Is(err, domain.ErrAlreadySubmitted) {
		// Another device got there first; the server keeps that result.
		err = nil
	}
	if err == nil && result == nil {
		result = &domain.SubmissionResult{Feedback: "Submitted from another device."}
	}

	if err != nil {
		s.fail(sub, challenge, answer, err, auto)
		return nil, err
	}
	s.complete(sub, challenge, *result, auto)
	return result, nil
}

func (s *ChallengeSession) markPending(sub *submission, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == sub {
		s.state = domain.SessionSubmissionPending
		s.lastErr = err
	}
}

func (s *ChallengeSession) complete(sub *submission, challenge domain.Challenge, result domain.SubmissionResult, auto bool) {
	s.mu.Lock()
	current := s.inflight == sub
	if current {
		now := s.now()
		s.state = domain.SessionSubmitted
		s.result = &result
		s.submittedAt = &now
		s.lastErr = nil
		if s.timer.State() == TimerRunning {
			_ = s.timer.Cancel()
		}
		s.writeMarkerLocked(domain.SubmissionMarker{
			ChallengeID: challenge.ID,
			Date:        s.date,
			SubmittedAt: now,
			Challenge:   challenge,
			Result:      result,
		})
	}
	sub.result = &result
	close(sub.done)
	s.mu.Unlock()

	if !current {
		return
	}
	s.logger.Info("Challenge submitted", "user_id", s.opts.UserID, "challenge_id", challenge.ID, "score", result.Score, "auto", auto)
	if s.opts.OnSubmitted != nil {
		s.opts.OnSubmitted(challenge, result, auto)
	}
}

func (s *ChallengeSession) fail(sub *submission, challenge domain.Challenge, answer string, err error, auto bool) {
	s.mu.Lock()
	if s.inflight != sub {
		sub.err = err
		close(sub.done)
		s.mu.Unlock()
		return
	}

	// The timer ran out while a manual submit was failing: the answer must not
	// be dropped, so hand it to the automatic retry loop.
	if !auto && s.timer.State() == TimerExpired && s.background.Err() == nil {
		s.state = domain.SessionSubmissionPending
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Warn("Manual submission failed after expiry, retrying in background", "user_id", s.opts.UserID, "challenge_id", challenge.ID, "error", err)
		go func() {
			_, _ = s.send(s.background, sub, challenge, answer, true)
		}()
		return
	}

	s.lastErr = err
	s.inflight = nil
	if s.state == domain.SessionSubmissionPending {
		s.state = domain.SessionActive
	}
	sub.err = err
	close(sub.done)
	s.mu.Unlock()

	s.logger.Error("Challenge submission failed", err, "user_id", s.opts.UserID, "challenge_id", challenge.ID, "auto", auto)
}

func (s *ChallengeSession) wait(ctx context.Context, sub *submission) (*domain.SubmissionResult, error) {
	select {
	case <-sub.done:
		return sub.result, sub.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// markerForCurrentLocked looks up today's marker for the persisted current challenge id.
func (s *ChallengeSession) markerForCurrentLocked(today string) (domain.SubmissionMarker, bool) {
	raw, err := s.store.Get(currentChallengeKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("Failed to read current challenge id", "error", err)
		}
		return domain.SubmissionMarker{}, false
	}
	return s.readMarkerLocked(string(raw), today)
}

func (s *ChallengeSession) readMarkerLocked(challengeID, date string) (domain.SubmissionMarker, bool) {
	if challengeID == "" {
		return domain.SubmissionMarker{}, false
	}
	raw, err := s.store.Get(submissionMarkerKey(challengeID, date))
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("Failed to read submission marker", "challenge_id", challengeID, "error", err)
		}
		return domain.SubmissionMarker{}, false
	}
	var marker domain.SubmissionMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		s.logger.Warn("Discarding unreadable submission marker", "challenge_id", challengeID, "error", err)
		return domain.SubmissionMarker{}, false
	}
	return marker, true
}

func (s *ChallengeSession) writeMarkerLocked(marker domain.SubmissionMarker) {
	raw, err := json.Marshal(marker)
	if err == nil {
		err = s.store.Set(submissionMarkerKey(marker.ChallengeID, marker.Date), raw)
	}
	if err != nil {
		s.logger.Warn("Failed to persist submission marker", "challenge_id", marker.ChallengeID, "error", err)
	}
}

func (s *ChallengeSession) restoreLocked(marker domain.SubmissionMarker) {
	challenge := marker.Challenge
	result := marker.Result
	submittedAt := marker.SubmittedAt
	s.date = marker.Date
	s.challenge = &challenge
	s.state = domain.SessionSubmitted
	s.result = &result
	s.submittedAt = &submittedAt
}

// resetLocked clears the previous day's session.
func (s *ChallengeSession) resetLocked() {
	s.timer.Reset()
	s.state = domain.SessionNoChallenge
	s.challenge = nil
	s.date = ""
	s.answerDraft = ""
	s.inflight = nil
	s.result = nil
	s.submittedAt = nil
	s.lastErr = nil
}

func (s *ChallengeSession) viewLocked() domain.ChallengeSessionView {
	view := domain.ChallengeSessionView{
		State:       s.state,
		AnswerDraft: s.answerDraft,
		SubmittedAt: s.submittedAt,
	}
	if s.challenge != nil {
		c := *s.challenge
		view.Challenge = &c
		view.ChallengeID = c.ID
	}
	switch s.state {
	case domain.SessionActive:
		view.RemainingSeconds = s.timer.seconds(s.timer.Remaining())
	case domain.SessionReady:
		view.RemainingSeconds = s.timer.seconds(s.opts.Duration)
	}
	if s.result != nil {
		r := *s.result
		view.Result = &r
	}
	if s.lastErr != nil {
		view.LastError = s.lastErr.Error()
	}
	return view
}

func (s *ChallengeSession) transitionError(op string) error {
	return &domain.TransitionError{Machine: "challenge session", From: string(s.state), Op: op}
}
