package supervisor

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ErrConflict marks an exclusivity violation: another process is
// already consuming the same update stream. Retrying would fight the
// other instance, so this is fatal to the ingestion loop.
var ErrConflict = errors.New("another consumer is receiving updates")

// State is the supervisor's lifecycle position.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateTerminated:
		return "TERMINATED"
	}
	return "UNKNOWN"
}

// Source is an update stream with an explicit open/close lifecycle.
// Open returns a channel of updates and a channel reporting receive
// failures; a failed source stops producing until reopened.
type Source interface {
	Open(ctx context.Context) (<-chan tgbotapi.Update, <-chan error, error)
	Close()
}

// Dispatch handles one inbound update. It must absorb its own errors;
// anything it lets escape is logged, never escalated.
type Dispatch func(ctx context.Context, update tgbotapi.Update)

// Supervisor owns the ingestion connection lifecycle:
// STARTING → RUNNING → (STOPPING → STARTING) | TERMINATED.
// Transient failures restart the pipeline after a fixed backoff; a
// conflict terminates it.
type Supervisor struct {
	source   Source
	dispatch Dispatch
	backoff  time.Duration
	logger   *logrus.Logger
	restarts func()

	state State
}

// New creates a supervisor over the given source.
func New(source Source, dispatch Dispatch, backoff time.Duration, logger *logrus.Logger, onRestart func()) *Supervisor {
	return &Supervisor{
		source:   source,
		dispatch: dispatch,
		backoff:  backoff,
		logger:   logger,
		restarts: onRestart,
	}
}

// State returns the last lifecycle position, for logging and tests.
func (s *Supervisor) State() State {
	return s.state
}

// Run drives the state machine until the context is cancelled (returns
// nil) or a conflict is detected (returns ErrConflict). Updates are
// dispatched one at a time, preserving per-group ordering.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		s.setState(StateStarting)

		updates, errs, err := s.source.Open(ctx)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				return s.terminate(err)
			}
			s.logger.WithError(err).Error("Failed to open update source")
			if !s.stopAndWait(ctx) {
				return nil
			}
			continue
		}

		s.setState(StateRunning)

		err = s.run(ctx, updates, errs)
		if err == nil {
			// Context cancelled: graceful shutdown.
			s.setState(StateStopping)
			s.source.Close()
			return nil
		}
		if errors.Is(err, ErrConflict) {
			s.source.Close()
			return s.terminate(err)
		}

		s.logger.WithError(err).Error("Update source failed, restarting")
		if !s.stopAndWait(ctx) {
			return nil
		}
	}
}

// run blocks dispatching updates until the context ends (nil) or the
// source reports a failure.
func (s *Supervisor) run(ctx context.Context, updates <-chan tgbotapi.Update, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("update channel closed")
			}
			s.dispatch(ctx, update)
		case err, ok := <-errs:
			if !ok {
				return errors.New("error channel closed")
			}
			return err
		}
	}
}

// stopAndWait tears the source down and waits out the backoff. Returns
// false when the context ended during the wait.
func (s *Supervisor) stopAndWait(ctx context.Context) bool {
	s.setState(StateStopping)
	s.source.Close()

	if s.restarts != nil {
		s.restarts()
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.backoff):
		return true
	}
}

func (s *Supervisor) terminate(cause error) error {
	s.setState(StateTerminated)
	s.logger.WithError(cause).Error("Ingestion terminated: conflicting consumer detected")
	return ErrConflict
}

func (s *Supervisor) setState(state State) {
	if s.state != state {
		s.logger.WithFields(logrus.Fields{
			"from": s.state.String(),
			"to":   state.String(),
		}).Info("Ingestion state transition")
	}
	s.state = state
}
