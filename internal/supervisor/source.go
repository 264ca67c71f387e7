package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// TelegramSource long-polls the Bot API for updates. Opening the source
// discards any backlog queued while the process was offline, so stale
// moderation decisions are never replayed after a restart.
type TelegramSource struct {
	bot     *tgbotapi.BotAPI
	timeout int
	limit   int
	logger  *logrus.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTelegramSource creates a source polling with the given long-poll
// timeout (seconds) and batch limit.
func NewTelegramSource(bot *tgbotapi.BotAPI, timeout, limit int, logger *logrus.Logger) *TelegramSource {
	return &TelegramSource{
		bot:     bot,
		timeout: timeout,
		limit:   limit,
		logger:  logger,
	}
}

// Open probes the API once to drop pending updates and learn the next
// offset, then starts the polling goroutine. A 409 on the probe means
// another consumer holds the stream and surfaces as ErrConflict.
func (t *TelegramSource) Open(ctx context.Context) (<-chan tgbotapi.Update, <-chan error, error) {
	pending, err := t.bot.GetUpdates(tgbotapi.UpdateConfig{Offset: -1, Limit: 1})
	if err != nil {
		return nil, nil, classifyError(err)
	}

	offset := 0
	if len(pending) > 0 {
		offset = pending[len(pending)-1].UpdateID + 1
		t.logger.WithField("offset", offset).Info("Dropped pending updates")
	}

	pollCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	updates := make(chan tgbotapi.Update)
	errs := make(chan error, 1)

	go t.poll(pollCtx, offset, updates, errs)

	return updates, errs, nil
}

// poll receives until the context ends or a request fails. Failures are
// reported once; the supervisor decides whether to reopen.
func (t *TelegramSource) poll(ctx context.Context, offset int, updates chan<- tgbotapi.Update, errs chan<- error) {
	defer close(t.done)
	defer close(updates)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := t.bot.GetUpdates(tgbotapi.UpdateConfig{
			Offset:  offset,
			Limit:   t.limit,
			Timeout: t.timeout,
		})
		if err != nil {
			select {
			case errs <- classifyError(err):
			case <-ctx.Done():
			}
			return
		}

		for _, update := range batch {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			select {
			case updates <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close cancels the in-flight receive and waits for the poller to
// finish, with bounded effort so a restart can always proceed.
func (t *TelegramSource) Close() {
	if t.cancel == nil {
		return
	}
	t.cancel()

	select {
	case <-t.done:
	case <-time.After(5 * time.Second):
		t.logger.Warn("Timed out waiting for poller shutdown")
	}

	t.cancel = nil
	t.done = nil
}

// classifyError separates the fatal exclusivity conflict (HTTP 409,
// reported when a second consumer polls the same token) from transient
// failures.
func classifyError(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code == http.StatusConflict {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
