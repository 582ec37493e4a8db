package events

import (
	"context"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/kds/pkg"
)

// ChangeFeed is the backing store's change channel as the listener consumes
// it. WaitForChange blocks for a bounded interval and returns (nil, nil) on
// timeout so the loop can observe shutdown between waits.
type ChangeFeed interface {
	Connect(ctx context.Context) error
	WaitForChange(ctx context.Context) (pkg.ChangeEvent, error)
	Close() error
}

// Refresher rebuilds every known station's cache from the store.
type Refresher interface {
	RefreshAll(ctx context.Context)
}

// Broadcaster schedules a broadcast pass over all stations. The listener
// never performs the broadcast itself; dispatch state belongs to the hub
// goroutine.
type Broadcaster interface {
	ScheduleBroadcastAll()
}

// ChangeListener watches the store's change channel and drives the
// refresh-then-broadcast cycle. It runs for the life of the process:
// any failure demotes it to disconnected and the backoff/retry loop is the
// sole recovery mechanism. It is independent of client connections; a
// station with no viewers still gets refreshed.
type ChangeListener struct {
	feed        ChangeFeed
	refresher   Refresher
	broadcaster Broadcaster
	logger      apt.Logger

	backoff time.Duration
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewChangeListener(feed ChangeFeed, refresher Refresher, broadcaster Broadcaster, logger apt.Logger) *ChangeListener {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &ChangeListener{
		feed:        feed,
		refresher:   refresher,
		broadcaster: broadcaster,
		logger:      logger,
		backoff:     5 * time.Second,
		done:        make(chan struct{}),
	}
}

func (l *ChangeListener) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(runCtx)
	l.logger.Info("change listener started")
	return nil
}

func (l *ChangeListener) Stop(ctx context.Context) error {
	if l.cancel != nil {
		l.cancel()
	}
	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (l *ChangeListener) run(ctx context.Context) {
	defer close(l.done)
	defer l.feed.Close()

	connected := false
	for ctx.Err() == nil {
		if !connected {
			if err := l.feed.Connect(ctx); err != nil {
				l.logger.Errorf("change channel connect failed, retrying in %s: %v", l.backoff, err)
				if !l.sleep(ctx) {
					return
				}
				continue
			}
			connected = true
			l.logger.Info("change channel connected")
		}

		evt, err := l.feed.WaitForChange(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Errorf("change channel failed, reconnecting in %s: %v", l.backoff, err)
			l.feed.Close()
			connected = false
			if !l.sleep(ctx) {
				return
			}
			continue
		}
		if evt == nil {
			// Bounded wait elapsed without a change.
			continue
		}

		l.logger.Infof("store change notification: %s", evt.Data())
		l.refresher.RefreshAll(ctx)
		l.broadcaster.ScheduleBroadcastAll()
		if err := evt.Ack(); err != nil {
			l.logger.Errorf("cannot acknowledge change notification: %v", err)
		}
	}
}

func (l *ChangeListener) sleep(ctx context.Context) bool {
	select {
	case <-time.After(l.backoff):
		return true
	case <-ctx.Done():
		return false
	}
}
