// Package notification announces contest starts and new problems to users,
// holding events for offline users until they reconnect.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codejudge/internal/common"
	"codejudge/internal/domain/model"
	"codejudge/internal/domain/repository"
	"codejudge/internal/platform/config"
	"codejudge/internal/platform/logger"
	"codejudge/internal/platform/queue"

	"go.uber.org/zap"
)

// EventContestLive is broadcast to a contest's room when it starts, for
// viewers who are not participants.
const EventContestLive = "contestLive"

// ContestRoom names the realtime room of a contest.
func ContestRoom(contestID string) string {
	return "contest:" + contestID
}

// DeliveryChannel is the realtime side the scheduler pushes through.
type DeliveryChannel interface {
	IsOnline(userID string) bool
	PushToUser(userID, event string, payload interface{})
	PushToRoom(room, event string, payload interface{})
}

// ScanLocker hands out a lease so only one instance scans per tick.
type ScanLocker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*queue.Lease, error)
}

type Options struct {
	ScanInterval   time.Duration
	StartWindow    time.Duration
	SweepInterval  time.Duration
	PendingTTL     time.Duration
	DedupRetention time.Duration
	ScanLockKey    string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ScanInterval:   cfg.ContestScanInterval,
		StartWindow:    cfg.ContestStartWindow,
		SweepInterval:  cfg.PendingSweepInterval,
		PendingTTL:     cfg.PendingTTL,
		DedupRetention: cfg.NotifyDedupRetention,
		ScanLockKey:    cfg.ContestScanLockKey,
	}
}

func (o Options) withDefaults() Options {
	if o.ScanInterval <= 0 {
		o.ScanInterval = 10 * time.Second
	}
	if o.StartWindow <= 0 {
		o.StartWindow = 30 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	if o.PendingTTL <= 0 {
		o.PendingTTL = time.Hour
	}
	if o.DedupRetention <= 0 {
		o.DedupRetention = 24 * time.Hour
	}
	if o.ScanLockKey == "" {
		o.ScanLockKey = "contest_scan_lock"
	}
	return o
}

type Scheduler struct {
	contests repository.ContestRepository
	users    repository.UserRepository
	channel  DeliveryChannel
	pending  PendingStore
	locker   ScanLocker
	opts     Options
	now      func() time.Time
	log      *zap.SugaredLogger

	notifiedContests *dedupSet
	notifiedProblems *dedupSet

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler builds a scheduler. locker may be nil for a single instance.
func NewScheduler(
	contests repository.ContestRepository,
	users repository.UserRepository,
	channel DeliveryChannel,
	pending PendingStore,
	locker ScanLocker,
	opts Options,
) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		contests:         contests,
		users:            users,
		channel:          channel,
		pending:          pending,
		locker:           locker,
		opts:             opts,
		now:              time.Now,
		log:              logger.NewNamedLogger("scheduler"),
		notifiedContests: newDedupSet(opts.DedupRetention),
		notifiedProblems: newDedupSet(opts.DedupRetention),
	}
}

// Start runs the contest scan and the pending sweep until ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.every(ctx, "contest scan", s.opts.ScanInterval, s.CheckAndNotifyStartingContests)
	go s.every(ctx, "pending sweep", s.opts.SweepInterval, s.SweepPending)
	s.log.Infof("Scheduler started: scan every %s, sweep every %s", s.opts.ScanInterval, s.opts.SweepInterval)
}

// Stop cancels both loops and waits for the running iteration to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debugf("%s loop stopping", name)
			return
		case <-ticker.C:
			s.runSafely(ctx, name, fn)
		}
	}
}

// runSafely keeps a panicking iteration from killing the loop.
func (s *Scheduler) runSafely(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("%s panicked: %v", name, r)
		}
	}()
	fn(ctx)
}

// CheckAndNotifyStartingContests announces every unblocked contest that
// started within the start window and has not been announced yet.
func (s *Scheduler) CheckAndNotifyStartingContests(ctx context.Context) {
	if s.locker != nil {
		lease, err := s.locker.TryAcquire(ctx, s.opts.ScanLockKey, s.opts.ScanInterval)
		if err != nil {
			s.log.Errorw("Could not acquire contest scan lease", "error", err)
			return
		}
		if lease == nil {
			s.log.Debug("Contest scan lease held by another instance, skipping tick")
			return
		}
		defer func() {
			if _, err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warnw("Failed to release contest scan lease", "error", err)
			}
		}()
	}

	now := s.now()
	contests, err := s.contests.FindStartingContests(ctx, now.Add(-s.opts.StartWindow), now)
	if err != nil {
		s.log.Errorw("Failed to query starting contests", "error", err)
		return
	}

	for _, c := range contests {
		if s.notifiedContests.Has(c.ID) {
			continue
		}
		participants, err := s.contests.ParticipantIDs(ctx, c.ID)
		if err != nil {
			s.log.Errorw("Failed to load contest participants", "contest_id", c.ID, "error", err)
			continue
		}
		s.NotifyContestStart(ctx, c.ID, participants)
	}
}

// NotifyContestStart delivers the start notification for contestID to each
// participant at most once.
func (s *Scheduler) NotifyContestStart(ctx context.Context, contestID string, participantIDs []string) {
	contest, err := s.contests.FindContestByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Warnw("Contest not found, skipping start notification", "contest_id", contestID)
			return
		}
		s.log.Errorw("Failed to load contest", "contest_id", contestID, "error", err)
		return
	}

	now := s.now()
	if !s.notifiedContests.Mark(contestID, now) {
		return
	}

	claimed, err := s.contests.ClaimStartNotification(ctx, contestID)
	if err != nil {
		s.log.Warnw("Could not persist contest start claim, notifying anyway", "contest_id", contestID, "error", err)
	} else if !claimed {
		s.log.Infow("Contest start already announced", "contest_id", contestID)
		return
	}

	n := model.Notification{
		Type:      model.NotificationContestStarted,
		ContestID: contest.ID,
		Title:     contest.Title,
		Message:   fmt.Sprintf("Contest %q has started!", contest.Title),
		Timestamp: now,
	}
	online, queued := s.deliver(ctx, participantIDs, n)
	s.channel.PushToRoom(ContestRoom(contest.ID), EventContestLive, n)

	s.log.Infow("Contest start notified",
		"contest_id", contest.ID,
		"participants", len(participantIDs),
		"pushed", online,
		"queued", queued,
	)
}

// NotifyNewProblem tells admins about a newly ingested problem, once per slug.
func (s *Scheduler) NotifyNewProblem(ctx context.Context, slug string) {
	now := s.now()
	if !s.notifiedProblems.Mark(slug, now) {
		return
	}

	admins, err := s.users.ListAdminIDs(ctx)
	if err != nil {
		s.log.Errorw("Failed to list admins for new problem notification", "slug", slug, "error", err)
		return
	}

	n := model.Notification{
		Type:      model.NotificationNewProblem,
		Slug:      slug,
		Message:   fmt.Sprintf("New problem %q has been added", slug),
		Timestamp: now,
	}
	online, queued := s.deliver(ctx, admins, n)
	s.log.Infow("New problem notified", "slug", slug, "admins", len(admins), "pushed", online, "queued", queued)
}

// deliver pushes n to online users and queues it for the rest. Each store
// drains atomically, so a queued entry reaches a user who comes online
// exactly once, through either this path or the connect handler.
func (s *Scheduler) deliver(ctx context.Context, userIDs []string, n model.Notification) (online, queued int) {
	for _, userID := range userIDs {
		if s.channel.IsOnline(userID) {
			s.channel.PushToUser(userID, n.Type, n)
			online++
			continue
		}
		added, err := s.pending.Enqueue(ctx, userID, Entry{Notification: n, EnqueuedAt: s.now()})
		if err != nil {
			s.log.Errorw("Failed to queue notification", "user_id", userID, "type", n.Type, "error", err)
			continue
		}
		if added {
			queued++
		}
		// The user may have connected after the presence check, with the
		// connect handler draining before this entry landed.
		if s.channel.IsOnline(userID) {
			s.SendPendingNotifications(ctx, userID)
		}
	}
	return online, queued
}

// SendPendingNotifications flushes a reconnecting user's queue in order.
func (s *Scheduler) SendPendingNotifications(ctx context.Context, userID string) {
	entries, err := s.pending.Drain(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to drain pending notifications", "user_id", userID, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		s.channel.PushToUser(userID, e.Notification.Type, e.Notification)
	}
	s.log.Infow("Delivered pending notifications", "user_id", userID, "count", len(entries))
}

// SweepPending drops queued entries older than the pending TTL and forgets
// de-duplication keys past their retention.
func (s *Scheduler) SweepPending(ctx context.Context) {
	now := s.now()
	removed, err := s.pending.Sweep(ctx, now.Add(-s.opts.PendingTTL))
	if err != nil {
		s.log.Errorw("Pending notification sweep failed", "error", err)
	}
	contests := s.notifiedContests.Evict(now)
	problems := s.notifiedProblems.Evict(now)
	if removed > 0 || contests > 0 || problems > 0 {
		s.log.Infow("Pending sweep done", "expired", removed, "contest_keys", contests, "problem_keys", problems)
	}
}
