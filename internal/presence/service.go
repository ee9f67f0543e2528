package presence

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Store persists the online flag on the user record
type Store interface {
	SetPresence(id uint, online bool, at time.Time) error
	GetOnlineUserIDs() ([]uint, error)
	SetOffline(ids []uint, at time.Time) error
}

// Service connects hub lifecycle events to the tracker and the user table
type Service struct {
	tracker Tracker
	store   Store
	log     *logrus.Entry
	now     func() time.Time
}

func NewService(tracker Tracker, store Store, log *logrus.Entry) *Service {
	return &Service{tracker: tracker, store: store, log: log, now: time.Now}
}

// Connected marks the user online
func (s *Service) Connected(userID uint) {
	ctx := context.Background()
	if err := s.tracker.Touch(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("presence touch failed")
	}
	if err := s.store.SetPresence(userID, true, s.now()); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to store online flag")
	}
}

// Disconnected drops this instance's claim and marks the user offline when
// no other instance still holds one.
func (s *Service) Disconnected(userID uint) {
	ctx := context.Background()
	if err := s.tracker.Remove(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("presence remove failed")
	}
	online, err := s.tracker.IsOnline(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("presence lookup failed")
		return
	}
	if online {
		return
	}
	if err := s.store.SetPresence(userID, false, s.now()); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to store offline flag")
	}
}

// Heartbeat refreshes the user's TTL
func (s *Service) Heartbeat(userID uint) {
	if err := s.tracker.Touch(context.Background(), userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Debug("presence heartbeat failed")
	}
}

// IsOnline reports the tracker's view of a single user
func (s *Service) IsOnline(ctx context.Context, userID uint) bool {
	online, err := s.tracker.IsOnline(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("presence lookup failed")
		return false
	}
	return online
}

// Online reports the tracker's view of many users
func (s *Service) Online(ctx context.Context, userIDs []uint) map[uint]bool {
	online, err := s.tracker.Online(ctx, userIDs)
	if err != nil {
		s.log.WithError(err).Warn("presence lookup failed")
		return map[uint]bool{}
	}
	return online
}

// Sweep flips users whose claims expired back to offline
func (s *Service) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.GetOnlineUserIDs()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	online, err := s.tracker.Online(ctx, ids)
	if err != nil {
		return 0, err
	}
	stale := make([]uint, 0)
	for _, id := range ids {
		if !online[id] {
			stale = append(stale, id)
		}
	}
	if err := s.store.SetOffline(stale, s.now()); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// StartSweeper schedules Sweep with a cron spec such as "@every 1m".
// The returned cron must be stopped on shutdown.
func (s *Service) StartSweeper(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := s.Sweep(ctx)
		if err != nil {
			s.log.WithError(err).Error("presence sweep failed")
			return
		}
		if n > 0 {
			s.log.WithField("count", n).Info("marked stale users offline")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
