package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clinic-appointment-system/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrDailyCapReached is returned when a doctor's calendar day has no
// remaining appointment capacity.
var ErrDailyCapReached = errors.New("daily patient cap reached")

// reserveCapScript is a package-level Lua script.
// Redis Go client automatically uses EVALSHA (send SHA hash only) after the
// first call instead of EVAL, which matters under booking bursts.
//
// Logic:
// 1. If the key is missing return -2 (caller initializes from DB and retries)
// 2. DECR remaining capacity
// 3. If result < 0 -> INCR back (rollback) and return -1 (cap reached)
var reserveCapScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -2
	end
	local remaining = redis.call('DECR', KEYS[1])
	if remaining < 0 then
		redis.call('INCR', KEYS[1])
		return -1
	end
	return remaining
`)

// releaseCapScript increments remaining capacity only while the key still
// exists; a key expired past end-of-day needs no restore.
var releaseCapScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	return redis.call('INCR', KEYS[1])
`)

const (
	// Redis key prefix: one counter of remaining capacity per doctor per day
	RedisCapKeyPrefix = "doctor:capacity:"

	// Interval for cleaning up stale mutexes
	mutexCleanupInterval = 10 * time.Minute

	// How long a mutex must be unused before cleanup
	mutexStaleThreshold = 10 * time.Minute
)

// DailyCapService enforces the per-doctor daily patient cap with an atomic
// Redis counter per (doctor, calendar day). The double-booking race on a
// single slot is closed by the appointments partial unique index; this
// service closes the analogous race on the daily cap, which no single-row
// constraint can express.
//
// Counters initialize lazily from the scheduled-appointment count in the
// database and expire shortly after their day ends.
//
// Lock ordering (to prevent deadlocks):
// 1. Acquire the doctor-day mutex FIRST
// 2. Then perform DB/Redis operations
type DailyCapService struct {
	db          *gorm.DB
	redisClient *redis.Client
	log         *logrus.Logger

	// Per doctor-day mutex guarding counter initialization
	capMu sync.Map // map[string]*mutexWithTimestamp

	// Graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// mutexWithTimestamp tracks mutex usage for cleanup
type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // Unix timestamp
}

// NewDailyCapService creates a new DailyCapService.
// Starts a background goroutine for mutex cleanup; call Stop() during
// graceful shutdown.
func NewDailyCapService(db *gorm.DB, redisClient *redis.Client, log *logrus.Logger) *DailyCapService {
	svc := &DailyCapService{
		db:          db,
		redisClient: redisClient,
		log:         log,
		stopChan:    make(chan struct{}),
	}

	svc.wg.Add(1)
	go svc.cleanupMutexMapLoop()

	return svc
}

// Stop gracefully shuts down the service. Safe to call multiple times.
func (s *DailyCapService) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopChan)
		s.wg.Wait()
		s.log.Info("DailyCapService stopped")
	}
}

// Reserve atomically takes one unit of the doctor's capacity for the
// calendar day containing day. Returns ErrDailyCapReached when the day is
// full. A successful reservation must be paired with Release if the
// subsequent appointment insert fails.
func (s *DailyCapService) Reserve(ctx context.Context, doctorID uuid.UUID, day time.Time, limit int) error {
	key := s.capKey(doctorID, day)

	result, err := reserveCapScript.Run(ctx, s.redisClient, []string{key}).Int()
	if err != nil {
		s.log.Warnf("Failed Lua cap reservation for %s: %+v", key, err)
		return fmt.Errorf("lua cap reserve for %s: %w", key, err)
	}

	if result == -2 {
		if err := s.initCapKey(ctx, doctorID, day, limit); err != nil {
			return err
		}
		result, err = reserveCapScript.Run(ctx, s.redisClient, []string{key}).Int()
		if err != nil {
			s.log.Warnf("Failed Lua cap reservation for %s after init: %+v", key, err)
			return fmt.Errorf("lua cap reserve for %s: %w", key, err)
		}
	}

	if result < 0 {
		return ErrDailyCapReached
	}

	s.log.Debugf("Reserved capacity for %s: remaining=%d", key, result)
	return nil
}

// Release restores one unit of capacity, used when an insert fails after a
// reservation or when a future appointment is cancelled. Expired keys are
// left alone.
func (s *DailyCapService) Release(ctx context.Context, doctorID uuid.UUID, day time.Time) error {
	key := s.capKey(doctorID, day)

	if err := releaseCapScript.Run(ctx, s.redisClient, []string{key}).Err(); err != nil {
		s.log.Warnf("Failed to release capacity for %s: %+v", key, err)
		return fmt.Errorf("release capacity for %s: %w", key, err)
	}

	s.log.Debugf("Released capacity for %s", key)
	return nil
}

// SyncOnStartup seeds counters for every doctor-day that already has
// scheduled appointments from today onward. Days without bookings
// initialize lazily on first reservation. Should be called before
// accepting traffic (startup/disaster recovery).
func (s *DailyCapService) SyncOnStartup(ctx context.Context) error {
	s.log.Info("Starting daily-cap re-sync from database...")
	startTime := time.Now()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		s.log.Warnf("Redis is not available, skipping sync: %+v", err)
		return fmt.Errorf("redis ping failed: %w", err)
	}

	today := time.Now().Truncate(24 * time.Hour)

	type capRow struct {
		DoctorID          uuid.UUID
		Day               time.Time
		BookedCount       int64
		DailyPatientLimit int
	}
	var rows []capRow

	err := s.db.WithContext(ctx).Model(&entity.Appointment{}).
		Select(`
			appointments.doctor_id,
			date_trunc('day', appointments.start_time) as day,
			COUNT(*) as booked_count,
			doctor_profiles.daily_patient_limit
		`).
		Joins("JOIN doctor_profiles ON doctor_profiles.user_id = appointments.doctor_id").
		Where("appointments.status = ? AND appointments.start_time >= ?", entity.AppointmentStatusScheduled, today).
		Group("appointments.doctor_id, day, doctor_profiles.daily_patient_limit").
		Scan(&rows).Error
	if err != nil {
		s.log.Errorf("Failed to query scheduled counts: %+v", err)
		return fmt.Errorf("query scheduled counts: %w", err)
	}

	if len(rows) == 0 {
		s.log.Info("No upcoming scheduled appointments found for sync")
		return nil
	}

	pipe := s.redisClient.TxPipeline()
	for _, row := range rows {
		remaining := row.DailyPatientLimit - int(row.BookedCount)
		if remaining < 0 {
			remaining = 0
		}
		key := s.capKey(row.DoctorID, row.Day)
		pipe.Set(ctx, key, remaining, s.calculateTTL(row.Day))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Errorf("Failed to execute cap sync pipeline: %+v", err)
		return fmt.Errorf("cap sync pipeline: %w", err)
	}

	s.log.Infof("Daily-cap re-sync completed: %d doctor-days synced in %v", len(rows), time.Since(startTime))
	return nil
}

// initCapKey sets the counter from the database under the doctor-day mutex
// so two concurrent first reservations cannot double-initialize.
func (s *DailyCapService) initCapKey(ctx context.Context, doctorID uuid.UUID, day time.Time, limit int) error {
	key := s.capKey(doctorID, day)

	mt := s.getCapMutex(key)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var booked int64
	err := s.db.WithContext(ctx).Model(&entity.Appointment{}).
		Where("doctor_id = ? AND status = ? AND start_time >= ? AND start_time < ?",
			doctorID, entity.AppointmentStatusScheduled, dayStart, dayEnd).
		Count(&booked).Error
	if err != nil {
		s.log.Warnf("Failed to count scheduled appointments for %s: %+v", key, err)
		return fmt.Errorf("count scheduled for %s: %w", key, err)
	}

	remaining := limit - int(booked)
	if remaining < 0 {
		remaining = 0
	}

	// SetNX: lose gracefully to a concurrent initializer
	if err := s.redisClient.SetNX(ctx, key, remaining, s.calculateTTL(dayStart)).Err(); err != nil {
		s.log.Warnf("Failed to initialize capacity key %s: %+v", key, err)
		return fmt.Errorf("init capacity key %s: %w", key, err)
	}

	s.log.Debugf("Initialized capacity key %s: remaining=%d", key, remaining)
	return nil
}

func (s *DailyCapService) capKey(doctorID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s%s:%s", RedisCapKeyPrefix, doctorID, day.Format("2006-01-02"))
}

// getCapMutex returns the mutex for a specific doctor-day key
func (s *DailyCapService) getCapMutex(key string) *mutexWithTimestamp {
	mt, _ := s.capMu.LoadOrStore(key, &mutexWithTimestamp{})
	result := mt.(*mutexWithTimestamp)
	result.lastUsed.Store(time.Now().Unix())
	return result
}

// cleanupMutexMapLoop runs in background to clean stale mutexes
func (s *DailyCapService) cleanupMutexMapLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(mutexCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			s.log.Debug("Mutex cleanup goroutine stopping")
			return
		case <-ticker.C:
			s.cleanupStaleMutexes()
		}
	}
}

// cleanupStaleMutexes removes unused mutexes using TryLock for safety
func (s *DailyCapService) cleanupStaleMutexes() {
	cutoffTime := time.Now().Add(-mutexStaleThreshold).Unix()
	var cleaned int

	s.capMu.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}

		// TryLock first - if we can't get the lock, someone is using it.
		// lastUsed is re-checked inside the lock so a concurrent user
		// cannot be cleaned away.
		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoffTime {
				s.capMu.Delete(key)
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		s.log.Debugf("Cleaned up %d stale mutexes", cleaned)
	}
}

// calculateTTL returns TTL: 24 hours after the day ends
func (s *DailyCapService) calculateTTL(day time.Time) time.Duration {
	expireAt := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).AddDate(0, 0, 2)
	ttl := time.Until(expireAt)

	if ttl <= 0 {
		// Past day - short TTL for cleanup
		return 1 * time.Minute
	}

	return ttl
}
