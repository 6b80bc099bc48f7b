package reaper

import (
	"log"
	"sync"
	"time"
)

// Storage is the slice of the room store the reaper needs
type Storage interface {
	DeleteInactiveBefore(threshold time.Time) (int64, error)
}

type Config struct {
	Interval time.Duration
	RoomTTL  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		RoomTTL:  24 * time.Hour,
	}
}

// Service evicts rooms whose last activity is older than RoomTTL. It never
// consults live membership: a room with connected users has recent activity
// and is never matched.
type Service struct {
	storage Storage
	config  Config
	stop    chan struct{}
	wg      sync.WaitGroup
}

func New(storage Storage, config Config) *Service {
	return &Service{
		storage: storage,
		config:  config,
		stop:    make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Reaper started (interval: %v, room TTL: %v)",
		s.config.Interval, s.config.RoomTTL)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Reaper stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.ReapOnce()
		}
	}
}

// ReapOnce runs a single eviction pass. Failure is logged and the schedule
// carries on.
func (s *Service) ReapOnce() {
	threshold := time.Now().Add(-s.config.RoomTTL)

	deleted, err := s.storage.DeleteInactiveBefore(threshold)
	if err != nil {
		log.Printf("Reaper: failed to delete inactive rooms: %v", err)
		return
	}

	if deleted > 0 {
		log.Printf("Reaper: removed %d inactive rooms", deleted)
	}
}
