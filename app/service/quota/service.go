package quota

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/do"

	"stagetalk/app/config"
)

// Service enforces the message quota policy: a per-user daily limit and
// a minimum gap between requests. Counters persist as JSONL so restarts
// do not reset anyone's day.
type Service struct {
	cfg  *config.Config
	path string
	now  func() time.Time

	mu    sync.Mutex
	users map[string]*userQuota
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWithPath(cfg, filepath.Join(cfg.DataDir, "quota.jsonl"))
}

func NewWithPath(cfg *config.Config, path string) (*Service, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0755)

	s := &Service{
		cfg:   cfg,
		path:  path,
		now:   time.Now,
		users: make(map[string]*userQuota),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) load() error {
	file, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open quota file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item userQuota
		if err = json.Unmarshal([]byte(line), &item); err != nil {
			return fmt.Errorf("failed to parse quota line: %w", err)
		}

		s.users[item.UserID] = &item
	}

	if err = scanner.Err(); err != nil {
		return fmt.Errorf("error reading quota file: %w", err)
	}

	return nil
}

// save writes the whole table. Callers hold the mutex.
func (s *Service) save() error {
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open quota file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	for _, u := range s.users {
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to marshal quota entry: %w", err)
		}
		if _, err = writer.WriteString(string(data) + "\n"); err != nil {
			return fmt.Errorf("failed to write quota entry: %w", err)
		}
	}

	if err = writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	return nil
}

// Consume checks and spends one message of the user's quota. Both
// rejections leave the counters untouched.
func (s *Service) Consume(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	today := now.Format(time.DateOnly)

	u, ok := s.users[userID]
	if !ok {
		u = &userQuota{UserID: userID, LastResetDate: today}
		s.users[userID] = u
	}

	if u.LastResetDate != today {
		u.UsedToday = 0
		u.LastResetDate = today
	}

	if u.UsedToday >= s.cfg.Quota.DailyLimit {
		return ErrQuotaExceeded
	}

	if !u.LastRequest.IsZero() && now.Sub(u.LastRequest) < s.cfg.Quota.MinInterval() {
		return ErrTooSoon
	}

	u.UsedToday++
	u.LastRequest = now

	return s.save()
}

func (s *Service) Usage(userID string) (used, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok && u.LastResetDate == s.now().Format(time.DateOnly) {
		used = u.UsedToday
	}

	return used, s.cfg.Quota.DailyLimit
}

// ResetDaily zeroes counters whose reset date is stale. Returns how many
// users were reset.
func (s *Service) ResetDaily() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().Format(time.DateOnly)

	resets := 0
	for _, u := range s.users {
		if u.LastResetDate != today {
			u.UsedToday = 0
			u.LastResetDate = today
			resets++
		}
	}

	if resets == 0 {
		return 0, nil
	}

	return resets, s.save()
}

// RunResetLoop replaces the original midnight cron: it sweeps stale
// counters once an hour until the context ends.
func (s *Service) RunResetLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resets, err := s.ResetDaily()
			if err != nil {
				slog.Error("Quota reset sweep failed", "error", err)
				continue
			}
			if resets > 0 {
				slog.Info("Daily quotas reset", "users", resets)
			}
		}
	}
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	today := now.Format(time.DateOnly)

	stats := Stats{TotalUsers: len(s.users)}
	for _, u := range s.users {
		if now.Sub(u.LastRequest) < 24*time.Hour {
			stats.ActiveUsers++
		}
		if u.LastResetDate == today {
			stats.TotalMessagesToday += u.UsedToday
		}
	}

	return stats
}
