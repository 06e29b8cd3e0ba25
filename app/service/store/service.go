package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/do"

	"stagetalk/app/config"
)

// Turn is one persisted conversation turn: the prompt that drove it and
// the raw provider response, as the original stored per user.
type Turn struct {
	UserID    string    `json:"userId"`
	Prompt    string    `json:"prompt"`
	Speaker   string    `json:"speaker"`
	Response  string    `json:"response"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

// Service is the durable turn log. Memory forgets old turns by design,
// this file does not.
type Service struct {
	path string
	mu   sync.Mutex
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWithPath(filepath.Join(cfg.DataDir, "conversations.jsonl"))
}

func NewWithPath(path string) (*Service, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0755)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation log: %w", err)
	}
	defer file.Close()

	return &Service{path: path}, nil
}

func (s *Service) SaveTurn(turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open conversation log: %w", err)
	}
	defer file.Close()

	if _, err = file.WriteString(string(data) + "\n"); err != nil {
		return fmt.Errorf("failed to write turn: %w", err)
	}

	return nil
}

// History returns the user's last n turns, oldest first, for rebuilding
// context after a restart.
func (s *Service) History(userID string, n int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation log: %w", err)
	}
	defer file.Close()

	var turns []Turn

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var turn Turn
		if err = json.Unmarshal([]byte(line), &turn); err != nil {
			return nil, fmt.Errorf("failed to parse turn line: %w", err)
		}

		if turn.UserID == userID {
			turns = append(turns, turn)
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading conversation log: %w", err)
	}

	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	return turns, nil
}
