package quota

import (
	"errors"
	"time"
)

var (
	ErrQuotaExceeded = errors.New("daily message limit reached")
	ErrTooSoon       = errors.New("requests too frequent")
)

type userQuota struct {
	UserID        string    `json:"userId"`
	UsedToday     int       `json:"usedToday"`
	LastResetDate string    `json:"lastResetDate"`
	LastRequest   time.Time `json:"lastRequest"`
}

// Stats is the aggregate view served to the admin endpoint.
type Stats struct {
	TotalUsers         int `json:"totalUsers"`
	ActiveUsers        int `json:"activeUsers"`
	TotalMessagesToday int `json:"totalMessagesToday"`
}
