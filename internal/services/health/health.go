package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports whether the registrar backend can reach its dependencies.
type Service struct {
	DB          Pinger
	StoreKind   string
	QueueKind   string
	SettingsSrc string
}

// Report is the health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Store    string `json:"store"`
	Queue    string `json:"queue"`
	Settings string `json:"settings"`
}

// NewService constructs a health service. db may be nil when repositories
// are in memory.
func NewService(db Pinger, storeKind, queueKind, settingsSrc string) *Service {
	return &Service{DB: db, StoreKind: storeKind, QueueKind: queueKind, SettingsSrc: settingsSrc}
}

// Status pings the database and describes the configured backends.
func (s *Service) Status(ctx context.Context) Report {
	out := Report{
		OK:       true,
		Database: "memory",
		Store:    orDefault(s.StoreKind, "local"),
		Queue:    orDefault(s.QueueKind, "memory"),
		Settings: orDefault(s.SettingsSrc, "defaults"),
	}
	if s.DB == nil {
		return out
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		out.OK = false
		out.Database = "unreachable"
		return out
	}
	out.Database = "postgres"
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
