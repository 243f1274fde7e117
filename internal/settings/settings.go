package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"registrar-backend/internal/requests"
	"registrar-backend/internal/shared/telemetry"
)

// School describes the institution printed on stubs and notifications.
type School struct {
	Name         string `yaml:"name" json:"name"`
	Address      string `yaml:"address" json:"address"`
	Office       string `yaml:"office" json:"office"`
	OfficeHours  string `yaml:"officeHours" json:"officeHours"`
	ContactPhone string `yaml:"contactPhone" json:"contactPhone"`
	ContactEmail string `yaml:"contactEmail" json:"contactEmail"`
}

// Settings is the registrar configuration loaded from the settings file.
type Settings struct {
	School               School                        `yaml:"school" json:"school"`
	MaxActivePerUser     int                           `yaml:"maxActiveRequestsPerUser" json:"maxActiveRequestsPerUser"`
	StubExpiryDays       int                           `yaml:"stubExpiryDays" json:"stubExpiryDays"`
	NotificationsEnabled bool                          `yaml:"notificationsEnabled" json:"notificationsEnabled"`
	ProcessingDays       map[requests.DocumentType]int `yaml:"processingDays" json:"processingDays"`
	AdminRecipients      []string                      `yaml:"adminRecipients" json:"adminRecipients"`
	TimeSlots            []string                      `yaml:"timeSlots" json:"timeSlots"`
}

// Defaults returns the settings used when no file is configured.
func Defaults() Settings {
	return Settings{
		School: School{
			Name:         "Eastern Luzon Technological National High School",
			Address:      "123 School Street, City, Province",
			Office:       "Registrar's Office",
			OfficeHours:  "Monday to Friday, 8:00 AM to 5:00 PM",
			ContactPhone: "(123) 456-7890",
			ContactEmail: "admin@eltnhs.edu.ph",
		},
		MaxActivePerUser:     5,
		StubExpiryDays:       30,
		NotificationsEnabled: true,
		ProcessingDays:       map[requests.DocumentType]int{},
		TimeSlots: []string{
			"08:00 AM - 10:00 AM",
			"10:00 AM - 12:00 PM",
			"01:00 PM - 03:00 PM",
			"03:00 PM - 05:00 PM",
		},
	}
}

// Validate checks ranges and document type keys.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.School.Name) == "" {
		errs = append(errs, errors.New("school.name is required"))
	}
	if s.MaxActivePerUser < 1 || s.MaxActivePerUser > 20 {
		errs = append(errs, fmt.Errorf("maxActiveRequestsPerUser must be between 1 and 20, got %d", s.MaxActivePerUser))
	}
	if s.StubExpiryDays < 1 || s.StubExpiryDays > 365 {
		errs = append(errs, fmt.Errorf("stubExpiryDays must be between 1 and 365, got %d", s.StubExpiryDays))
	}
	for dt, days := range s.ProcessingDays {
		if _, err := requests.ParseDocumentType(string(dt)); err != nil {
			errs = append(errs, fmt.Errorf("processingDays: %w", err))
			continue
		}
		if days < 1 || days > 30 {
			errs = append(errs, fmt.Errorf("processingDays.%s must be between 1 and 30, got %d", dt, days))
		}
	}
	return errors.Join(errs...)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Settings, error) {
	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.ProcessingDays == nil {
		s.ProcessingDays = map[requests.DocumentType]int{}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Store holds the process-wide settings. Reads never block on a reload.
type Store struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// NewStore loads path once. An empty path yields the defaults.
func NewStore(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path), current: Defaults()}
	if s.path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore wraps fixed settings; Reload keeps them.
func NewStaticStore(s Settings) *Store {
	if s.ProcessingDays == nil {
		s.ProcessingDays = map[requests.DocumentType]int{}
	}
	return &Store{current: s}
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.current
	out.ProcessingDays = make(map[requests.DocumentType]int, len(s.current.ProcessingDays))
	for k, v := range s.current.ProcessingDays {
		out.ProcessingDays[k] = v
	}
	out.AdminRecipients = append([]string(nil), s.current.AdminRecipients...)
	out.TimeSlots = append([]string(nil), s.current.TimeSlots...)
	return out
}

// Reload re-reads the settings file. On error the previous settings stay active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		telemetry.Error("settings.reload_failed", map[string]any{"path": s.path, "error": err})
		return fmt.Errorf("read settings: %w", err)
	}
	next, err := Parse(data)
	if err != nil {
		telemetry.Error("settings.reload_failed", map[string]any{"path": s.path, "error": err})
		return err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	telemetry.Info("settings.loaded", map[string]any{
		"path":                  s.path,
		"school":                next.School.Name,
		"max_active_per_user":   next.MaxActivePerUser,
		"stub_expiry_days":      next.StubExpiryDays,
		"notifications_enabled": next.NotificationsEnabled,
	})
	return nil
}

// Path returns the backing file, empty for default or static stores.
func (s *Store) Path() string {
	return s.path
}
