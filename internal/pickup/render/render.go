// Package render produces printable pickup stubs and stores them in the
// object store.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"registrar-backend/internal/pickup"
	"registrar-backend/internal/requests"
	"registrar-backend/internal/settings"
	"registrar-backend/internal/shared/storage/object"
	"registrar-backend/internal/shared/util"
)

// Format selects the stub artifact type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

const (
	mimePDF  = "application/pdf"
	mimeHTML = "text/html; charset=utf-8"

	qrSizePx = 256
)

// ContentType returns the MIME type for stubs of format f.
func (f Format) ContentType() string {
	if f == FormatHTML {
		return mimeHTML
	}
	return mimePDF
}

// ContentTypeForKey infers the MIME type from a stored stub key.
func ContentTypeForKey(key string) string {
	if strings.HasSuffix(strings.ToLower(key), ".html") {
		return mimeHTML
	}
	return mimePDF
}

// SettingsSource supplies current school settings.
type SettingsSource interface {
	Get() settings.Settings
}

// Renderer writes stubs to Store. It implements pickup.Renderer.
type Renderer struct {
	Store    object.ObjectStore
	Settings SettingsSource
	Format   Format
	Now      func() time.Time
}

// Stub carries everything a template needs.
type Stub struct {
	School       settings.School
	RequestID    string
	StudentName  string
	DocumentName string
	Pickup       string
	TimeSlot     string
	Code         string
	IssuedAt     string
	ExpiresAt    string
	QRPNG        []byte
}

// FileName builds pickup_stub_<student>_<millis>.<ext>.
func FileName(studentName string, format Format, now time.Time) string {
	ext := string(FormatPDF)
	if format == FormatHTML {
		ext = string(FormatHTML)
	}
	return "pickup_stub_" + util.NameSegment(studentName) + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "." + ext
}

// StorageKey namespaces stubs per owner.
func StorageKey(userID, fileName string) string {
	return path.Join("stubs", util.HashUserKey(userID), fileName)
}

// Render builds the stub for req and stores it, returning the storage key.
func (r *Renderer) Render(ctx context.Context, req requests.DocumentRequest, payload pickup.Payload) (string, error) {
	if r.Store == nil {
		return "", errors.New("stub store not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stub, err := r.BuildStub(req, payload)
	if err != nil {
		return "", err
	}

	format := r.Format
	if format != FormatHTML {
		format = FormatPDF
	}
	var data []byte
	switch format {
	case FormatHTML:
		data, err = HTML(stub)
	default:
		data, err = PDF(stub)
	}
	if err != nil {
		return "", fmt.Errorf("render %s stub: %w", format, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := StorageKey(req.UserID, FileName(stub.StudentName, format, r.now()))
	if _, err := r.Store.Put(ctx, key, format.ContentType(), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store stub key=%s: %w", key, err)
	}
	return key, nil
}

// BuildStub resolves display values and the QR image for a request.
func (r *Renderer) BuildStub(req requests.DocumentRequest, payload pickup.Payload) (Stub, error) {
	cfg := settings.Defaults()
	if r.Settings != nil {
		cfg = r.Settings.Get()
	}

	encoded, err := payload.Encode()
	if err != nil {
		return Stub{}, err
	}
	png, err := qrcode.Encode(encoded, qrcode.Medium, qrSizePx)
	if err != nil {
		return Stub{}, fmt.Errorf("encode qr image: %w", err)
	}

	stub := Stub{
		School:       cfg.School,
		RequestID:    req.ID,
		StudentName:  req.StudentName(),
		DocumentName: req.DocumentType.Label(),
		TimeSlot:     payload.TimeSlot,
		Code:         payload.VerificationCode,
		QRPNG:        png,
	}
	if stub.StudentName == "" {
		stub.StudentName = payload.StudentName
	}
	if sched := req.PickupSchedule; sched != nil && sched.ScheduledDateTime != nil {
		stub.Pickup = sched.ScheduledDateTime.Format("Monday, January 2, 2006")
	}
	if payload.IssuedAt != nil {
		stub.IssuedAt = payload.IssuedAt.Format("January 2, 2006 15:04 MST")
		days := cfg.StubExpiryDays
		if days <= 0 {
			days = pickup.DefaultExpiryDays
		}
		stub.ExpiresAt = payload.IssuedAt.AddDate(0, 0, days).Format("January 2, 2006")
	}
	return stub, nil
}

func (r *Renderer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
