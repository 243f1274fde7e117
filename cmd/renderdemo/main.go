package main

// Render a sample pickup stub to disk:
//   go run ./cmd/renderdemo --out ./out --format pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"registrar-backend/internal/pickup"
	"registrar-backend/internal/pickup/render"
	"registrar-backend/internal/requests"
	"registrar-backend/internal/settings"
	localstore "registrar-backend/internal/shared/storage/object/local"
)

func main() {
	outDir := pflag.StringP("out", "o", "./out", "directory the stub is written under")
	format := pflag.StringP("format", "f", "pdf", "stub format: pdf or html")
	settingsFile := pflag.String("settings", "", "registrar settings YAML")
	pflag.Parse()

	store, err := settings.NewStore(*settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings: %v\n", err)
		os.Exit(1)
	}

	objects := localstore.New(*outDir)
	issuer := &pickup.Issuer{
		Renderer: &render.Renderer{
			Store:    objects,
			Settings: store,
			Format:   render.Format(strings.ToLower(*format)),
		},
		Timeout: 30 * time.Second,
	}

	ctx := context.Background()
	res, err := issuer.Issue(ctx, sampleRequest())
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
		os.Exit(1)
	}
	if res.Warning != "" {
		fmt.Fprintf(os.Stderr, "render failed: %s\n", res.Warning)
		os.Exit(1)
	}

	if err := validate(ctx, objects, res); err != nil {
		fmt.Fprintf(os.Stderr, "stub validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: wrote %s/%s\ncode: %s\npayload: %s\n", strings.TrimRight(*outDir, "/"), res.ArtifactRef, res.VerificationCode, res.EncodedPayload)
}

func validate(ctx context.Context, objects *localstore.Store, res pickup.StubResult) error {
	rc, err := objects.Open(ctx, res.ArtifactRef)
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}

	text := string(data)
	if render.ContentTypeForKey(res.ArtifactRef) == render.FormatPDF.ContentType() {
		if text, err = render.PlainText(data); err != nil {
			return fmt.Errorf("read back pdf: %w", err)
		}
	}
	if !strings.Contains(text, res.VerificationCode) {
		return fmt.Errorf("verification code %s not found in stub", res.VerificationCode)
	}
	return nil
}

func sampleRequest() requests.DocumentRequest {
	pickupAt := time.Now().UTC().AddDate(0, 0, 3).Truncate(24 * time.Hour).Add(9 * time.Hour)
	return requests.DocumentRequest{
		ID:            "demo-request-000123",
		UserID:        "demo-student",
		GivenName:     "Juan",
		Surname:       "Dela Cruz",
		Email:         "juan.delacruz@example.com",
		StudentNumber: "2019-00123",
		DocumentType:  requests.DocForm137,
		Purpose:       "Transfer to another school",
		Status:        requests.StatusApproved,
		Priority:      requests.PriorityNormal,
		PickupSchedule: &requests.PickupSchedule{
			ScheduledDateTime: &pickupAt,
			TimeSlot:          "08:00 AM - 10:00 AM",
		},
	}
}
