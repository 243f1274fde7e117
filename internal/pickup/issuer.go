package pickup

import (
	"context"
	"fmt"
	"time"

	"registrar-backend/internal/requests"
	"registrar-backend/internal/shared/metrics"
	"registrar-backend/internal/shared/telemetry"
)

// DefaultRenderTimeout bounds artifact rendering.
const DefaultRenderTimeout = 10 * time.Second

// Renderer produces the printable stub and returns where it was stored.
type Renderer interface {
	Render(ctx context.Context, req requests.DocumentRequest, payload Payload) (artifactRef string, err error)
}

// StubResult is the outcome of one issuance. Warning is set when the
// artifact could not be produced; the code and payload are still valid.
type StubResult struct {
	VerificationCode string
	Payload          Payload
	EncodedPayload   string
	ArtifactRef      string
	IssuedAt         time.Time
	Warning          string
}

// Issuer creates verification codes and pickup stubs.
type Issuer struct {
	Renderer Renderer
	Timeout  time.Duration
	Now      func() time.Time
}

// Issue generates a code and QR payload for req and renders its stub.
// Status is not checked here.
func (i *Issuer) Issue(ctx context.Context, req requests.DocumentRequest) (StubResult, error) {
	if !req.PickupSchedule.HasSlot() {
		return StubResult{}, ErrMissingSchedule
	}

	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	issuedAt := now().UTC()
	code := GenerateCode(req.ID, issuedAt)
	payload := BuildPayload(req, code, issuedAt)
	encoded, err := payload.Encode()
	if err != nil {
		return StubResult{}, err
	}

	result := StubResult{
		VerificationCode: code,
		Payload:          payload,
		EncodedPayload:   encoded,
		IssuedAt:         issuedAt,
	}

	if i.Renderer == nil {
		result.Warning = "stub renderer not configured"
		return result, nil
	}

	start := time.Now()
	ref, err := i.render(ctx, req, payload)
	elapsed := time.Since(start)
	metrics.ObserveStubRender(err == nil, elapsed)
	if err != nil {
		result.Warning = fmt.Sprintf("pickup stub could not be generated: %v", err)
		telemetry.Warn("stub.render_failed", map[string]any{
			"document_request_id": req.ID,
			"duration_ms":         float64(elapsed.Microseconds()) / 1000.0,
			"error":               err,
		})
		return result, nil
	}

	result.ArtifactRef = ref
	telemetry.Info("stub.issued", map[string]any{
		"document_request_id": req.ID,
		"artifact_ref":        ref,
		"duration_ms":         float64(elapsed.Microseconds()) / 1000.0,
	})
	return result, nil
}

type renderOutcome struct {
	ref string
	err error
}

// render runs the renderer under the time box even if it ignores ctx.
func (i *Issuer) render(ctx context.Context, req requests.DocumentRequest, payload Payload) (string, error) {
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan renderOutcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- renderOutcome{err: fmt.Errorf("renderer panic: %v", rec)}
			}
		}()
		ref, err := i.Renderer.Render(rctx, req, payload)
		done <- renderOutcome{ref: ref, err: err}
	}()

	select {
	case out := <-done:
		return out.ref, out.err
	case <-rctx.Done():
		return "", fmt.Errorf("render timed out: %w", rctx.Err())
	}
}
