package requests

import (
	"testing"
	"time"
)

func TestEstimateCompletion(t *testing.T) {
	t.Parallel()

	monday := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	friday := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		dt       DocumentType
		priority Priority
		from     time.Time
		want     time.Time
	}{
		{name: "form137 normal from monday", dt: DocForm137, priority: PriorityNormal, from: monday, want: time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)},
		{name: "form137 normal from friday skips weekend", dt: DocForm137, priority: PriorityNormal, from: friday, want: time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)},
		{name: "diploma low rounds up", dt: DocDiploma, priority: PriorityLow, from: monday, want: AddBusinessDays(monday, 11)},
		{name: "goodMoral urgent floors at one day", dt: DocGoodMoral, priority: PriorityUrgent, from: monday, want: time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)},
		{name: "transcript high", dt: DocTranscript, priority: PriorityHigh, from: monday, want: AddBusinessDays(monday, 4)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := EstimateCompletion(tt.dt, tt.priority, tt.from, nil)
			if !got.Equal(tt.want) {
				t.Fatalf("EstimateCompletion = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEstimateCompletionOverrides(t *testing.T) {
	monday := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	got := EstimateCompletion(DocForm137, PriorityNormal, monday, map[DocumentType]int{DocForm137: 1})
	if want := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("override ignored: got %s want %s", got, want)
	}
}

func TestProcessingDaysMinimumOne(t *testing.T) {
	if got := ProcessingDays(1, PriorityUrgent); got != 1 {
		t.Fatalf("expected minimum of 1, got %d", got)
	}
	if got := ProcessingDays(7, PriorityLow); got != 11 {
		t.Fatalf("expected ceil(10.5)=11, got %d", got)
	}
}

func TestSeedSteps(t *testing.T) {
	steps := SeedSteps(DocDiploma)
	if len(steps) == 0 {
		t.Fatalf("expected steps")
	}
	if steps[len(steps)-1].Name != "Ready for Release" {
		t.Fatalf("unexpected last step %q", steps[len(steps)-1].Name)
	}
	for _, s := range steps {
		if s.Status != StepPending || s.CompletedAt != nil {
			t.Fatalf("seeded step should be pending: %+v", s)
		}
	}
	if len(SeedSteps(DocForm138)) >= len(steps) {
		t.Fatalf("diploma should carry an extra step")
	}
}
