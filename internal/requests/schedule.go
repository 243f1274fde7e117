package requests

import (
	"math"
	"time"
)

var baseProcessingDays = map[DocumentType]int{
	DocForm137:    3,
	DocForm138:    3,
	DocGoodMoral:  2,
	DocDiploma:    7,
	DocTranscript: 5,
}

var priorityMultiplier = map[Priority]float64{
	PriorityLow:    1.5,
	PriorityNormal: 1.0,
	PriorityHigh:   0.75,
	PriorityUrgent: 0.5,
}

// BaseProcessingDays returns the business days a document type normally takes.
func BaseProcessingDays(dt DocumentType) int {
	if days, ok := baseProcessingDays[dt]; ok {
		return days
	}
	return 3
}

// ProcessingDays applies the priority multiplier to base, rounding up, minimum 1.
func ProcessingDays(base int, p Priority) int {
	mult, ok := priorityMultiplier[p]
	if !ok {
		mult = 1.0
	}
	days := int(math.Ceil(float64(base) * mult))
	if days < 1 {
		days = 1
	}
	return days
}

// EstimateCompletion walks forward from the given instant by the number of
// business days the document type and priority require. Saturdays and
// Sundays are skipped. overrides replaces the base days per document type.
func EstimateCompletion(dt DocumentType, p Priority, from time.Time, overrides map[DocumentType]int) time.Time {
	base := BaseProcessingDays(dt)
	if days, ok := overrides[dt]; ok && days > 0 {
		base = days
	}
	return AddBusinessDays(from, ProcessingDays(base, p))
}

// AddBusinessDays returns from advanced by n weekdays.
func AddBusinessDays(from time.Time, n int) time.Time {
	out := from
	for added := 0; added < n; {
		out = out.AddDate(0, 0, 1)
		if wd := out.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		added++
	}
	return out
}

var commonSteps = []string{"Request Review", "Records Verification", "Document Preparation", "Registrar Signature"}

var extraSteps = map[DocumentType][]string{
	DocForm137:    {"Records Sealing"},
	DocDiploma:    {"Principal Signature"},
	DocTranscript: {"Grade Consolidation"},
}

// SeedSteps returns the initial checklist for a document type, all pending.
func SeedSteps(dt DocumentType) []ProcessingStep {
	names := append([]string(nil), commonSteps...)
	names = append(names, extraSteps[dt]...)
	names = append(names, "Ready for Release")

	steps := make([]ProcessingStep, len(names))
	for i, name := range names {
		steps[i] = ProcessingStep{Name: name, Status: StepPending}
	}
	return steps
}
