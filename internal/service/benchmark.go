package service

import (
	"math"

	"github.com/assessment-results-server/internal/domain"
)

const (
	benchmarkRangeEnd       = 100.0
	benchmarkMinWindowWidth = 10.0
	averageWindowLead       = 20.0
	optimalWindowLead       = 10.0

	// Marker labels closer than these distances (display percent) collide.
	yourLabelGap    = 8.0
	averageLabelGap = 12.0
)

// Collision pair names reported in BenchmarkPosition.Collisions
const (
	CollisionYourAverage    = "your/average"
	CollisionYourOptimal    = "your/optimal"
	CollisionAverageOptimal = "average/optimal"
)

// Position places the three benchmark markers on a window anchored below the population average.
func Position(your, average, optimal float64) domain.BenchmarkPosition {
	return PositionWithWindow(your, average, optimal, domain.WindowAverage)
}

// PositionWithWindow places the markers on a zoomed display window. The window always ends at 100,
// never starts above the average and is never narrower than the minimum width.
func PositionWithWindow(your, average, optimal float64, window domain.BenchmarkWindow) domain.BenchmarkPosition {
	your = clampPercent(your)
	average = clampPercent(average)
	optimal = clampPercent(optimal)

	var start float64
	switch window {
	case domain.WindowOptimal:
		start = optimal - optimalWindowLead
	default:
		start = average - averageWindowLead
	}
	start = math.Max(0, start)
	start = math.Min(start, average)
	start = math.Min(start, benchmarkRangeEnd-benchmarkMinWindowWidth)

	width := benchmarkRangeEnd - start
	project := func(v float64) float64 {
		return clampPercent((v - start) / width * 100)
	}

	pos := domain.BenchmarkPosition{
		RangeStart: start,
		RangeEnd:   benchmarkRangeEnd,
		YourPct:    project(your),
		AveragePct: project(average),
		OptimalPct: project(optimal),
	}

	if math.Abs(pos.YourPct-pos.AveragePct) < yourLabelGap {
		pos.Collisions = append(pos.Collisions, CollisionYourAverage)
	}
	if math.Abs(pos.YourPct-pos.OptimalPct) < yourLabelGap {
		pos.Collisions = append(pos.Collisions, CollisionYourOptimal)
	}
	if math.Abs(pos.AveragePct-pos.OptimalPct) < averageLabelGap {
		pos.Collisions = append(pos.Collisions, CollisionAverageOptimal)
	}
	pos.LabelsOverlap = len(pos.Collisions) > 0
	return pos
}
