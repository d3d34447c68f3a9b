package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Distribution
var defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

// Global Tags
var (
	FailureType, _ = tag.NewKey("failure_type")
)

// Measures
var (
	PiecesAdded        = stats.Int64("allocator/pieces_added", "Counter of pieces written into staged sectors", stats.UnitDimensionless)
	PieceBytesWritten  = stats.Int64("allocator/piece_bytes_written", "Bytes written into staged sectors, padding included", stats.UnitBytes)
	SectorsProvisioned = stats.Int64("allocator/sectors_provisioned", "Counter of staged sectors created", stats.UnitDimensionless)
	AllocationFailures = stats.Int64("allocator/allocation_failures", "Counter of failed piece allocations", stats.UnitDimensionless)
	AddPieceDurationMs = stats.Float64("allocator/add_piece_ms", "Duration of piece allocations in milliseconds", stats.UnitMilliseconds)
)

var (
	PiecesAddedView = &view.View{
		Measure:     PiecesAdded,
		Aggregation: view.Count(),
	}
	PieceBytesWrittenView = &view.View{
		Measure:     PieceBytesWritten,
		Aggregation: view.Sum(),
	}
	SectorsProvisionedView = &view.View{
		Measure:     SectorsProvisioned,
		Aggregation: view.Count(),
	}
	AllocationFailuresView = &view.View{
		Measure:     AllocationFailures,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{FailureType},
	}
	AddPieceDurationView = &view.View{
		Measure:     AddPieceDurationMs,
		Aggregation: defaultMillisecondsDistribution,
	}
)

// DefaultViews is an array of OpenCensus views for metric gathering purposes
var DefaultViews = []*view.View{
	PiecesAddedView,
	PieceBytesWrittenView,
	SectorsProvisionedView,
	AllocationFailuresView,
	AddPieceDurationView,
}

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}

// RecordFailure counts a failed allocation under the given failure type.
func RecordFailure(ctx context.Context, failureType string) {
	ctx, err := tag.New(ctx, tag.Upsert(FailureType, failureType))
	if err != nil {
		return
	}

	stats.Record(ctx, AllocationFailures.M(1))
}
