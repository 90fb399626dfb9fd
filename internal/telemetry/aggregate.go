package telemetry

import (
	"sort"

	"github.com/nightcharge/nightcharge/internal/domain"

	"go.uber.org/zap"
)

// Aggregator turns a flat, unordered stream of sensor readings into per-day
// energy totals and per-day SOC extrema.
type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate groups readings by entity, sorts each group by timestamp and
// integrates power readings into daily Wh buckets. For SOC entities it tracks
// per-day min/max and the chronologically latest value across the whole
// range. Readings that classify as unknown are ignored entirely.
func (a *Aggregator) Aggregate(readings []domain.SensorReading) domain.AggregateResult {
	groups := make(map[string][]domain.SensorReading)
	for _, r := range readings {
		groups[r.Entity] = append(groups[r.Entity], r)
	}

	result := domain.AggregateResult{
		Energy: make(map[string]domain.DailyEnergy),
		SOC:    make(map[string]domain.SOCExtrema),
	}

	var latestSOC *float64
	var latestSOCTime int64

	for entity, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].Time.Before(group[j].Time)
		})

		kind := entityKind(group)
		switch kind {
		case domain.SensorKindPower:
			daily := integrateDaily(group)
			if len(daily) > 0 {
				result.Energy[entity] = daily
			}
		case domain.SensorKindSOC:
			for _, r := range group {
				date := r.Time.Format(domain.DateLayout)
				ext, ok := result.SOC[date]
				if !ok {
					ext = domain.SOCExtrema{Min: r.Value, Max: r.Value}
				} else {
					if r.Value < ext.Min {
						ext.Min = r.Value
					}
					if r.Value > ext.Max {
						ext.Max = r.Value
					}
				}
				result.SOC[date] = ext
				if ts := r.Time.UnixNano(); latestSOC == nil || ts > latestSOCTime {
					v := r.Value
					latestSOC = &v
					latestSOCTime = ts
				}
			}
		default:
			a.logger.Debug("skipping entity with unhandled sensor kind",
				zap.String("entity", entity), zap.String("kind", kind.String()))
		}
	}

	result.LatestSOC = latestSOC
	return result
}

// integrateDaily accumulates value*elapsed/3600 Wh for each pair of
// temporally adjacent readings, into the date bucket of the second reading.
// The first reading of the sequence contributes nothing, and a gap after the
// last reading of a date contributes nothing either: energy past the last
// sample is never extrapolated.
func integrateDaily(group []domain.SensorReading) domain.DailyEnergy {
	if len(group) < 2 {
		// a single reading has no pair to integrate over
		return nil
	}
	daily := make(domain.DailyEnergy)
	for i := 1; i < len(group); i++ {
		elapsed := group[i].Time.Sub(group[i-1].Time).Seconds()
		if elapsed <= 0 {
			continue
		}
		date := group[i].Time.Format(domain.DateLayout)
		daily[date] += group[i].Value * elapsed / 3600.0
	}
	return daily
}

// entityKind picks the kind of the first reading that classifies.
func entityKind(group []domain.SensorReading) domain.SensorKind {
	for _, r := range group {
		if k := Classify(r.Unit, r.DeviceClass); k != domain.SensorKindUnknown {
			return k
		}
	}
	return domain.SensorKindUnknown
}
