package forecast

import (
	"sort"
	"time"

	"github.com/nightcharge/nightcharge/internal/domain"
)

// BuildRows joins the three daily series into regression training rows.
// A row exists only for dates present in all of: battery charge energy, load
// energy and SOC extrema. Dates missing any one series are excluded so that
// unsynchronized inputs cannot bias the fit.
func BuildRows(agg domain.AggregateResult, chargeEntity, loadEntity string, capacityKWh float64) []domain.ForecastRow {
	chargeDaily := agg.Energy[chargeEntity]
	loadDaily := agg.Energy[loadEntity]

	dates := make([]string, 0, len(chargeDaily))
	for date := range chargeDaily {
		if _, ok := loadDaily[date]; !ok {
			continue
		}
		if _, ok := agg.SOC[date]; !ok {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)

	rows := make([]domain.ForecastRow, 0, len(dates))
	for _, date := range dates {
		parsed, err := time.ParseInLocation(domain.DateLayout, date, time.Local)
		if err != nil {
			continue
		}
		charge := chargeDaily[date]
		load := loadDaily[date]
		ext := agg.SOC[date]

		socDeltaKWh := (ext.Max - ext.Min) / 100.0 * capacityKWh

		rows = append(rows, domain.ForecastRow{
			Date:            parsed,
			BatteryChargeWh: charge,
			LoadConsumedWh:  load,
			SOCMin:          ext.Min,
			SOCMax:          ext.Max,
			SOCDeltaKWh:     socDeltaKWh,
			PowerNeedWh:     load - charge + socDeltaKWh*1000.0,
			DayOfWeek:       int(parsed.Weekday()),
		})
	}
	return rows
}
