package forecast

import (
	"github.com/nightcharge/nightcharge/internal/domain"
)

// Regression is an ordinary least-squares fit of power need (Wh) on
// day-of-week.
type Regression struct {
	Intercept float64
	Slope     float64
}

// FitPowerNeed fits the regression over all available rows. At least 2 rows
// are required; with fewer the forecast must fail rather than fabricate a
// default prediction.
func FitPowerNeed(rows []domain.ForecastRow) (*Regression, error) {
	if len(rows) < 2 {
		return nil, domain.ErrInsufficientHistory
	}

	var sumX, sumY float64
	for _, r := range rows {
		sumX += float64(r.DayOfWeek)
		sumY += r.PowerNeedWh
	}
	n := float64(len(rows))
	meanX := sumX / n
	meanY := sumY / n

	var varX, covXY float64
	for _, r := range rows {
		dx := float64(r.DayOfWeek) - meanX
		varX += dx * dx
		covXY += dx * (r.PowerNeedWh - meanY)
	}

	if varX == 0 {
		// all samples fall on the same weekday: the best estimate is the mean
		return &Regression{Intercept: meanY, Slope: 0}, nil
	}

	slope := covXY / varX
	return &Regression{
		Intercept: meanY - slope*meanX,
		Slope:     slope,
	}, nil
}

// PredictWh returns the predicted power need in Wh for a day of week.
func (r *Regression) PredictWh(dayOfWeek int) float64 {
	return r.Intercept + r.Slope*float64(dayOfWeek)
}
