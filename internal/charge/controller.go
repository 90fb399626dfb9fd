package charge

import (
	"time"

	"github.com/nightcharge/nightcharge/internal/domain"
	"github.com/nightcharge/nightcharge/pkg/fronius"

	"go.uber.org/zap"
)

// rateChangeThresholdWatts is the minimum setpoint change that justifies
// re-applying an already-active forced charge. Repeated identical writes
// against a live inverter are wasted bus traffic and risk transient faults.
const rateChangeThresholdWatts = 100

// Decide turns a deficit into a charge/no-charge decision for this run.
// Charging is only recommended while the current time is inside the active
// window occurrence and there is usable time left in it.
func Decide(deficitKWh float64, w Window, now time.Time) domain.ChargeDecision {
	rate := w.Rate(deficitKWh, now)
	return domain.ChargeDecision{
		DeficitKWh:   deficitKWh,
		RateWatts:    rate,
		ShouldCharge: deficitKWh > 0 && w.Contains(now) && rate > 0,
		WindowStart:  w.StartHHMM,
		WindowEnd:    w.EndHHMM,
	}
}

// Controller maps charge decisions onto inverter transitions. Transitions
// are all-or-nothing: on any register failure the prior persisted state must
// be kept, so the next scheduled run can decide whether to retry. There is
// no in-process retry loop.
type Controller struct {
	inverter fronius.BatteryControl
	logger   *zap.Logger
}

func NewController(inverter fronius.BatteryControl, logger *zap.Logger) *Controller {
	return &Controller{inverter: inverter, logger: logger}
}

// TransitionResult reports the confirmed charging state after Apply and
// whether it differs from the prior persisted state. The caller persists the
// state only when Changed is true.
type TransitionResult struct {
	Charging bool
	Changed  bool
}

// Apply drives the inverter from the previously persisted state to the
// decided one.
func (c *Controller) Apply(decision domain.ChargeDecision, currentlyCharging bool) (TransitionResult, error) {
	switch {
	case decision.ShouldCharge && !currentlyCharging:
		c.logger.Info("starting forced battery charge", zap.Int("rate_watts", decision.RateWatts))
		if err := c.inverter.ForceCharge(decision.RateWatts); err != nil {
			return TransitionResult{Charging: currentlyCharging}, err
		}
		return TransitionResult{Charging: true, Changed: true}, nil

	case !decision.ShouldCharge && currentlyCharging:
		c.logger.Info("stopping forced battery charge")
		if err := c.inverter.ResetAutomatic(); err != nil {
			return TransitionResult{Charging: currentlyCharging}, err
		}
		return TransitionResult{Charging: false, Changed: true}, nil

	case decision.ShouldCharge && currentlyCharging:
		return c.reapplyIfRateChanged(decision, currentlyCharging)

	default:
		c.logger.Info("no inverter action needed, state unchanged")
		return TransitionResult{Charging: currentlyCharging}, nil
	}
}

// reapplyIfRateChanged re-enters the forced-charge transition only when the
// desired rate materially differs from the one active on the device.
func (c *Controller) reapplyIfRateChanged(decision domain.ChargeDecision, currentlyCharging bool) (TransitionResult, error) {
	status, err := c.inverter.ReadControlStatus()
	if err != nil {
		return TransitionResult{Charging: currentlyCharging}, err
	}

	delta := decision.RateWatts - status.ChargeRateWatts
	if delta < 0 {
		delta = -delta
	}
	if status.ForcedCharge && delta < rateChangeThresholdWatts {
		c.logger.Info("forced charge already active at current rate",
			zap.Int("active_watts", status.ChargeRateWatts))
		return TransitionResult{Charging: currentlyCharging}, nil
	}

	c.logger.Info("adjusting forced charge rate",
		zap.Int("active_watts", status.ChargeRateWatts),
		zap.Int("desired_watts", decision.RateWatts))
	if err := c.inverter.ForceCharge(decision.RateWatts); err != nil {
		return TransitionResult{Charging: currentlyCharging}, err
	}
	return TransitionResult{Charging: true}, nil
}

// Status reads back the currently active mode and rate for reporting.
func (c *Controller) Status() (*fronius.ControlStatus, error) {
	return c.inverter.ReadControlStatus()
}
