package fronius

import (
	"errors"
)

// TestBatteryControl emulates the storage control registers of a real
// inverter in memory. It applies the same write plans as Client, so tests
// observe the exact register values a device would.
type TestBatteryControl struct {
	Registers          map[uint16]uint16
	MaxChargeRateWatts int

	// FailOnRegister aborts a transition mid-plan when the plan reaches this
	// register. Writes before it are kept, like a real partial failure.
	FailOnRegister uint16
	FailOnRead     bool

	ForceChargeCalls []int
	ResetCalls       int
}

func NewTestBatteryControl(maxChargeRateWatts int) *TestBatteryControl {
	return &TestBatteryControl{
		Registers: map[uint16]uint16{
			RegChargeMode:     ChargeModeAutomatic,
			RegChargePower:    chargePowerNeutral,
			RegSOCLimit:       socLimitDefault,
			RegDischargeLimit: dischargeLimitDefault,
		},
		MaxChargeRateWatts: maxChargeRateWatts,
	}
}

func (c *TestBatteryControl) ForceCharge(watts int) error {
	if watts < 0 {
		watts = 0
	}
	if watts > c.MaxChargeRateWatts {
		watts = c.MaxChargeRateWatts
	}
	c.ForceChargeCalls = append(c.ForceChargeCalls, watts)
	return c.apply(forceChargePlan(watts))
}

func (c *TestBatteryControl) ResetAutomatic() error {
	c.ResetCalls++
	return c.apply(resetAutomaticPlan())
}

func (c *TestBatteryControl) ReadControlStatus() (*ControlStatus, error) {
	if c.FailOnRead {
		return nil, &DeviceError{Op: "read charge mode", Register: RegChargeMode, Err: errors.New("connection refused")}
	}
	mode := c.Registers[RegChargeMode]
	return &ControlStatus{
		ModeCode:        mode,
		Mode:            ChargeModeToString(mode),
		ChargeRateWatts: DecodeChargePower(c.Registers[RegChargePower]),
		ForcedCharge:    mode == ChargeModeForceCharge,
	}, nil
}

func (c *TestBatteryControl) apply(plan []registerWrite) error {
	for _, w := range plan {
		if c.FailOnRegister != 0 && w.address == c.FailOnRegister {
			return &DeviceError{Op: w.op, Register: w.address, Value: w.value, Err: errors.New("bus error")}
		}
		c.Registers[w.address] = w.value
	}
	return nil
}

// ensure interface compliance
var _ BatteryControl = (*TestBatteryControl)(nil)
var _ BatteryControl = (*Client)(nil)
