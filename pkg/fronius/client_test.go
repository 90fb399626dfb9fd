package fronius

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeChargePower(t *testing.T) {
	// register holds -watts/10 as two's complement
	assert.Equal(t, uint16(65136), EncodeChargePower(4000))
	assert.Equal(t, uint16(65036), EncodeChargePower(5000))
	assert.Equal(t, uint16(65535), EncodeChargePower(10))

	// below the minimum threshold the documented sentinel is used, never zero
	assert.Equal(t, chargePowerMinSentinel, EncodeChargePower(9))
	assert.Equal(t, chargePowerMinSentinel, EncodeChargePower(0))
}

func TestDecodeChargePower(t *testing.T) {
	assert.Equal(t, 4000, DecodeChargePower(EncodeChargePower(4000)))
	assert.Equal(t, 550, DecodeChargePower(EncodeChargePower(550)))

	assert.Equal(t, 0, DecodeChargePower(chargePowerNeutral))
	assert.Equal(t, 0, DecodeChargePower(chargePowerMinSentinel))
	assert.Equal(t, 0, DecodeChargePower(0))
}

func TestChargeModeToString(t *testing.T) {
	assert.Equal(t, "automatic", ChargeModeToString(0))
	assert.Equal(t, "force charge", ChargeModeToString(2))
	assert.Equal(t, "unknown(7)", ChargeModeToString(7))
}

func TestForceChargeThenResetRestoresFactoryDefaults(t *testing.T) {
	dev := NewTestBatteryControl(5000)

	require.NoError(t, dev.ForceCharge(4000))
	assert.Equal(t, ChargeModeForceCharge, dev.Registers[RegChargeMode])
	assert.Equal(t, EncodeChargePower(4000), dev.Registers[RegChargePower])
	assert.Equal(t, socLimitForced, dev.Registers[RegSOCLimit])

	require.NoError(t, dev.ResetAutomatic())
	assert.Equal(t, ChargeModeAutomatic, dev.Registers[RegChargeMode])
	assert.Equal(t, chargePowerNeutral, dev.Registers[RegChargePower])
	assert.Equal(t, socLimitDefault, dev.Registers[RegSOCLimit])
	assert.Equal(t, dischargeLimitDefault, dev.Registers[RegDischargeLimit])
}

func TestForceChargeClampsToMaxRate(t *testing.T) {
	dev := NewTestBatteryControl(5000)

	require.NoError(t, dev.ForceCharge(9000))
	require.Len(t, dev.ForceChargeCalls, 1)
	assert.Equal(t, 5000, dev.ForceChargeCalls[0])
	assert.Equal(t, EncodeChargePower(5000), dev.Registers[RegChargePower])
}

func TestForceChargeFailureReportsRegisterAndValue(t *testing.T) {
	dev := NewTestBatteryControl(5000)
	dev.FailOnRegister = RegSOCLimit

	err := dev.ForceCharge(4000)
	require.Error(t, err)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, RegSOCLimit, devErr.Register)
	assert.Equal(t, socLimitForced, devErr.Value)
}

func TestReadControlStatus(t *testing.T) {
	dev := NewTestBatteryControl(5000)

	status, err := dev.ReadControlStatus()
	require.NoError(t, err)
	assert.False(t, status.ForcedCharge)
	assert.Equal(t, "automatic", status.Mode)
	assert.Equal(t, 0, status.ChargeRateWatts)

	require.NoError(t, dev.ForceCharge(2500))
	status, err = dev.ReadControlStatus()
	require.NoError(t, err)
	assert.True(t, status.ForcedCharge)
	assert.Equal(t, "force charge", status.Mode)
	assert.Equal(t, 2500, status.ChargeRateWatts)
}
