package sensors

import (
	"errors"
	"fmt"
)

// Scale selects how a raw value maps onto the display range.
type Scale int

const (
	ScaleLinear Scale = iota
	ScaleLog
)

// Descriptor is the static configuration for one sensor column. Descriptors
// are never mutated at runtime; the normalizer and densifier read them only.
type Descriptor struct {
	ID     string
	Label  string
	Table  string
	Column string
	Min    float64
	Max    float64
	Scale  Scale
	Unit   string
}

// ErrUnknownSensor is returned when a series identifier has no descriptor.
// It is fatal for that series: scaling with a default physical range would
// corrupt the displayed values.
var ErrUnknownSensor = errors.New("unknown sensor")

// registry mirrors the collector's schema: one table per physical sensor,
// one descriptor per column we chart.
var registry = []Descriptor{
	{ID: "temperature", Label: "Temperature", Table: "bme280_data", Column: "temperature", Min: -10, Max: 50, Scale: ScaleLinear, Unit: "C"},
	{ID: "humidity", Label: "Humidity", Table: "bme280_data", Column: "humidity", Min: 0, Max: 100, Scale: ScaleLinear, Unit: "%"},
	{ID: "pressure", Label: "Pressure", Table: "bme280_data", Column: "pressure", Min: 950, Max: 1070, Scale: ScaleLinear, Unit: "hPa"},
	{ID: "light", Label: "Light", Table: "tsl2591_data", Column: "light_intensity", Min: 0.01, Max: 88000, Scale: ScaleLog, Unit: "lux"},
	{ID: "uv", Label: "UV Index", Table: "ltr390_data", Column: "uv_index", Min: 0, Max: 11, Scale: ScaleLinear, Unit: ""},
	{ID: "voc", Label: "Gas (VOC)", Table: "sgp40_data", Column: "voc_gas", Min: 1, Max: 60000, Scale: ScaleLog, Unit: "ticks"},
	{ID: "roll", Label: "Roll", Table: "motion_data", Column: "roll", Min: -90, Max: 90, Scale: ScaleLinear, Unit: "deg"},
	{ID: "pitch", Label: "Pitch", Table: "motion_data", Column: "pitch", Min: -90, Max: 90, Scale: ScaleLinear, Unit: "deg"},
	{ID: "yaw", Label: "Yaw", Table: "motion_data", Column: "yaw", Min: 0, Max: 360, Scale: ScaleLinear, Unit: "deg"},
	{ID: "accel_x", Label: "Acceleration X", Table: "motion_data", Column: "acceleration_x", Min: -16, Max: 16, Scale: ScaleLinear, Unit: "g"},
	{ID: "accel_y", Label: "Acceleration Y", Table: "motion_data", Column: "acceleration_y", Min: -16, Max: 16, Scale: ScaleLinear, Unit: "g"},
	{ID: "accel_z", Label: "Acceleration Z", Table: "motion_data", Column: "acceleration_z", Min: -16, Max: 16, Scale: ScaleLinear, Unit: "g"},
	{ID: "gyro_x", Label: "Gyroscope X", Table: "motion_data", Column: "gyroscope_x", Min: -250, Max: 250, Scale: ScaleLinear, Unit: "dps"},
	{ID: "gyro_y", Label: "Gyroscope Y", Table: "motion_data", Column: "gyroscope_y", Min: -250, Max: 250, Scale: ScaleLinear, Unit: "dps"},
	{ID: "gyro_z", Label: "Gyroscope Z", Table: "motion_data", Column: "gyroscope_z", Min: -250, Max: 250, Scale: ScaleLinear, Unit: "dps"},
	{ID: "mag_x", Label: "Magnetic X", Table: "motion_data", Column: "magnetic_x", Min: -50, Max: 50, Scale: ScaleLinear, Unit: "uT"},
	{ID: "mag_y", Label: "Magnetic Y", Table: "motion_data", Column: "magnetic_y", Min: -50, Max: 50, Scale: ScaleLinear, Unit: "uT"},
	{ID: "mag_z", Label: "Magnetic Z", Table: "motion_data", Column: "magnetic_z", Min: -50, Max: 50, Scale: ScaleLinear, Unit: "uT"},
}

var byID = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(registry))
	for _, d := range registry {
		m[d.ID] = d
	}
	return m
}()

// Lookup returns the descriptor for a sensor identifier.
func Lookup(id string) (Descriptor, error) {
	d, ok := byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownSensor, id)
	}
	return d, nil
}

// All returns every registered descriptor in registration order.
func All() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}
