package twin

import "github.com/sebastiankruger/fiber-twin/internal/core"

// GetOPCUANodes returns the node definitions exposing the twin's state.
func (t *Twin) GetOPCUANodes() []core.NodeDefinition {
	return []core.NodeDefinition{
		// Setpoints
		{Name: "FeedFrequency", DisplayName: "Feed Frequency", Description: "Feed stepper drive frequency", DataType: core.DataTypeDouble, Unit: "Hz", InitialValue: 0.0},
		{Name: "HeaterPower", DisplayName: "Heater Power", Description: "Heater power fraction", DataType: core.DataTypeDouble, Unit: "", InitialValue: 0.0},
		{Name: "SpoolPower", DisplayName: "Spool Power", Description: "Spool motor power fraction", DataType: core.DataTypeDouble, Unit: "", InitialValue: 0.0},
		{Name: "WindDirection", DisplayName: "Wind Direction", Description: "Winding traverse direction (0/1)", DataType: core.DataTypeInt32, Unit: "", InitialValue: int32(0)},

		// Sensors
		{Name: "HeaterTemperature", DisplayName: "Heater Temperature", Description: "Extruder heater temperature", DataType: core.DataTypeDouble, Unit: "°C", InitialValue: AmbientTemperature},
		{Name: "FeedSpeed", DisplayName: "Feed Speed", Description: "Filament feed speed", DataType: core.DataTypeDouble, Unit: "rps", InitialValue: 0.0},
		{Name: "SpoolSpeed", DisplayName: "Spool Speed", Description: "Winding spool speed", DataType: core.DataTypeDouble, Unit: "rps", InitialValue: 0.0},
		{Name: "FiberDiameter", DisplayName: "Fiber Diameter", Description: "Extruded fiber diameter", DataType: core.DataTypeDouble, Unit: "mm", InitialValue: 0.0},
		{Name: "FiberDiameterStdev", DisplayName: "Fiber Diameter Stdev", Description: "Modelled fiber diameter variation", DataType: core.DataTypeDouble, Unit: "mm", InitialValue: 0.0},
		{Name: "HeaterCurrent", DisplayName: "Heater Current", Description: "Heater current draw", DataType: core.DataTypeDouble, Unit: "mA", InitialValue: 0.0},
		{Name: "SpoolCurrent", DisplayName: "Spool Current", Description: "Spool motor current draw", DataType: core.DataTypeDouble, Unit: "mA", InitialValue: 0.0},
		{Name: "StepperCurrent", DisplayName: "Stepper Current", Description: "Stepper and electronics current draw", DataType: core.DataTypeDouble, Unit: "mA", InitialValue: 0.0},
		{Name: "SystemPower", DisplayName: "System Power", Description: "Instantaneous system power", DataType: core.DataTypeDouble, Unit: "W", InitialValue: 0.0},
		{Name: "WindCount", DisplayName: "Wind Count", Description: "Completed winding passes", DataType: core.DataTypeInt64, Unit: "", InitialValue: int64(1)},

		// Accumulators
		{Name: "SystemEnergy", DisplayName: "System Energy", Description: "Cumulative system energy", DataType: core.DataTypeDouble, Unit: "Wh", InitialValue: 0.0},
		{Name: "FiberLength", DisplayName: "Fiber Length", Description: "Cumulative wound fiber length", DataType: core.DataTypeDouble, Unit: "mm", InitialValue: 0.0},
		{Name: "RollingDiameterAvg", DisplayName: "Rolling Diameter Avg", Description: "Fiber diameter average over the last 60 s", DataType: core.DataTypeDouble, Unit: "mm", InitialValue: 0.0},
		{Name: "RollingDiameterStdev", DisplayName: "Rolling Diameter Stdev", Description: "Fiber diameter deviation over the last 60 s", DataType: core.DataTypeDouble, Unit: "mm", InitialValue: 0.0},

		// Status
		{Name: "Variant", DisplayName: "Model Variant", Description: "Active model variant", DataType: core.DataTypeString, Unit: "", InitialValue: t.variant.String()},
		{Name: "Running", DisplayName: "Running", Description: "Scheduler running flag", DataType: core.DataTypeBool, Unit: "", InitialValue: false},
	}
}

// GenerateData returns the current value of every node from GetOPCUANodes.
func (t *Twin) GenerateData() map[string]interface{} {
	s := t.Snapshot()
	return map[string]interface{}{
		"FeedFrequency":        s.FeedFrequency,
		"HeaterPower":          s.HeaterPower,
		"SpoolPower":           s.SpoolPower,
		"WindDirection":        int32(s.WindDirection),
		"HeaterTemperature":    s.HeaterTemperature,
		"FeedSpeed":            s.FeedSpeed,
		"SpoolSpeed":           s.SpoolSpeed,
		"FiberDiameter":        s.FiberDiameter,
		"FiberDiameterStdev":   s.FiberDiameterStdev,
		"HeaterCurrent":        s.HeaterCurrent,
		"SpoolCurrent":         s.SpoolCurrent,
		"StepperCurrent":       s.StepperCurrent,
		"SystemPower":          s.SystemPower,
		"WindCount":            s.WindCount,
		"SystemEnergy":         s.SystemEnergy,
		"FiberLength":          s.FiberLength,
		"RollingDiameterAvg":   s.RollingDiameterAvg,
		"RollingDiameterStdev": s.RollingDiameterStdev,
		"Variant":              t.variant.String(),
		"Running":              t.IsRunning(),
	}
}
