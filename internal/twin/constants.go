package twin

// Apparatus geometry and drive constants.
const (
	FeedGearPitch  = 18.5 // mm, pitch diameter of the feed stepper gear
	FilamentRadius = 3.5  // mm, radius of the input filament
	NozzleRadius   = 1.5  // mm, radius of the extrusion nozzle
	SpoolDiameter  = 20.0 // mm, empty winding spool diameter
	SpoolWidth     = 40.0 // mm, traverse width of the winding spool

	// FeedGearConstant converts feed speed (rps) into stepper drive frequency.
	FeedGearConstant = 3200.0

	// SpoolPulsesPerRotation converts spool speed into the encoder pulse rate
	// reported by the firmware.
	SpoolPulsesPerRotation = 8400.0

	AmbientTemperature = 20.0 // °C
	MeltThreshold      = 75.0 // °C, filament extrudes strictly above this
	SupplyVoltage      = 12.0 // V
)

// Field bounds.
const (
	MinFeedFrequency = 0.0
	MaxFeedFrequency = 100.0
	MinFeedSpeed     = 0.0
	MaxFeedSpeed     = 0.031
	MinHeaterTemp    = 20.0
	MaxHeaterTemp    = 120.0
	MinSpoolSpeed    = 0.0
	MaxSpoolSpeed    = 1.5
	MaxFiberDiameter = 2 * NozzleRadius
)

// Electrical draw used by the physics and dynamic models.
const (
	heaterFullScaleCurrent = 6400.0 // mA at heater power 1.0
	spoolFullScaleCurrent  = 182.8  // mA at MaxSpoolSpeed
	stepperIdleCurrent     = 509.0  // mA, stepper driver plus electronics
)
