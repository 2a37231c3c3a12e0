package simulate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// csvHeader names the CSV columns in the order written by WriteCSV.
var csvHeader = []string{
	"variant", "t_s",
	"heater_power", "feed_frequency_hz", "spool_power", "wind_direction",
	"heater_temperature_c", "feed_speed_rps", "spool_speed_rps",
	"fiber_diameter_mm", "fiber_diameter_stdev_mm",
	"heater_current_ma", "spool_current_ma", "stepper_current_ma",
	"system_power_w", "system_energy_wh", "fiber_length_mm", "wind_count",
	"rolling_diameter_avg_mm", "rolling_diameter_stdev_mm",
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteCSV writes every sample of results as one CSV row.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range results {
		for _, s := range r.Samples {
			row := []string{
				s.Variant.String(), formatFloat(s.Time),
				formatFloat(s.HeaterPower), formatFloat(s.FeedFrequency),
				formatFloat(s.SpoolPower), strconv.Itoa(s.WindDirection),
				formatFloat(s.HeaterTemperature), formatFloat(s.FeedSpeed),
				formatFloat(s.SpoolSpeed), formatFloat(s.FiberDiameter),
				formatFloat(s.FiberDiameterStdev), formatFloat(s.HeaterCurrent),
				formatFloat(s.SpoolCurrent), formatFloat(s.StepperCurrent),
				formatFloat(s.SystemPower), formatFloat(s.SystemEnergy),
				formatFloat(s.FiberLength), strconv.FormatInt(s.WindCount, 10),
				formatFloat(s.RollingDiameterAvg), formatFloat(s.RollingDiameterStdev),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteYAML writes results as a YAML sequence.
func WriteYAML(w io.Writer, results []Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
