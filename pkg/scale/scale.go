// Package scale converts raw 12-bit ADC counts into reporting units.
//
// Both maps invert polarity: the probes read full scale when dry, so 4095
// counts means 0 %. The rain map tops out at 70 %, matching the dynamic
// range the deployed sensor shows in the field; downstream dashboards
// depend on that ceiling, so it must not be widened.
package scale

// MaxCount is the full-scale reading of the 12-bit ADC.
const MaxCount = 4095

// RainCeiling is the maximum reported rain intensity in percent.
const RainCeiling = 70

func clamp(raw uint16) int {
	if raw > MaxCount {
		return MaxCount
	}
	return int(raw)
}

// SoilPercent maps a soil-moisture sample to 0..100 %. 4095 counts (fully
// dry) maps to 0 %, 0 counts to 100 %. The result is truncated.
func SoilPercent(raw uint16) int {
	return (MaxCount - clamp(raw)) * 100 / MaxCount
}

// RainPercent maps a rainfall-proxy sample to 0..70 %. 4095 counts maps to
// 0 %, 0 counts to 70 %. The result is truncated.
func RainPercent(raw uint16) int {
	return (MaxCount - clamp(raw)) * RainCeiling / MaxCount
}
