package health

import "github.com/tis24dev/diskwatch/internal/types"

// Thresholds holds the static limits every classification is compared against.
type Thresholds struct {
	HDDTempWarn int
	HDDTempCrit int
	SSDTempWarn int
	SSDTempCrit int
	UsageWarn   int
	UsageCrit   int
}

// DefaultThresholds returns the limits used when the configuration is silent.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HDDTempWarn: 45,
		HDDTempCrit: 55,
		SSDTempWarn: 60,
		SSDTempCrit: 70,
		UsageWarn:   70,
		UsageCrit:   85,
	}
}

// TempLimits returns the warn and critical temperatures for a media type.
// Unknown media is treated as rotational.
func (t Thresholds) TempLimits(media types.MediaType) (warn, crit int) {
	if media == types.MediaSSD {
		return t.SSDTempWarn, t.SSDTempCrit
	}
	return t.HDDTempWarn, t.HDDTempCrit
}
