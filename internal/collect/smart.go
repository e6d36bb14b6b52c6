package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tis24dev/diskwatch/internal/health"
)

// smartctl exit status bits that mean no data was read.
const (
	smartBitCommandLine = 1 << 0
	smartBitOpenFailed  = 1 << 1
)

// smartctlJSON is the subset of `smartctl --json -H -A` that is evaluated.
type smartctlJSON struct {
	Smartctl struct {
		Messages []struct {
			String   string `json:"string"`
			Severity string `json:"severity"`
		} `json:"messages"`
	} `json:"smartctl"`
	Device struct {
		Protocol string `json:"protocol"`
	} `json:"device"`
	ModelName    string `json:"model_name"`
	ScsiModel    string `json:"scsi_model_name"`
	SerialNumber string `json:"serial_number"`
	SmartStatus  *struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	Temperature struct {
		Current int `json:"current"`
	} `json:"temperature"`
	PowerOnTime struct {
		Hours int64 `json:"hours"`
	} `json:"power_on_time"`
	ATASmartAttributes struct {
		Table []struct {
			ID  int `json:"id"`
			Raw struct {
				Value int64 `json:"value"`
			} `json:"raw"`
		} `json:"table"`
	} `json:"ata_smart_attributes"`
	NVMeHealth *struct {
		Temperature  int   `json:"temperature"`
		MediaErrors  int64 `json:"media_errors"`
		PowerOnHours int64 `json:"power_on_hours"`
	} `json:"nvme_smart_health_information_log"`
	ScsiGrownDefectList *int64 `json:"scsi_grown_defect_list"`
}

// ParseSmartctl fills the SMART fields of obs from smartctl JSON output.
// A missing smart_status block leaves the device as not failed.
func ParseSmartctl(data []byte, obs *health.DeviceObservation) error {
	var out smartctlJSON
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("parse smartctl output: %w", err)
	}

	obs.HealthPassed = out.SmartStatus == nil || out.SmartStatus.Passed
	if model := firstNonEmpty(out.ModelName, out.ScsiModel); model != "" {
		obs.Model = model
	}
	if out.SerialNumber != "" {
		obs.Serial = out.SerialNumber
	}
	obs.Temperature = out.Temperature.Current
	obs.PowerOnHours = out.PowerOnTime.Hours

	for _, attr := range out.ATASmartAttributes.Table {
		switch attr.ID {
		case 5: // Reallocated_Sector_Ct
			obs.Reallocated = attr.Raw.Value
		case 197: // Current_Pending_Sector
			obs.Pending = attr.Raw.Value
		case 198: // Offline_Uncorrectable
			obs.Uncorrectable = attr.Raw.Value
		case 194: // Temperature_Celsius, low byte
			if obs.Temperature == 0 {
				obs.Temperature = int(attr.Raw.Value & 0xff)
			}
		}
	}

	if nvme := out.NVMeHealth; nvme != nil {
		obs.Uncorrectable = nvme.MediaErrors
		if obs.Temperature == 0 {
			obs.Temperature = nvme.Temperature
		}
		if obs.PowerOnHours == 0 {
			obs.PowerOnHours = nvme.PowerOnHours
		}
	}
	if out.ScsiGrownDefectList != nil {
		obs.Reallocated = *out.ScsiGrownDefectList
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// smartctlError extracts the first error message smartctl put in its JSON.
func smartctlError(data []byte) string {
	var out smartctlJSON
	if json.Unmarshal(data, &out) != nil {
		return ""
	}
	for _, m := range out.Smartctl.Messages {
		if m.Severity == "error" && m.String != "" {
			return m.String
		}
	}
	return ""
}

// QuerySMART queries every device. A device that cannot be read becomes an
// unreadable observation; it never aborts the others.
func (c *Collector) QuerySMART(ctx context.Context, devices []BlockDevice) health.Observations {
	obs := make(health.Observations, len(devices))

	smartctl, lookErr := c.deps.LookPath("smartctl")
	for _, dev := range devices {
		o := health.DeviceObservation{
			Name:         dev.Name,
			Path:         dev.Path(),
			Media:        dev.Media(),
			Transport:    dev.Transport,
			ProtocolHint: c.opts.DeviceTypes[dev.Name],
			Model:        dev.Model,
			Serial:       dev.Serial,
		}
		if lookErr != nil {
			o.ReadError = "smartctl not found"
			obs[dev.Name] = o
			continue
		}
		if ctx.Err() != nil {
			o.ReadError = ctx.Err().Error()
			obs[dev.Name] = o
			continue
		}
		c.querySMARTDevice(ctx, smartctl, &o)
		if !o.Readable {
			c.logger.Warning("SMART unreadable for %s: %s", o.Path, o.ReadError)
		} else {
			c.logger.Debug("SMART %s: passed=%t temp=%d realloc=%d pending=%d uncorr=%d",
				o.Name, o.HealthPassed, o.Temperature, o.Reallocated, o.Pending, o.Uncorrectable)
		}
		obs[dev.Name] = o
	}
	return obs
}

func (c *Collector) querySMARTDevice(ctx context.Context, smartctl string, o *health.DeviceObservation) {
	args := []string{"--json", "-H", "-A"}
	if o.ProtocolHint != "" {
		args = append(args, "-d", o.ProtocolHint)
	}
	args = append(args, o.Path)

	out, err := c.run(ctx, smartctl, args...)
	if err != nil {
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			o.ReadError = err.Error()
			return
		}
		if cmdErr.Code&(smartBitCommandLine|smartBitOpenFailed) != 0 {
			o.ReadError = firstNonEmpty(smartctlError(out), cmdErr.Error())
			return
		}
		// Remaining bits describe disk condition, the JSON is still valid.
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		o.ReadError = "empty smartctl output"
		return
	}
	if err := ParseSmartctl(out, o); err != nil {
		o.ReadError = err.Error()
		return
	}
	o.Readable = true
}
