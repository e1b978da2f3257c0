package hwmon

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/markusressel/hddfan/internal/configuration"
	"github.com/markusressel/hddfan/internal/util"
	"github.com/md14454/gosensors"
)

const (
	BusTypeIsa  = 1
	BusTypePci  = 2
	BusTypeAcpi = 5
)

type Chip struct {
	Name     string
	DType    string
	Modalias string
	Path     string

	Fans  []FanChannel
	Temps []TempChannel
}

type FanChannel struct {
	Index     int
	Label     string
	RpmInput  string
	PwmOutput string
	Rpm       float64
}

type TempChannel struct {
	Index int
	Label string
	Input string
	// Value in °C
	Value float64
}

// GetChips returns all chips detected by lm-sensors that have at least one fan or temperature input
func GetChips() []*Chip {
	gosensors.Init()
	defer gosensors.Cleanup()
	chips := gosensors.GetDetectedChips()

	var list []*Chip
	for _, chip := range chips {
		fans := getFans(chip)
		temps := getTemps(chip)
		if len(fans) <= 0 && len(temps) <= 0 {
			continue
		}

		list = append(list, &Chip{
			Name:     computeIdentifier(chip),
			DType:    util.GetDeviceType(chip.Path),
			Modalias: util.GetDeviceModalias(chip.Path),
			Path:     chip.Path,
			Fans:     fans,
			Temps:    temps,
		})
	}
	return list
}

func getFans(chip gosensors.Chip) []FanChannel {
	var result []FanChannel
	for _, feature := range chip.GetFeatures() {
		if feature.Type != gosensors.FeatureTypeFan {
			continue
		}
		input, ok := findSubFeature(feature.GetSubFeatures(), gosensors.SubFeatureTypeFanInput)
		if !ok {
			continue
		}
		result = append(result, FanChannel{
			Index:     len(result) + 1,
			Label:     util.GetLabel(chip.Path, input.Name),
			RpmInput:  filepath.Join(chip.Path, input.Name),
			PwmOutput: findPwmOutput(chip.Path, input.Name),
			Rpm:       input.GetValue(),
		})
	}
	return result
}

func getTemps(chip gosensors.Chip) []TempChannel {
	var result []TempChannel
	for _, feature := range chip.GetFeatures() {
		if feature.Type != gosensors.FeatureTypeTemp {
			continue
		}
		input, ok := findSubFeature(feature.GetSubFeatures(), gosensors.SubFeatureTypeTempInput)
		if !ok {
			continue
		}
		result = append(result, TempChannel{
			Index: len(result) + 1,
			Label: util.GetLabel(chip.Path, input.Name),
			Input: filepath.Join(chip.Path, input.Name),
			Value: input.GetValue(),
		})
	}
	return result
}

func findSubFeature(subFeatures []gosensors.SubFeature, subFeatureType gosensors.SubFeatureType) (gosensors.SubFeature, bool) {
	for _, subFeature := range subFeatures {
		if subFeature.Type == subFeatureType {
			return subFeature, true
		}
	}
	return gosensors.SubFeature{}, false
}

var fanInputPattern = regexp.MustCompile(`^fan(\d+)_input$`)

// findPwmOutput returns the pwmN file belonging to fanN_input, if it exists
func findPwmOutput(chipPath string, rpmInputName string) string {
	match := fanInputPattern.FindStringSubmatch(rpmInputName)
	if match == nil {
		return ""
	}
	pwmPath := filepath.Join(chipPath, "pwm"+match[1])
	if _, err := os.Stat(pwmPath); err != nil {
		return ""
	}
	return pwmPath
}

// computeIdentifier builds the chip name the way lm-sensors prints it, e.g. "nct6798-isa-0290"
func computeIdentifier(chip gosensors.Chip) string {
	name := chip.Prefix
	if len(name) <= 0 {
		name = util.GetDeviceName(chip.Path)
	}
	if len(name) <= 0 {
		_, name = filepath.Split(chip.Path)
	}

	switch chip.Bus.Type {
	case BusTypeIsa:
		return fmt.Sprintf("%s-isa-%04x", name, int(chip.Addr))
	case BusTypePci:
		return fmt.Sprintf("%s-pci-%04x", name, int(chip.Bus.Nr)<<8+int(chip.Addr))
	case BusTypeAcpi:
		return fmt.Sprintf("%s-acpi-%x", name, int(chip.Bus.Nr))
	}
	return name
}

func findChips(chips []*Chip, platform string) ([]*Chip, error) {
	if len(platform) <= 0 {
		return chips, nil
	}
	pattern, err := regexp.Compile(platform)
	if err != nil {
		return nil, fmt.Errorf("invalid platform pattern '%s': %w", platform, err)
	}
	var result []*Chip
	for _, chip := range chips {
		if pattern.MatchString(chip.Name) || strings.Contains(chip.Path, platform) {
			result = append(result, chip)
		}
	}
	return result, nil
}

// ResolveFanConfig fills in the pwm and rpm paths of a hwmon fan config from the
// first chip matching its platform that has a fan with the configured index.
func ResolveFanConfig(chips []*Chip, config *configuration.HwMonFanConfig) error {
	candidates, err := findChips(chips, config.Platform)
	if err != nil {
		return err
	}
	for _, chip := range candidates {
		for _, fan := range chip.Fans {
			if fan.Index != config.Index {
				continue
			}
			if len(fan.PwmOutput) <= 0 {
				return fmt.Errorf("hwmon fan %d of %s has no pwm output", fan.Index, chip.Name)
			}
			config.PwmOutput = fan.PwmOutput
			config.RpmInput = fan.RpmInput
			return nil
		}
	}
	return fmt.Errorf("no hwmon fan matched platform '%s' and index %d", config.Platform, config.Index)
}

// ResolveSensorConfig fills in the temperature input path of a hwmon sensor config
func ResolveSensorConfig(chips []*Chip, config *configuration.HwMonSensorConfig) error {
	candidates, err := findChips(chips, config.Platform)
	if err != nil {
		return err
	}
	for _, chip := range candidates {
		for _, temp := range chip.Temps {
			if temp.Index == config.Index {
				config.TempInput = temp.Input
				return nil
			}
		}
	}
	return fmt.Errorf("no hwmon sensor matched platform '%s' and index %d", config.Platform, config.Index)
}

// ResolveConfig resolves all hwmon based fan and cpu sensor paths of the given configuration
func ResolveConfig(config *configuration.Configuration) error {
	var chips []*Chip
	lookup := func() []*Chip {
		if chips == nil {
			chips = GetChips()
		}
		return chips
	}

	for i := range config.Fans {
		fanConfig := &config.Fans[i]
		if fanConfig.HwMon == nil {
			continue
		}
		if err := ResolveFanConfig(lookup(), fanConfig.HwMon); err != nil {
			return fmt.Errorf("fan %s: %w", fanConfig.ID, err)
		}
	}

	if config.Cpu != nil && config.Cpu.HwMon != nil {
		if err := ResolveSensorConfig(lookup(), config.Cpu.HwMon); err != nil {
			return fmt.Errorf("cpu: %w", err)
		}
	}
	return nil
}
