package configuration

import (
	"os"
	"time"

	"github.com/markusressel/hddfan/internal/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Configuration struct {
	DbPath string `json:"dbPath"`

	// Interval between the start of two consecutive control cycles
	Interval time.Duration `json:"interval"`
	// QueryWorkers limits how many drives are queried in parallel within one cycle
	QueryWorkers int `json:"queryWorkers"`
	// MaxConsecutiveFailures is the number of failed reads after which a device is excluded
	MaxConsecutiveFailures int  `json:"maxConsecutiveFailures"`
	RestoreOnExit          bool `json:"restoreOnExit"`
	// StartupBoost is the duration a fan is held at (at least) its spinUpValue after leaving the stopped state
	StartupBoost time.Duration `json:"startupBoost"`

	Temperature TemperatureConfig `json:"temperature"`
	Retry       RetryConfig       `json:"retry"`

	Drives      []DriveConfig     `json:"drives"`
	Cpu         *CpuSensorConfig  `json:"cpu"`
	Fans        []FanConfig       `json:"fans"`
	Calibration CalibrationConfig `json:"calibration"`
	Statistics  StatisticsConfig  `json:"statistics"`
}

type TemperatureConfig struct {
	// Low is the temperature (°C) at or below which fans run at their floor
	Low float64 `json:"low"`
	// High is the temperature (°C) at or above which fans run at full speed
	High float64 `json:"high"`
	// Hysteresis is the margin (°C) by which thresholds are shifted while the temperature falls
	Hysteresis float64 `json:"hysteresis"`
}

type RetryConfig struct {
	Attempts int           `json:"attempts"`
	Backoff  time.Duration `json:"backoff"`
}

type StatisticsConfig struct {
	Enabled  bool   `json:"enabled"`
	Textfile string `json:"textfile"`
}

var CurrentConfig Configuration

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	viper.SetConfigName("hddfan")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			ui.Error("Couldn't detect home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/hddfan/")
	}

	viper.SetEnvPrefix("hddfan")
	viper.AutomaticEnv() // read in environment variables that match

	setDefaultValues()
}

func setDefaultValues() {
	viper.SetDefault("dbPath", "/etc/hddfan/hddfan.db")
	viper.SetDefault("interval", 20*time.Second)
	viper.SetDefault("queryWorkers", 4)
	viper.SetDefault("maxConsecutiveFailures", 3)
	viper.SetDefault("restoreOnExit", true)
	viper.SetDefault("startupBoost", 20*time.Second)

	viper.SetDefault("temperature.low", 30.0)
	viper.SetDefault("temperature.high", 50.0)
	viper.SetDefault("temperature.hysteresis", 2.0)

	viper.SetDefault("retry.attempts", 3)
	viper.SetDefault("retry.backoff", 500*time.Millisecond)

	viper.SetDefault("calibration.fastValue", DefaultFastValue)
	viper.SetDefault("calibration.slowValue", DefaultSlowValue)
	viper.SetDefault("calibration.step", 5)
	viper.SetDefault("calibration.settleDelay", 2*time.Second)
	viper.SetDefault("calibration.sampleInterval", 1*time.Second)
	viper.SetDefault("calibration.stableSamples", 3)
	viper.SetDefault("calibration.rpmNoiseFloor", 0)
	viper.SetDefault("calibration.timeout", 10*time.Minute)

	viper.SetDefault("statistics.enabled", false)
	viper.SetDefault("statistics.textfile", "/var/lib/node_exporter/textfile_collector/hddfan.prom")

	viper.SetDefault("drives", []DriveConfig{})
	viper.SetDefault("fans", []FanConfig{})
}

// DetectAndReadConfigFile reads the configuration file and returns its path.
// A configuration file is required, so this fails hard if none can be read.
func DetectAndReadConfigFile() string {
	if err := viper.ReadInConfig(); err != nil {
		ui.Fatal("Error reading config file, %s", err)
	}
	// this is only populated _after_ ReadInConfig()
	return viper.ConfigFileUsed()
}

func LoadConfig() {
	err := viper.Unmarshal(&CurrentConfig, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			probeMethodHookFunc(),
		),
	))
	if err != nil {
		ui.Fatal("unable to decode into struct, %v", err)
	}
}
