// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Wheels is the number of sub units on the bus.
const Wheels = 4

// WheelSuffixes orders per-wheel keys the same way as the bus.
var WheelSuffixes = [Wheels]string{"FL", "FR", "RL", "RR"}

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDHead    string
	MQTTClientIDSub     string
	MQTTClientIDSim     string
	MQTTClientIDWeb     string
	MQTTClientIDConsole string

	// Topics
	TopicSnapshot string
	TopicScreen   string
	TopicSubBase  string // per wheel: <base>/<n>/diag
	TopicCmdTare  string
	TopicCmdMode  string

	// Head hardware
	HeadSPIDevice   string
	HeadSPISpeedKHz int
	HeadCSPins      [Wheels]string
	HeadLEDPins     [Wheels]string // empty entries are not wired
	HeadButtonPin   string

	// Display
	DisplayEnabled bool
	DisplayI2CBus  string // empty selects the first bus

	// Head timing
	HeadSettleUs          int // CS to clock settle time, microseconds
	ScreenPublishInterval int // milliseconds, 0 disables the screen topic

	// Sub hardware
	SubHX1SCKPin  string
	SubHX1DOUTPin string
	SubHX2SCKPin  string
	SubHX2DOUTPin string
	SubLEDPin     string
	SubBusCSPin   string
	SubBusSCKPin  string
	SubBusMOSIPin string
	SubBusMISOPin string

	// Sub
	SubWheel           int // 0..3, bus order
	SubCalibrationFile string
	SubConsolePort     string // empty disables the console
	SubConsoleBaud     int
	SubDiagInterval    int // milliseconds

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// Simulation
	SimScenario string // YAML file, empty or missing runs the built-in scenario
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: set once by InitGlobal, read through Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex, write lock for initialization and read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for unset keys.
func Default() *Config {
	return &Config{
		MQTTClientIDHead:    "wheel-head",
		MQTTClientIDSub:     "wheel-sub",
		MQTTClientIDSim:     "wheel-sim",
		MQTTClientIDWeb:     "wheel-web",
		MQTTClientIDConsole: "wheel-console",

		TopicSnapshot: "wheel/snapshot",
		TopicScreen:   "wheel/screen",
		TopicSubBase:  "wheel/sub",
		TopicCmdTare:  "wheel/cmd/tare",
		TopicCmdMode:  "wheel/cmd/mode",

		HeadSPIDevice:   "/dev/spidev0.0",
		HeadSPISpeedKHz: 100,
		HeadCSPins:      [Wheels]string{"GPIO5", "GPIO6", "GPIO13", "GPIO19"},
		HeadLEDPins:     [Wheels]string{"GPIO12", "GPIO16", "GPIO20", "GPIO21"},
		HeadButtonPin:   "GPIO26",

		DisplayEnabled: true,

		HeadSettleUs:          100,
		ScreenPublishInterval: 1000,

		SubHX1SCKPin:  "GPIO17",
		SubHX1DOUTPin: "GPIO27",
		SubHX2SCKPin:  "GPIO22",
		SubHX2DOUTPin: "GPIO23",
		SubLEDPin:     "GPIO24",
		SubBusCSPin:   "GPIO8",
		SubBusSCKPin:  "GPIO11",
		SubBusMOSIPin: "GPIO10",
		SubBusMISOPin: "GPIO9",

		SubCalibrationFile: "wheel_calibration.bin",
		SubConsoleBaud:     115200,
		SubDiagInterval:    1000,

		WebServerPort: 8080,
		WebStaticDir:  "./web",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// wheelKey splits "HEAD_CS_PIN_RL" into ("HEAD_CS_PIN", 2).
func wheelKey(key string) (string, int, bool) {
	i := strings.LastIndexByte(key, '_')
	if i < 0 {
		return key, 0, false
	}
	for n, s := range WheelSuffixes {
		if key[i+1:] == s {
			return key[:i], n, true
		}
	}
	return key, 0, false
}

func parseInt(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	if base, n, ok := wheelKey(key); ok {
		switch base {
		case "HEAD_CS_PIN":
			c.HeadCSPins[n] = value
			return nil
		case "HEAD_LED_PIN":
			c.HeadLEDPins[n] = value
			return nil
		}
	}

	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_HEAD":
		c.MQTTClientIDHead = value
	case "MQTT_CLIENT_ID_SUB":
		c.MQTTClientIDSub = value
	case "MQTT_CLIENT_ID_SIM":
		c.MQTTClientIDSim = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_SNAPSHOT":
		c.TopicSnapshot = value
	case "TOPIC_SCREEN":
		c.TopicScreen = value
	case "TOPIC_SUB_BASE":
		c.TopicSubBase = strings.TrimSuffix(value, "/")
	case "TOPIC_CMD_TARE":
		c.TopicCmdTare = value
	case "TOPIC_CMD_MODE":
		c.TopicCmdMode = value

	// Head hardware
	case "HEAD_SPI_DEVICE":
		c.HeadSPIDevice = value
	case "HEAD_SPI_SPEED_KHZ":
		c.HeadSPISpeedKHz, err = parseInt(key, value, 1, 10000)
	case "HEAD_BUTTON_PIN":
		c.HeadButtonPin = value

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid DISPLAY_ENABLED: %w", err)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value

	// Head timing
	case "HEAD_SETTLE_US":
		c.HeadSettleUs, err = parseInt(key, value, 0, 900)
	case "SCREEN_PUBLISH_INTERVAL":
		c.ScreenPublishInterval, err = parseInt(key, value, 0, 3600000)

	// Sub hardware
	case "SUB_HX1_SCK_PIN":
		c.SubHX1SCKPin = value
	case "SUB_HX1_DOUT_PIN":
		c.SubHX1DOUTPin = value
	case "SUB_HX2_SCK_PIN":
		c.SubHX2SCKPin = value
	case "SUB_HX2_DOUT_PIN":
		c.SubHX2DOUTPin = value
	case "SUB_LED_PIN":
		c.SubLEDPin = value
	case "SUB_BUS_CS_PIN":
		c.SubBusCSPin = value
	case "SUB_BUS_SCK_PIN":
		c.SubBusSCKPin = value
	case "SUB_BUS_MOSI_PIN":
		c.SubBusMOSIPin = value
	case "SUB_BUS_MISO_PIN":
		c.SubBusMISOPin = value

	// Sub
	case "SUB_WHEEL":
		c.SubWheel, err = parseInt(key, value, 0, Wheels-1)
	case "SUB_CALIBRATION_FILE":
		c.SubCalibrationFile = value
	case "SUB_CONSOLE_PORT":
		c.SubConsolePort = value
	case "SUB_CONSOLE_BAUD":
		c.SubConsoleBaud, err = parseInt(key, value, 1200, 4000000)
	case "SUB_DIAG_INTERVAL":
		c.SubDiagInterval, err = parseInt(key, value, 10, 3600000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Simulation
	case "SIM_SCENARIO":
		c.SimScenario = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.HeadSPIDevice == "" {
		return fmt.Errorf("HEAD_SPI_DEVICE is required")
	}
	seen := map[string]string{}
	for i, pin := range c.HeadCSPins {
		key := "HEAD_CS_PIN_" + WheelSuffixes[i]
		if pin == "" {
			return fmt.Errorf("%s is required", key)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("%s and %s share pin %s", other, key, pin)
		}
		seen[pin] = key
	}
	if c.TopicSubBase == "" {
		return fmt.Errorf("TOPIC_SUB_BASE is required")
	}
	if c.SubCalibrationFile == "" {
		return fmt.Errorf("SUB_CALIBRATION_FILE is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
