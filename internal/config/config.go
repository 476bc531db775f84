// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPath is the config file the binaries load from the working
// directory.
const DefaultPath = "bikepath_config.txt"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDLogger  string
	MQTTClientIDIMU     string
	MQTTClientIDGPS     string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicIMU     string
	TopicGPS     string
	TopicRecords string
	TopicStatus  string

	// IMU
	IMUSource     string // "spi", "mock" or "mqtt"
	IMUSPIDevice  string
	IMUCSPin      string
	IMUAccelRange byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUSelfTest   bool
	IMUCalibrate  bool

	// GPS
	GPSSource     string // "serial", "mqtt" or "none"
	GPSSerialPort string
	GPSBaudRate   int
	GPSMaxAgeMS   int

	// Capture
	CameraMode          string // "simulated"
	OutputDir           string
	ImagesPerFolder     int
	MinSpeedKmh         float32
	WindowMode          string // "dynamic" or "fixed"
	WorstCaseWindowMS   int
	PreCaptureLeadMS    int
	CameraLockTimeoutMS int
	CalibrationFile     string
	RecordQueueSize     int

	// ClickHouse (disabled when the address is empty)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string

	// Timing
	IMUSampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Logging
	LogLevel string
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when a key is not set.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDLogger:  "bikepath-logger",
		MQTTClientIDIMU:     "bikepath-imu-producer",
		MQTTClientIDGPS:     "bikepath-gps-producer",
		MQTTClientIDConsole: "bikepath-console",
		MQTTClientIDWeb:     "bikepath-web",

		TopicIMU:     "bikepath/imu",
		TopicGPS:     "bikepath/gps",
		TopicRecords: "bikepath/records",
		TopicStatus:  "bikepath/status",

		IMUSource:    "spi",
		IMUSPIDevice: "/dev/spidev6.0",
		IMUCSPin:     "18",
		IMUCalibrate: true,

		GPSSource:     "serial",
		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,
		GPSMaxAgeMS:   3000,

		CameraMode:          "simulated",
		OutputDir:           "captures",
		ImagesPerFolder:     2000,
		MinSpeedKmh:         5,
		WindowMode:          "dynamic",
		WorstCaseWindowMS:   720,
		PreCaptureLeadMS:    250,
		CameraLockTimeoutMS: 2500,
		CalibrationFile:     "calibration.yaml",
		RecordQueueSize:     64,

		ClickHouseDatabase: "default",
		ClickHouseUser:     "default",

		IMUSampleInterval: 5,
		WebServerPort:     8080,
		LogLevel:          "info",
	}
}

// Load reads a KEY=VALUE configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config %s: %w", configPath, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInt(key, value string, min int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be >= %d, got %d", key, min, v)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_LOGGER":
		c.MQTTClientIDLogger = value
	case "MQTT_CLIENT_ID_IMU":
		c.MQTTClientIDIMU = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_RECORDS":
		c.TopicRecords = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// IMU
	case "IMU_SOURCE":
		c.IMUSource = strings.ToLower(value)
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_SELF_TEST":
		c.IMUSelfTest, err = parseBool(key, value)
	case "IMU_CALIBRATE":
		c.IMUCalibrate, err = parseBool(key, value)
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = parseInt(key, value, 1)

	// GPS
	case "GPS_SOURCE":
		c.GPSSource = strings.ToLower(value)
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value, 1)
	case "GPS_MAX_AGE_MS":
		c.GPSMaxAgeMS, err = parseInt(key, value, 0)

	// Capture
	case "CAMERA_MODE":
		c.CameraMode = strings.ToLower(value)
	case "OUTPUT_DIR":
		c.OutputDir = value
	case "IMAGES_PER_FOLDER":
		c.ImagesPerFolder, err = parseInt(key, value, 1)
	case "MIN_SPEED_KMH":
		speed, perr := strconv.ParseFloat(value, 32)
		if perr != nil {
			return fmt.Errorf("invalid MIN_SPEED_KMH %q: %w", value, perr)
		}
		c.MinSpeedKmh = float32(speed)
	case "WINDOW_MODE":
		c.WindowMode = strings.ToLower(value)
	case "WORST_CASE_WINDOW_MS":
		c.WorstCaseWindowMS, err = parseInt(key, value, 1)
	case "PRE_CAPTURE_LEAD_MS":
		c.PreCaptureLeadMS, err = parseInt(key, value, 0)
	case "CAMERA_LOCK_TIMEOUT_MS":
		c.CameraLockTimeoutMS, err = parseInt(key, value, 1)
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "RECORD_QUEUE_SIZE":
		c.RecordQueueSize, err = parseInt(key, value, 1)

	// ClickHouse
	case "CLICKHOUSE_ADDR":
		c.ClickHouseAddr = value
	case "CLICKHOUSE_DATABASE":
		c.ClickHouseDatabase = value
	case "CLICKHOUSE_USER":
		c.ClickHouseUser = value
	case "CLICKHOUSE_PASSWORD":
		c.ClickHousePassword = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that the values fit together.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.IMUSource {
	case "spi":
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required for IMU_SOURCE=spi")
		}
	case "mock", "mqtt":
	default:
		return fmt.Errorf("IMU_SOURCE must be spi, mock or mqtt, got %q", c.IMUSource)
	}
	switch c.GPSSource {
	case "serial":
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required for GPS_SOURCE=serial")
		}
	case "mqtt", "none":
	default:
		return fmt.Errorf("GPS_SOURCE must be serial, mqtt or none, got %q", c.GPSSource)
	}
	if c.WindowMode != "dynamic" && c.WindowMode != "fixed" {
		return fmt.Errorf("WINDOW_MODE must be dynamic or fixed, got %q", c.WindowMode)
	}
	if c.CameraMode != "simulated" {
		return fmt.Errorf("CAMERA_MODE %q is not supported", c.CameraMode)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	return nil
}

// WorstCaseWindow returns WORST_CASE_WINDOW_MS as a duration.
func (c *Config) WorstCaseWindow() time.Duration {
	return time.Duration(c.WorstCaseWindowMS) * time.Millisecond
}

// PreCaptureLead returns PRE_CAPTURE_LEAD_MS as a duration.
func (c *Config) PreCaptureLead() time.Duration {
	return time.Duration(c.PreCaptureLeadMS) * time.Millisecond
}

// CameraLockTimeout returns CAMERA_LOCK_TIMEOUT_MS as a duration.
func (c *Config) CameraLockTimeout() time.Duration {
	return time.Duration(c.CameraLockTimeoutMS) * time.Millisecond
}

// GPSMaxAge returns GPS_MAX_AGE_MS as a duration.
func (c *Config) GPSMaxAge() time.Duration {
	return time.Duration(c.GPSMaxAgeMS) * time.Millisecond
}

// IMUInterval returns IMU_SAMPLE_INTERVAL as a duration.
func (c *Config) IMUInterval() time.Duration {
	return time.Duration(c.IMUSampleInterval) * time.Millisecond
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
