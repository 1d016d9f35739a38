package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/portfolio-hub/invest-tracker/internal/model"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type MarketDataConfig struct {
	Address           string        `yaml:"address"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

type TrackerConfig struct {
	Server     ServerConfig     `yaml:"server"`
	MarketData MarketDataConfig `yaml:"market_data"`
	// Benchmark is the reference symbol shown next to every report.
	Benchmark string `yaml:"benchmark"`
	// OperationTimeout bounds each engine call's store I/O.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	// Instruments is the known-symbol catalog (display names and
	// market tags).
	Instruments []model.Instrument `yaml:"instruments"`
}

const (
	_portDefault              = "8080"
	_requestsPerMinuteDefault = 500
	_mdTimeoutDefault         = 10 * time.Second
	_opTimeoutDefault         = 5 * time.Second
	_benchmarkDefault         = "SPY"
)

func (c *TrackerConfig) ValidateAndSetup() error {
	if c.Server.Port == "" {
		c.Server.Port = _portDefault
	}

	if c.MarketData.Address == "" {
		return fmt.Errorf("market data address is required")
	}
	if _, err := url.Parse(c.MarketData.Address); err != nil {
		return err
	}
	if c.MarketData.RequestsPerMinute <= 0 {
		c.MarketData.RequestsPerMinute = _requestsPerMinuteDefault
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = _mdTimeoutDefault
	}

	if c.Benchmark == "" {
		c.Benchmark = _benchmarkDefault
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = _opTimeoutDefault
	}

	for i := range c.Instruments {
		if c.Instruments[i].Symbol == "" {
			return fmt.Errorf("instrument %d has empty symbol", i)
		}
	}

	return nil
}

func LoadTrackerConfig(filename string) (TrackerConfig, error) {
	var cfg TrackerConfig
	input, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("%w: can't read file", err)
	}

	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: can't unmarshal config", err)
	}

	if err := cfg.ValidateAndSetup(); err != nil {
		return cfg, fmt.Errorf("%w: can't setup cfg", err)
	}

	return cfg, nil
}
