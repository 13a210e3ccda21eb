package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"rgbwd/hwio"
	"rgbwd/services/hwrev"
	"rgbwd/services/rgbw"
	"rgbwd/services/rgbw/config"
	"rgbwd/types"
)

// Config is the daemon configuration file.
type Config struct {
	Log   LogConfig       `yaml:"log"`
	RGBW  config.Manifest `yaml:"rgbw"`
	Hwrev *hwrev.Config   `yaml:"hwrev,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	effect := flag.String("effect", "", "Effect to run until shutdown: pulse, blink, heartbeat, rainbow")
	pulseColor := flag.String("pulse-color", "red", "Channel the pulse effect animates")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.Log)

	log.Info().Str("config", configPath).Msg("Starting rgbwd")

	reg, err := hwio.NewHostRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise hardware registry")
	}

	if cfg.Hwrev != nil {
		rev, err := hwrev.Probe("hwrev", *cfg.Hwrev, reg, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to probe board revision")
		}
		defer rev.Remove()
		log.Info().Str("board_rev", rev.Revision()).Int("list_index", rev.TableIndex()).
			Msg("Board revision")
	}

	dev, err := rgbw.Probe(&cfg.RGBW, reg, rgbw.Options{Logger: log.Logger})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to probe rgbw device")
	}
	defer dev.Remove()

	if *effect != "" {
		if err := startEffect(dev, *effect, *pulseColor); err != nil {
			log.Fatal().Err(err).Str("effect", *effect).Msg("Failed to start effect")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutting down")
}

func startEffect(dev *rgbw.Device, name, pulseColor string) error {
	switch name {
	case "pulse":
		return dev.StartPulse(colorByName(pulseColor))
	case "blink":
		return dev.StartEffect(types.EffectBlink)
	case "heartbeat":
		return dev.StartEffect(types.EffectHeartbeat)
	case "rainbow":
		return dev.StartEffect(types.EffectRainbow)
	default:
		return fmt.Errorf("unknown effect %q", name)
	}
}

func colorByName(name string) types.Color {
	for c := types.Red; c < types.NumColors; c++ {
		if types.ColorNames[c] == name {
			return c
		}
	}
	return types.Red
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setupLogging(cfg LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !cfg.Colors,
		})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
