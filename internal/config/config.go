package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/directions"
	"turn-by-turn/internal/nav/progress"
	"turn-by-turn/internal/nav/simulator"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "NAV"

type TrackerConfig struct {
	CorridorWidth    float64 `mapstructure:"corridor_width" validate:"gt=0"`
	ArrivalThreshold float64 `mapstructure:"arrival_threshold" validate:"gt=0"`
}

type SimulatorConfig struct {
	Speed        float64 `mapstructure:"speed" validate:"gt=0"`         // m/s
	PointSpacing float64 `mapstructure:"point_spacing" validate:"gt=0"` // meters
	Lookahead    int     `mapstructure:"lookahead" validate:"gte=1"`    // points
}

type CameraConfig struct {
	Distance         float64       `mapstructure:"distance" validate:"gt=0"`
	Pitch            float64       `mapstructure:"pitch" validate:"gte=0,lte=85"`
	RotationDuration time.Duration `mapstructure:"rotation_duration" validate:"gt=0"`
	PositionDuration time.Duration `mapstructure:"position_duration" validate:"gte=0"`
	Easing           string        `mapstructure:"easing" validate:"oneof=ease-out linear ease-in-out"`
	OverviewPadding  float64       `mapstructure:"overview_padding" validate:"gte=0"`
}

type TickerConfig struct {
	Rate float64 `mapstructure:"rate" validate:"gt=0,lte=240"` // Hz
}

// RoutesConfig lists the route files served offline and the default trip.
type RoutesConfig struct {
	Files       []string `mapstructure:"files" validate:"dive,required"`
	Origin      string   `mapstructure:"origin" validate:"omitempty,coordinate"`      // "lat,lon"
	Destination string   `mapstructure:"destination" validate:"omitempty,coordinate"` // "lat,lon"
	Transport   string   `mapstructure:"transport" validate:"oneof=automobile walking transit any"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error off"`
}

type Config struct {
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Ticker    TickerConfig    `mapstructure:"ticker"`
	Routes    RoutesConfig    `mapstructure:"routes"`
	Log       LogConfig       `mapstructure:"log"`
}

var defaults = map[string]any{
	"tracker.corridor_width":    progress.DEFAULT_CORRIDOR_WIDTH,
	"tracker.arrival_threshold": progress.DEFAULT_ARRIVAL_THRESHOLD,
	"simulator.speed":           simulator.DEFAULT_SPEED,
	"simulator.point_spacing":   simulator.DEFAULT_POINT_SPACING,
	"simulator.lookahead":       simulator.DEFAULT_LOOKAHEAD,
	"camera.distance":           camera.DEFAULT_DISTANCE,
	"camera.pitch":              camera.DEFAULT_PITCH,
	"camera.rotation_duration":  camera.DEFAULT_ROTATION_DURATION,
	"camera.position_duration":  camera.DEFAULT_POSITION_DURATION,
	"camera.easing":             camera.EASE_OUT.String(),
	"camera.overview_padding":   camera.DEFAULT_OVERVIEW_PADDING,
	"ticker.rate":               60.0,
	"routes.files":              []string{},
	"routes.origin":             "",
	"routes.destination":        "",
	"routes.transport":          types.AUTOMOBILE.String(),
	"log.level":                 "info",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("coordinate", func(fl validator.FieldLevel) bool {
		_, err := types.ParseCoordinate(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks every field and reports the first offending one.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) TrackerOptions() []progress.Option {
	return []progress.Option{
		progress.WithCorridorWidth(c.Tracker.CorridorWidth),
		progress.WithArrivalThreshold(c.Tracker.ArrivalThreshold),
	}
}

func (c *Config) SimulatorOptions() []simulator.Option {
	return []simulator.Option{
		simulator.WithPointSpacing(c.Simulator.PointSpacing),
		simulator.WithLookahead(c.Simulator.Lookahead),
	}
}

func (c *Config) CameraConfig() camera.Config {
	easing, err := camera.ParseEasing(c.Camera.Easing)
	if err != nil {
		easing = camera.EASE_OUT
	}
	return camera.Config{
		Distance:         c.Camera.Distance,
		Pitch:            c.Camera.Pitch,
		RotationDuration: c.Camera.RotationDuration,
		PositionDuration: c.Camera.PositionDuration,
		Easing:           easing,
		OverviewPadding:  c.Camera.OverviewPadding,
	}
}

func (c *Config) TickInterval() time.Duration {
	return ticker.Interval(c.Ticker.Rate)
}

func (c *Config) LogLevel() log.Lvl {
	switch c.Log.Level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}

// Trip returns the configured default trip. ok is false when origin or
// destination is not set.
func (c *Config) Trip() (req directions.Request, ok bool, err error) {
	if c.Routes.Origin == "" || c.Routes.Destination == "" {
		return directions.Request{}, false, nil
	}
	if req.Source, err = types.ParseCoordinate(c.Routes.Origin); err != nil {
		return req, false, err
	}
	if req.Destination, err = types.ParseCoordinate(c.Routes.Destination); err != nil {
		return req, false, err
	}
	if req.Transport, err = types.ParseTransportType(c.Routes.Transport); err != nil {
		return req, false, err
	}
	return req, true, nil
}

// Loader reads navigation.yaml with NAV_ environment overrides and keeps the
// latest valid configuration.
type Loader struct {
	v *viper.Viper

	mu      sync.RWMutex
	current *Config
}

func NewLoader() *Loader {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads path, or only defaults and environment when path is empty.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		l.v.SetConfigType("yaml")
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.set(cfg)
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) set(cfg *Config) {
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
}

// Current returns the latest valid configuration in a thread-safe way.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch reloads the file on every change. fn runs on the watcher goroutine
// with the new config, or with the error when the edit was invalid; an
// invalid edit keeps the previous config current.
func (l *Loader) Watch(fn func(*Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Infof("config changed: %s", e.Name)
		cfg, err := l.reload()
		if fn != nil {
			fn(cfg, err)
		}
	})
	l.v.WatchConfig()
}

func (l *Loader) reload() (*Config, error) {
	cfg, err := l.decode()
	if err != nil {
		log.Warnf("config reload rejected: %v", err)
		return nil, err
	}
	l.set(cfg)
	return cfg, nil
}

// Load is a one-shot NewLoader().Load(path).
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}
