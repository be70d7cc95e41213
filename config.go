package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"kubeframe/internal/camera"
	"kubeframe/internal/frame"
)

const defaultConfigPath = "~/.config/kube/kube.toml"

// Config is the demo's settings. Precedence, lowest first: defaults, the
// TOML file, command-line flags, VK_VALIDATION.
type Config struct {
	Width          int        `toml:"width"`
	Height         int        `toml:"height"`
	Title          string     `toml:"title"`
	FramesInFlight int        `toml:"frames_in_flight"`
	PresentMode    string     `toml:"present_mode"`
	Format         string     `toml:"format"`
	ClearColor     [4]float32 `toml:"clear_color"`
	MSAASamples    int        `toml:"msaa_samples"`
	Validation     bool       `toml:"validation"`
	Verbose        bool       `toml:"verbose"`
	ShaderDir      string     `toml:"shader_dir"`
	Model          string     `toml:"model"`
	Texture        string     `toml:"texture"`
	FloorTexture   string     `toml:"floor_texture"`
	WatchShaders   bool       `toml:"watch_shaders"`
	MoveSpeed      float32    `toml:"move_speed"`
	LookSpeed      float32    `toml:"look_speed"`
}

func DefaultConfig() Config {
	engine := frame.DefaultConfig()
	return Config{
		Width:          800,
		Height:         600,
		Title:          "Kube",
		FramesInFlight: engine.FramesInFlight,
		PresentMode:    engine.Preferences.PresentMode.String(),
		Format:         engine.Preferences.Format.Format.String(),
		ClearColor:     [4]float32{0.05, 0.05, 0.08, 1},
		MSAASamples:    2,
		Validation:     true,
		ShaderDir:      "shaders",
		MoveSpeed:      camera.DefaultMoveSpeed,
		LookSpeed:      camera.DefaultLookSpeed,
	}
}

// loadConfig resolves the configuration for a command line. A missing file
// at the default path is not an error; a missing explicit -config is.
func loadConfig(args []string, getenv func(string) string) (Config, error) {
	path := defaultConfigPath
	scratch := DefaultConfig()
	if err := newFlagSet(&scratch, &path).Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	explicit := path != defaultConfigPath
	if err := readConfigFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	// Flags are bound again with the file values as defaults, so only the
	// flags actually given override the file.
	if err := newFlagSet(&cfg, &path).Parse(args); err != nil {
		return Config{}, err
	}

	if v := getenv("VK_VALIDATION"); v != "" {
		switch v {
		case "0", "false", "False", "FALSE":
			cfg.Validation = false
		default:
			cfg.Validation = true
		}
	}

	for _, p := range []*string{&cfg.ShaderDir, &cfg.Model, &cfg.Texture, &cfg.FloorTexture} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return Config{}, fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return cfg, cfg.Validate()
}

func newFlagSet(cfg *Config, path *string) *flag.FlagSet {
	set := flag.NewFlagSet("kube", flag.ContinueOnError)
	set.StringVar(path, "config", *path, "TOML config file")
	set.IntVar(&cfg.Width, "width", cfg.Width, "window width")
	set.IntVar(&cfg.Height, "height", cfg.Height, "window height")
	set.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	set.IntVar(&cfg.FramesInFlight, "frames", cfg.FramesInFlight, "frames in flight")
	set.StringVar(&cfg.PresentMode, "present", cfg.PresentMode, "preferred present mode: mailbox, fifo, fifo-relaxed, immediate")
	set.StringVar(&cfg.Format, "format", cfg.Format, "preferred surface format")
	set.IntVar(&cfg.MSAASamples, "msaa", cfg.MSAASamples, "MSAA sample count (1 disables); lowered to what the GPU supports")
	set.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable Vulkan validation layers")
	set.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "debug logging")
	set.StringVar(&cfg.ShaderDir, "shaders", cfg.ShaderDir, "directory holding compiled SPIR-V")
	set.StringVar(&cfg.Model, "model", cfg.Model, "Wavefront OBJ for the spinning object (default cube)")
	set.StringVar(&cfg.Texture, "texture", cfg.Texture, "texture for the spinning object")
	set.StringVar(&cfg.FloorTexture, "floor-texture", cfg.FloorTexture, "texture for the floor")
	set.BoolVar(&cfg.WatchShaders, "watch", cfg.WatchShaders, "rebuild when shaders change")
	set.Var((*float32Value)(&cfg.MoveSpeed), "move-speed", "camera move speed")
	set.Var((*float32Value)(&cfg.LookSpeed), "look-speed", "camera look speed")
	set.Var((*colorValue)(&cfg.ClearColor), "clear", "clear color as r,g,b,a")
	return set
}

func readConfigFile(path string, cfg *Config) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", expanded, err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Width, c.Height))
	}
	if c.FramesInFlight < 1 {
		errs = append(errs, fmt.Errorf("frames in flight must be at least 1, got %d", c.FramesInFlight))
	}
	if _, err := frame.ParsePresentMode(c.PresentMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := frame.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if n := c.MSAASamples; n < 1 || n > 64 || n&(n-1) != 0 {
		errs = append(errs, fmt.Errorf("msaa samples must be a power of two in [1,64], got %d", n))
	}
	if c.MoveSpeed <= 0 || c.LookSpeed <= 0 {
		errs = append(errs, fmt.Errorf("camera speeds must be positive"))
	}
	return errors.Join(errs...)
}

// Engine converts the validated settings for the frame engine.
func (c Config) Engine() frame.Config {
	cfg := frame.DefaultConfig()
	cfg.FramesInFlight = c.FramesInFlight
	if m, err := frame.ParsePresentMode(c.PresentMode); err == nil {
		cfg.Preferences.PresentMode = m
	}
	if f, err := frame.ParseFormat(c.Format); err == nil {
		cfg.Preferences.Format.Format = f
	}
	cfg.Clear.Color = c.ClearColor
	return cfg
}

type float32Value float32

func (v *float32Value) String() string {
	return strconv.FormatFloat(float64(*v), 'g', -1, 32)
}

func (v *float32Value) Set(s string) error {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*v = float32Value(f)
	return nil
}

type colorValue [4]float32

func (v *colorValue) String() string {
	parts := make([]string, len(v))
	for i, c := range v {
		parts[i] = strconv.FormatFloat(float64(c), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

func (v *colorValue) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != len(v) {
		return fmt.Errorf("want %d components, got %d", len(v), len(parts))
	}
	var out colorValue
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return err
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}
