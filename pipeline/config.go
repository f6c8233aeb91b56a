package pipeline

import (
	"math"
	"strings"

	"github.com/LdDl/pitch-tracker/detection"
	"github.com/LdDl/pitch-tracker/mot"
	"github.com/LdDl/pitch-tracker/registration"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the whole application configuration
type Config struct {
	Video     VideoConfig     `mapstructure:"video"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Plane     PlaneConfig     `mapstructure:"plane"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Heatmap   HeatmapConfig   `mapstructure:"heatmap"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
}

type VideoConfig struct {
	Path string `mapstructure:"path"`
	// Where to write JSON export. Empty means stdout
	Output string `mapstructure:"output"`
	// Legacy keyed export instead of ordered one
	Legacy bool `mapstructure:"legacy"`
}

// ReferenceConfig holds pixel corners of the visible playing surface on the reference frame
type ReferenceConfig struct {
	// Top-left, top-right, bottom-left, bottom-right as [x, y] pairs
	Corners [][]float64 `mapstructure:"corners"`
}

type PlaneConfig struct {
	Width       float64 `mapstructure:"width"`
	Height      float64 `mapstructure:"height"`
	PitchLength float64 `mapstructure:"pitch_length"`
	PitchWidth  float64 `mapstructure:"pitch_width"`
}

type MatcherConfig struct {
	MaxFeatures int  `mapstructure:"max_features"`
	TopK        int  `mapstructure:"top_k"`
	MinMatches  int  `mapstructure:"min_matches"`
	CrossCheck  bool `mapstructure:"cross_check"`
}

// EstimatorConfig holds RANSAC parameters of OpenCV findHomography
type EstimatorConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Confidence    float64 `mapstructure:"confidence"`
}

type TrackerConfig struct {
	Gate           float64 `mapstructure:"gate"`
	StablePoolSize int     `mapstructure:"stable_pool_size"`
	// "greedy", "nearest_first" or "hungarian"
	Assignment string `mapstructure:"assignment"`
	// Seed for track colors. Zero picks time-based seed
	ColorSeed int64 `mapstructure:"color_seed"`
}

type DetectorConfig struct {
	Weights        string  `mapstructure:"weights"`
	Config         string  `mapstructure:"config"`
	Classes        string  `mapstructure:"classes"`
	InputSize      int     `mapstructure:"input_size"`
	Backend        string  `mapstructure:"backend"`
	Target         string  `mapstructure:"target"`
	MinConfidence  float64 `mapstructure:"min_confidence"`
	Class          string  `mapstructure:"class"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	NMSThreshold   float64 `mapstructure:"nms_threshold"`
}

type HeatmapConfig struct {
	// Grid cell side in plane units
	CellSize float64 `mapstructure:"cell_size"`
	// Gaussian blur sigma in plane units
	Sigma float64 `mapstructure:"sigma"`
}

type HTTPConfig struct {
	// Serve query API after processing
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	orb := registration.DefaultORBConfig()
	estimator := registration.DefaultEstimatorConfig()
	filter := detection.DefaultFilter()

	v.SetDefault("video.output", "")
	v.SetDefault("video.legacy", false)
	v.SetDefault("plane.width", 800.0)
	v.SetDefault("plane.height", 600.0)
	v.SetDefault("plane.pitch_length", 105.0)
	v.SetDefault("plane.pitch_width", 68.0)
	v.SetDefault("matcher.max_features", orb.MaxFeatures)
	v.SetDefault("matcher.top_k", orb.TopK)
	v.SetDefault("matcher.min_matches", orb.MinMatches)
	v.SetDefault("matcher.cross_check", orb.CrossCheck)
	v.SetDefault("estimator.threshold", estimator.Threshold)
	v.SetDefault("estimator.max_iterations", estimator.MaxIterations)
	v.SetDefault("estimator.confidence", estimator.Confidence)
	v.SetDefault("tracker.gate", 50.0)
	v.SetDefault("tracker.stable_pool_size", 5)
	v.SetDefault("tracker.assignment", "greedy")
	v.SetDefault("tracker.color_seed", 0)
	v.SetDefault("detector.input_size", 416)
	v.SetDefault("detector.backend", "default")
	v.SetDefault("detector.target", "cpu")
	v.SetDefault("detector.min_confidence", filter.MinConfidence)
	v.SetDefault("detector.class", filter.Class)
	v.SetDefault("detector.score_threshold", 0.3)
	v.SetDefault("detector.nms_threshold", 0.4)
	v.SetDefault("heatmap.cell_size", 10.0)
	v.SetDefault("heatmap.sigma", 10.0)
	v.SetDefault("http.enabled", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
}

// DefaultConfig returns configuration filled with defaults only
func DefaultConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "Can't decode default config")
	}
	return cfg, nil
}

// LoadConfig reads YAML (or any other viper supported format) file on top of defaults.
// Environment variables prefixed with PITCHTRACK_ override file values, e.g. PITCHTRACK_TRACKER_GATE.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("pitchtrack")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "Can't read config file '%s'", path)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "Can't decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values which would break processing
func (cfg *Config) Validate() error {
	if _, err := cfg.Corners(); err != nil {
		return err
	}
	if _, err := cfg.OutputPlane(); err != nil {
		return err
	}
	if !(cfg.Tracker.Gate > 0) {
		return errors.Errorf("tracker.gate must be positive, got %v", cfg.Tracker.Gate)
	}
	if cfg.Tracker.StablePoolSize < 0 {
		return errors.Errorf("tracker.stable_pool_size can't be negative, got %d", cfg.Tracker.StablePoolSize)
	}
	if _, ok := mot.ParseAssignmentStrategy(cfg.Tracker.Assignment); !ok {
		return errors.Errorf("unknown tracker.assignment '%s'", cfg.Tracker.Assignment)
	}
	if !(cfg.Estimator.Threshold > 0) || cfg.Estimator.MaxIterations <= 0 || !(cfg.Estimator.Confidence > 0 && cfg.Estimator.Confidence < 1) {
		return errors.Errorf("estimator needs positive threshold and max_iterations and confidence in (0, 1), got %v, %d and %v", cfg.Estimator.Threshold, cfg.Estimator.MaxIterations, cfg.Estimator.Confidence)
	}
	if cfg.Matcher.TopK < 4 || cfg.Matcher.MinMatches > cfg.Matcher.TopK {
		return errors.Errorf("matcher.top_k must be at least 4 and not less than matcher.min_matches, got %d and %d", cfg.Matcher.TopK, cfg.Matcher.MinMatches)
	}
	if !(cfg.Heatmap.CellSize > 0) || cfg.Heatmap.Sigma < 0 {
		return errors.Errorf("heatmap.cell_size must be positive and heatmap.sigma non-negative, got %v and %v", cfg.Heatmap.CellSize, cfg.Heatmap.Sigma)
	}
	return nil
}

// Corners returns reference corners as points
func (cfg *Config) Corners() ([4]registration.Point, error) {
	var corners [4]registration.Point
	if len(cfg.Reference.Corners) != 4 {
		return corners, errors.Errorf("reference.corners must hold 4 points, got %d", len(cfg.Reference.Corners))
	}
	for i, pair := range cfg.Reference.Corners {
		if len(pair) != 2 {
			return corners, errors.Errorf("reference corner %d must be [x, y], got %v", i, pair)
		}
		if math.IsNaN(pair[0]) || math.IsNaN(pair[1]) || math.IsInf(pair[0], 0) || math.IsInf(pair[1], 0) {
			return corners, errors.Errorf("reference corner %d is not finite: %v", i, pair)
		}
		corners[i] = registration.Point{X: pair[0], Y: pair[1]}
	}
	return corners, nil
}

// OutputPlane builds output plane from config
func (cfg *Config) OutputPlane() (registration.OutputPlane, error) {
	return registration.NewOutputPlane(cfg.Plane.Width, cfg.Plane.Height, cfg.Plane.PitchLength, cfg.Plane.PitchWidth)
}

// ORBConfig returns matcher parameters
func (cfg *Config) ORBConfig() registration.ORBConfig {
	return registration.ORBConfig{
		MaxFeatures: cfg.Matcher.MaxFeatures,
		TopK:        cfg.Matcher.TopK,
		MinMatches:  cfg.Matcher.MinMatches,
		CrossCheck:  cfg.Matcher.CrossCheck,
	}
}

// NewEstimator creates homography estimator
func (cfg *Config) NewEstimator() registration.Estimator {
	return registration.NewOpenCVEstimator(cfg.Estimator.Threshold, cfg.Estimator.MaxIterations, cfg.Estimator.Confidence)
}

// Filter returns detections filter
func (cfg *Config) Filter() detection.Filter {
	return detection.Filter{
		MinConfidence: cfg.Detector.MinConfidence,
		Class:         cfg.Detector.Class,
	}
}

// YOLOConfig returns detector parameters
func (cfg *Config) YOLOConfig() detection.YOLOConfig {
	yolo := detection.DefaultYOLOConfig(cfg.Detector.Weights, cfg.Detector.Config)
	yolo.ClassesFile = cfg.Detector.Classes
	yolo.InputSize = cfg.Detector.InputSize
	yolo.Backend = cfg.Detector.Backend
	yolo.Target = cfg.Detector.Target
	yolo.Filter = cfg.Filter()
	yolo.ScoreThreshold = float32(cfg.Detector.ScoreThreshold)
	yolo.NMSThreshold = float32(cfg.Detector.NMSThreshold)
	return yolo
}
