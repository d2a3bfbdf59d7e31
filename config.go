package loopclosure

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config carries the required deployment parameters. All keys must be set;
// Validate rejects missing or out-of-range values.
type Config struct {
	// RobotID is this robot's id in [0, NumRobots).
	RobotID uint16 `toml:"robot_id"`
	// NumRobots is the fleet size.
	NumRobots uint16 `toml:"num_robots"`
	// VocabularyPath names the BoW vocabulary blob.
	VocabularyPath string `toml:"vocabulary_path"`
	// Alpha scales the score acceptance threshold.
	Alpha float64 `toml:"alpha"`
	// DistLocal is the self-match exclusion window in poses.
	DistLocal uint32 `toml:"dist_local"`
	// MaxDBResults is the database query top-k.
	MaxDBResults int `toml:"max_db_results"`
	// BaseNSSFactor is the normalization floor for cross-robot scoring.
	BaseNSSFactor float64 `toml:"base_nss_factor"`
	// MinNSSFactor rejects self-queries below this self-similarity.
	MinNSSFactor float64 `toml:"min_nss_factor"`
	// LoweRatio is the descriptor match acceptance ratio.
	LoweRatio float64 `toml:"lowe_ratio"`
	// MaxRansacIterations caps RANSAC sampling.
	MaxRansacIterations int `toml:"max_ransac_iterations"`
	// RansacThreshold is the RANSAC inlier distance bound.
	RansacThreshold float64 `toml:"ransac_threshold"`
	// MinInlierCount is the absolute inlier floor.
	MinInlierCount int `toml:"geometric_verification_min_inlier_count"`
	// MinInlierPercentage is the relative inlier floor in [0, 1].
	MinInlierPercentage float64 `toml:"geometric_verification_min_inlier_percentage"`
	// VLCBatchSize caps frame ids per outbound request.
	VLCBatchSize int `toml:"vlc_batch_size"`
	// LogOutputPath is the directory receiving the CSV debug logs.
	LogOutputPath string `toml:"log_output_path"`
}

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, &ErrInvalidConfig{Key: path, Reason: "decode failed", cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every key.
func (c Config) Validate() error {
	if c.NumRobots == 0 {
		return &ErrInvalidConfig{Key: "num_robots", Reason: "must be positive"}
	}
	if c.RobotID >= c.NumRobots {
		return &ErrInvalidConfig{Key: "robot_id", Reason: fmt.Sprintf("%d not in [0, %d)", c.RobotID, c.NumRobots)}
	}
	if c.VocabularyPath == "" {
		return &ErrInvalidConfig{Key: "vocabulary_path", Reason: "must be set"}
	}
	if c.Alpha <= 0 {
		return &ErrInvalidConfig{Key: "alpha", Reason: "must be positive"}
	}
	if c.DistLocal == 0 {
		return &ErrInvalidConfig{Key: "dist_local", Reason: "must be positive"}
	}
	if c.MaxDBResults <= 0 {
		return &ErrInvalidConfig{Key: "max_db_results", Reason: "must be positive"}
	}
	if c.BaseNSSFactor <= 0 || c.BaseNSSFactor > 1 {
		return &ErrInvalidConfig{Key: "base_nss_factor", Reason: "must be in (0, 1]"}
	}
	if c.MinNSSFactor <= 0 || c.MinNSSFactor > 1 {
		return &ErrInvalidConfig{Key: "min_nss_factor", Reason: "must be in (0, 1]"}
	}
	if c.MinNSSFactor > c.BaseNSSFactor {
		return &ErrInvalidConfig{Key: "min_nss_factor", Reason: "must not exceed base_nss_factor"}
	}
	if c.LoweRatio <= 0 || c.LoweRatio >= 1 {
		return &ErrInvalidConfig{Key: "lowe_ratio", Reason: "must be in (0, 1)"}
	}
	if c.MaxRansacIterations <= 0 {
		return &ErrInvalidConfig{Key: "max_ransac_iterations", Reason: "must be positive"}
	}
	if c.RansacThreshold <= 0 {
		return &ErrInvalidConfig{Key: "ransac_threshold", Reason: "must be positive"}
	}
	if c.MinInlierCount <= 0 {
		return &ErrInvalidConfig{Key: "geometric_verification_min_inlier_count", Reason: "must be positive"}
	}
	if c.MinInlierPercentage < 0 || c.MinInlierPercentage > 1 {
		return &ErrInvalidConfig{Key: "geometric_verification_min_inlier_percentage", Reason: "must be in [0, 1]"}
	}
	if c.VLCBatchSize <= 0 {
		return &ErrInvalidConfig{Key: "vlc_batch_size", Reason: "must be positive"}
	}
	if c.LogOutputPath == "" {
		return &ErrInvalidConfig{Key: "log_output_path", Reason: "must be set"}
	}
	return nil
}
