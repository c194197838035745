package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultFileName   = ".bucketspectre.yaml"
	alternateFileName = ".bucketspectre.yml"
)

// Config holds persistent defaults loaded from a config file.
type Config struct {
	Region         string `yaml:"region"`
	AWSProfile     string `yaml:"aws_profile"`
	Account        string `yaml:"account"`
	Concurrency    int    `yaml:"concurrency"`
	Format         string `yaml:"format"`
	Timeout        string `yaml:"timeout"`
	RequestTimeout string `yaml:"request_timeout"`
	CredentialsEnv string `yaml:"credentials_env"`
}

// TimeoutDuration parses the Timeout field as a Go duration.
// Returns 0 if empty or unparseable.
func (c *Config) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout)
}

// RequestTimeoutDuration parses RequestTimeout the same way as TimeoutDuration.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return parseDuration(c.RequestTimeout)
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Load searches for a config file in the given directory and the user's home
// directory. Returns a zero-value Config if no file is found.
func Load(dir string) (Config, error) {
	for _, p := range searchPaths(dir) {
		cfg, found, err := loadPath(p)
		if err != nil {
			return Config{}, err
		}
		if found {
			return cfg, nil
		}
	}
	return Config{}, nil
}

func searchPaths(dir string) []string {
	var paths []string
	if dir != "" {
		paths = append(paths, filepath.Join(dir, defaultFileName), filepath.Join(dir, alternateFileName))
	}
	if home, err := os.UserHomeDir(); err == nil && home != dir {
		paths = append(paths, filepath.Join(home, defaultFileName), filepath.Join(home, alternateFileName))
	}
	return paths
}

func loadPath(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}
