package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"

	hash_ring "github.com/pule1234/hash_ring"
)

// Config is the root of the ringdemo configuration file.
type Config struct {
	Ring   RingConfig   `yaml:"ring"`
	Redis  *RedisConfig `yaml:"redis"`
	Logger LoggerConfig `yaml:"logger"`
	Demo   DemoConfig   `yaml:"demo"`
}

type RingConfig struct {
	Name      string   `yaml:"name"`
	Replicas  int      `yaml:"replicas"`
	Encryptor string   `yaml:"encryptor"`
	Nodes     []string `yaml:"nodes"`
}

// RedisConfig switches the demo to a ring whose membership is shared
// through redis. Leave it out to run fully in process.
type RedisConfig struct {
	Network           string `yaml:"network"`
	Address           string `yaml:"address"`
	Password          string `yaml:"password"`
	RingKey           string `yaml:"ring_key"`
	LockExpireSeconds int    `yaml:"lock_expire_seconds"`
	MaxIdle           int    `yaml:"max_idle"`
	MaxActive         int    `yaml:"max_active"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DemoConfig lists the keys to print and the node to remove between the
// two printouts.
type DemoConfig struct {
	Keys   []string `yaml:"keys"`
	Remove string   `yaml:"remove"`
}

// Default mirrors the classic three-server walkthrough.
func Default() Config {
	return Config{
		Ring: RingConfig{
			Name:      "demo",
			Replicas:  hash_ring.DefaultReplicas,
			Encryptor: hash_ring.EncryptorMD5,
			Nodes:     []string{"Server-A", "Server-B", "Server-C"},
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Demo: DemoConfig{
			Keys:   []string{"User1", "User2", "User3", "User4", "User5"},
			Remove: "Server-A",
		},
	}
}

// Load reads a YAML file, fills unset fields from Default and validates the
// result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	def := Default()
	if c.Ring.Name == "" {
		c.Ring.Name = def.Ring.Name
	}
	if c.Ring.Replicas == 0 {
		c.Ring.Replicas = def.Ring.Replicas
	}
	if c.Ring.Encryptor == "" {
		c.Ring.Encryptor = def.Ring.Encryptor
	}
	if len(c.Ring.Nodes) == 0 {
		c.Ring.Nodes = def.Ring.Nodes
	}
	if c.Logger.Level == "" {
		c.Logger.Level = def.Logger.Level
	}
	// the default removal only makes sense for the default keys
	if len(c.Demo.Keys) == 0 {
		c.Demo = def.Demo
	}
	if c.Redis != nil {
		if c.Redis.Network == "" {
			c.Redis.Network = "tcp"
		}
		if c.Redis.RingKey == "" {
			c.Redis.RingKey = c.Ring.Name
		}
	}
}

func (c Config) Validate() error {
	if c.Ring.Replicas <= 0 {
		return fmt.Errorf("ring.replicas: %w", hash_ring.ErrInvalidReplicas)
	}
	if _, err := hash_ring.EncryptorByName(c.Ring.Encryptor); err != nil {
		return fmt.Errorf("ring.encryptor: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Ring.Nodes))
	for _, node := range c.Ring.Nodes {
		if node == "" {
			return fmt.Errorf("ring.nodes: %w", hash_ring.ErrInvalidNodeName)
		}
		if _, ok := seen[node]; ok {
			return fmt.Errorf("ring.nodes: %q: %w", node, hash_ring.ErrDuplicateNode)
		}
		seen[node] = struct{}{}
	}

	if c.Redis != nil && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is configured")
	}

	if _, err := logrus.ParseLevel(c.Logger.Level); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger described by c.
func (c LoggerConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	if c.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
