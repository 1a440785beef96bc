package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
	"github.com/manishiitg/apimcp/oas"
	"github.com/manishiitg/apimcp/oauth"
	"github.com/manishiitg/apimcp/tools"
)

// GatewayConfig is the gateway's YAML configuration
type GatewayConfig struct {
	Server   GatewayServerConfig            `yaml:"server"`
	Products []ProductConfig                `yaml:"products"`
	OAuth    *oauth.ClientCredentialsConfig `yaml:"oauth"`
	SpecDir  string                         `yaml:"specDir"`
	Logging  LoggingConfig                  `yaml:"logging"`

	// Tools is the static tool map, kept as a node so its key order survives
	Tools yaml.Node `yaml:"tools"`
}

// GatewayServerConfig holds the listener settings
type GatewayServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"basePath"`

	HTTPTimeout    time.Duration `yaml:"-"`
	HTTPTimeoutRaw string        `yaml:"httpTimeout"`
}

// ProductConfig maps API keys to a product and its tool allow-list
type ProductConfig struct {
	Name    string   `yaml:"name"`
	APIKeys []string `yaml:"apiKeys"`

	// MCPTools is "*" or a comma-separated tool list
	MCPTools string `yaml:"mcpTools"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LoadGateway reads a gateway configuration file. ${VAR} references are
// expanded from the environment first.
func LoadGateway(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseGateway(data)
}

// ParseGateway parses and validates gateway configuration text
func ParseGateway(data []byte) (*GatewayConfig, error) {
	var cfg GatewayConfig
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.setDefaults()

	timeout, err := parseDuration(cfg.Server.HTTPTimeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing server.httpTimeout: %w", err)
	}
	if timeout > 0 {
		cfg.Server.HTTPTimeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or empty when
// unset. Bare $name is left alone since schemas use $ref.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *GatewayConfig) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/mcp"
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		c.Server.BasePath = "/" + c.Server.BasePath
	}
	c.Server.BasePath = strings.TrimSuffix(c.Server.BasePath, "/")
	if c.Server.HTTPTimeout == 0 {
		c.Server.HTTPTimeout = 30 * time.Second
	}
	if c.OAuth != nil {
		c.OAuth.SetDefaults()
	}
}

// Validate checks the products and the optional OAuth block
func (c *GatewayConfig) Validate() error {
	seenProducts := map[string]bool{}
	seenKeys := map[string]string{}
	for i, p := range c.Products {
		if p.Name == "" {
			return fmt.Errorf("products[%d].name is required", i)
		}
		if seenProducts[p.Name] {
			return fmt.Errorf("product %q is defined twice", p.Name)
		}
		seenProducts[p.Name] = true
		if len(p.APIKeys) == 0 {
			return fmt.Errorf("product %q needs at least one api key", p.Name)
		}
		for _, k := range p.APIKeys {
			if k == "" {
				return fmt.Errorf("product %q has an empty api key", p.Name)
			}
			if other, ok := seenKeys[k]; ok {
				return fmt.Errorf("an api key of product %q is also used by %q", p.Name, other)
			}
			seenKeys[k] = p.Name
		}
	}
	if c.OAuth != nil {
		if err := c.OAuth.Validate(); err != nil {
			return fmt.Errorf("oauth: %w", err)
		}
	}
	return nil
}

// StaticTools validates the tools block and builds its descriptors. A
// missing block yields no tools.
func (c *GatewayConfig) StaticTools(logger loggerv2.Logger) ([]*tools.Descriptor, error) {
	if c.Tools.Kind == 0 {
		return nil, nil
	}
	v, err := oas.FromNode(&c.Tools)
	if err != nil {
		return nil, fmt.Errorf("reading tools: %w", err)
	}
	m, _ := v.(*oas.Object)
	descs, err := tools.LoadStaticMap(m, logger)
	if err != nil {
		return nil, errors.Join(errors.New("invalid tools configuration"), err)
	}
	return descs, nil
}
