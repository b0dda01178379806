package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/handler"
	"github.com/mulesoft/mule-sub047/system"
)

// Log formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config represents the complete application configuration
type Config struct {
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	NATS          NATSConfig          `yaml:"nats"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Database      DatabaseConfig      `yaml:"database"`
	System        system.Config       `yaml:"system"`

	// MaxNestingDepth bounds nested handler sub-chains; zero uses the handler default
	MaxNestingDepth int `yaml:"max_nesting_depth,omitempty"`

	// ErrorTypes are custom types, declared parents first
	ErrorTypes []ErrorTypeConfig `yaml:"error_types,omitempty"`

	// ComponentErrorTypes type the errors of a component kind before the
	// global error table is consulted
	ComponentErrorTypes []ComponentErrorTypeConfig `yaml:"component_error_types,omitempty"`

	// ErrorHandlers are global handler chains that flows reference by name
	ErrorHandlers map[string][]HandlerConfig `yaml:"error_handlers,omitempty"`

	// DefaultErrorHandler names the global handler used by flows declaring none
	DefaultErrorHandler string `yaml:"default_error_handler,omitempty"`

	Flows map[string]FlowConfig `yaml:"flows,omitempty"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Color  bool   `yaml:"color"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// NATSConfig defines the optional NATS connection used for notifications and
// the publish processor. An empty URL disables NATS.
type NATSConfig struct {
	URL           string        `yaml:"url,omitempty"`
	Name          string        `yaml:"name,omitempty"`
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	Token         string        `yaml:"token,omitempty"`
	MaxReconnects int           `yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `yaml:"reconnect_wait,omitempty"`
	ConnectWait   time.Duration `yaml:"connect_wait,omitempty"`
}

// Enabled reports whether a NATS connection is configured
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// NotificationsConfig selects the notification sinks
type NotificationsConfig struct {
	Log           bool   `yaml:"log"`
	LogLevel      string `yaml:"log_level"`
	NATS          bool   `yaml:"nats"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DatabaseConfig configures the database whose transactions flows own
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ErrorTypeConfig declares a custom error type. Parent defaults to ANY.
type ErrorTypeConfig struct {
	ID     string `yaml:"id"`
	Parent string `yaml:"parent,omitempty"`
}

// ComponentErrorTypeConfig types errors raised by components of kind
// Component whose message contains Contains
type ComponentErrorTypeConfig struct {
	Component string `yaml:"component"`
	Contains  string `yaml:"contains"`
	Type      string `yaml:"type"`
}

// HandlerConfig configures one on-error handler
type HandlerConfig struct {
	Kind                string            `yaml:"kind"`
	Name                string            `yaml:"name,omitempty"`
	Type                string            `yaml:"type,omitempty"`
	When                string            `yaml:"when,omitempty"`
	LogException        *bool             `yaml:"log_exception,omitempty"`
	EnableNotifications *bool             `yaml:"enable_notifications,omitempty"`
	Processors          []ProcessorConfig `yaml:"processors,omitempty"`
}

// ProcessorConfig names a processor of a handler sub-chain
type ProcessorConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params,omitempty"`
}

// FlowConfig configures the error handling of one flow. A flow either
// references a global handler or declares its own.
type FlowConfig struct {
	ErrorHandler string          `yaml:"error_handler,omitempty"`
	Handlers     []HandlerConfig `yaml:"handlers,omitempty"`
	Mappings     []MappingConfig `yaml:"mappings,omitempty"`

	// Components gives the kind, e.g. HTTP:request, of the component at a
	// path of the flow so that its error types apply there
	Components map[string]string `yaml:"components,omitempty"`
}

// MappingConfig maps errors raised by a component of the flow to another type
type MappingConfig struct {
	Component string `yaml:"component"`
	Source    string `yaml:"source"`
	Target    string `yaml:"target"`
}

// DefaultConfig returns the configuration used before any layer is applied
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: FormatConsole, Color: true},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		NATS: NATSConfig{
			Name:          "flowfault",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			ConnectWait:   5 * time.Second,
		},
		Notifications: NotificationsConfig{
			Log:           true,
			LogLevel:      "debug",
			SubjectPrefix: "flowfault.notifications",
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		System:   system.DefaultConfig(),
	}
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return DefaultConfig()
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := yaml.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns the YAML representation with secrets masked
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Password != "" {
		masked.NATS.Password = "****"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "****"
	}
	data, _ := yaml.Marshal(masked)
	return string(data)
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := c.validateAmbient(); err != nil {
		return err
	}

	declared := make(map[string]bool)
	for i, et := range c.ErrorTypes {
		id, err := component.ParseIdentifier(et.ID)
		if err != nil {
			return invalid("error_types[%d]: %v", i, err)
		}
		if id.Namespace == component.DefaultNamespace {
			return invalid("error_types[%d]: %s: the %s namespace is reserved", i, id, component.DefaultNamespace)
		}
		if et.Parent != "" {
			parent, err := component.ParseIdentifier(et.Parent)
			if err != nil {
				return invalid("error_types[%d].parent: %v", i, err)
			}
			if parent.Namespace != component.DefaultNamespace && !declared[parent.String()] {
				return invalid("error_types[%d]: parent %s must be declared first", i, parent)
			}
		}
		declared[id.String()] = true
	}

	for i, ct := range c.ComponentErrorTypes {
		if _, err := component.ParseIdentifier(ct.Component); err != nil {
			return invalid("component_error_types[%d].component: %v", i, err)
		}
		if ct.Contains == "" {
			return invalid("component_error_types[%d].contains is required", i)
		}
		if _, err := component.ParseIdentifier(ct.Type); err != nil {
			return invalid("component_error_types[%d].type: %v", i, err)
		}
	}

	for name, handlers := range c.ErrorHandlers {
		if name == "" {
			return invalid("error_handlers: empty name")
		}
		if err := validateHandlers("error_handlers."+name, handlers); err != nil {
			return err
		}
	}
	if c.DefaultErrorHandler != "" {
		if _, ok := c.ErrorHandlers[c.DefaultErrorHandler]; !ok {
			return invalid("default_error_handler: unknown global handler %q", c.DefaultErrorHandler)
		}
	}

	for name, flow := range c.Flows {
		if name == "" {
			return invalid("flows: empty name")
		}
		path := "flows." + name
		if flow.ErrorHandler != "" && len(flow.Handlers) > 0 {
			return invalid("%s: error_handler and handlers are exclusive", path)
		}
		if flow.ErrorHandler != "" {
			if _, ok := c.ErrorHandlers[flow.ErrorHandler]; !ok {
				return invalid("%s: unknown global handler %q", path, flow.ErrorHandler)
			}
		}
		if err := validateHandlers(path+".handlers", flow.Handlers); err != nil {
			return err
		}
		for i, m := range flow.Mappings {
			if m.Component == "" || m.Source == "" || m.Target == "" {
				return invalid("%s.mappings[%d]: component, source and target are required", path, i)
			}
		}
		for at, kind := range flow.Components {
			if at == "" {
				return invalid("%s.components: empty path", path)
			}
			if _, err := component.ParseIdentifier(kind); err != nil {
				return invalid("%s.components.%s: %v", path, at, err)
			}
		}
	}
	return nil
}

func (c *Config) validateAmbient() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	if c.Log.Format != FormatConsole && c.Log.Format != FormatJSON {
		return invalid("log.format must be %q or %q, got %q", FormatConsole, FormatJSON, c.Log.Format)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return invalid("metrics.address is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path must start with /")
		}
	}
	if _, err := ParseLevel(c.Notifications.LogLevel); err != nil {
		return invalid("notifications.log_level: %v", err)
	}
	if c.Notifications.NATS {
		if !c.NATS.Enabled() {
			return invalid("notifications.nats needs nats.url")
		}
		for _, part := range strings.Split(c.Notifications.SubjectPrefix, ".") {
			if !isValidNATSSubjectPart(part) {
				return invalid("notifications.subject_prefix %q is not a valid NATS subject", c.Notifications.SubjectPrefix)
			}
		}
	}
	if c.MaxNestingDepth < 0 {
		return invalid("max_nesting_depth cannot be negative")
	}
	if c.System.Workers < 0 || c.System.QueueSize < 0 {
		return invalid("system.workers and system.queue_size cannot be negative")
	}
	return c.System.Retry.Validate()
}

func validateHandlers(path string, handlers []HandlerConfig) error {
	for i, h := range handlers {
		kind, ok := handler.ParseKind(h.Kind)
		if !ok {
			return invalid("%s[%d]: unknown kind %q", path, i, h.Kind)
		}
		if kind == handler.KindCritical {
			return invalid("%s[%d]: %s is not configurable", path, i, kind)
		}
		for j, p := range h.Processors {
			if p.Name == "" {
				return invalid("%s[%d].processors[%d]: name is required", path, i, j)
			}
		}
	}
	return nil
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dashes and underscores.
func isValidNATSSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// ParseLevel parses a slog level name
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "validate configuration")
}
