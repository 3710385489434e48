package model

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version  int      `json:"version" yaml:"version"` // fixed 0 for now
	Temporal Temporal `json:"temporal" yaml:"temporal"`
	Shell    Shell    `json:"shell" yaml:"shell"`
	Nmap     Nmap     `json:"nmap" yaml:"nmap"`
	Runner   Runner   `json:"runner" yaml:"runner"`
	Server   Server   `json:"server" yaml:"server"`
	Service  Service  `json:"service" yaml:"service"`
}

// Temporal describes how to reach the durable-execution engine.
type Temporal struct {
	HostPort        string `json:"host_port" yaml:"host_port"`
	Namespace       string `json:"namespace" yaml:"namespace"`
	ConnectAttempts int    `json:"connect_attempts" yaml:"connect_attempts"`
	ConnectDelay    string `json:"connect_delay" yaml:"connect_delay"` // e.g. 2s
}

// Shell configures the shell command variant.
type Shell struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	TaskQueue string `json:"task_queue" yaml:"task_queue"`
	Shell     string `json:"shell" yaml:"shell"` // interpreter invoked with -c
}

// Nmap configures the nmap scan variant.
type Nmap struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	TaskQueue   string `json:"task_queue" yaml:"task_queue"`
	Binary      string `json:"binary" yaml:"binary"` // path or name (e.g. nmap)
	DefaultArgs string `json:"default_args" yaml:"default_args"`
}

type Runner struct {
	HeartbeatInterval string `json:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// Server configures the tool server transport.
type Server struct {
	Transport string `json:"transport" yaml:"transport"` // "http" | "stdio"
	Listen    string `json:"listen" yaml:"listen"`
}

type Service struct {
	Verbose *bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Delay returns the pause between two engine connection attempts.
func (t Temporal) Delay() time.Duration {
	return mustDuration(t.ConnectDelay)
}

// Interval returns the liveness signal period of a running process.
func (r Runner) Interval() time.Duration {
	return mustDuration(r.HeartbeatInterval)
}

// durations are validated by the schema, so the parse can't fail for a
// loaded config
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

// DefaultConfig returns a configuration with all schema defaults applied.
func DefaultConfig() Config {
	cfg, err := LoadConfig(strings.NewReader("version: 0\n"))
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}
