package supervisor

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultLauncherPath         = "vllm"
	DefaultBasePort             = 8001
	DefaultMaxInstances         = 3
	DefaultMaxPortScan          = 100
	DefaultGPUMemoryUtilization = 0.25
	DefaultEngineMarker         = "VLLM::EngineCore"
	DefaultStopTimeout          = 5 * time.Second
	DefaultProbeTimeout         = 250 * time.Millisecond

	// discoveredDefaultPort is assumed for scanned serving processes whose
	// argv carries no parsable --port.
	discoveredDefaultPort = 8001
)

// DefaultTemplateFamilies lists model name fragments of families that ship
// without a chat template and need one passed explicitly.
var DefaultTemplateFamilies = []string{"opt", "pythia", "gpt"}

// Config encapsulates all tunables for Supervisor construction.
type Config struct {
	// VLLMPath is the launcher executable. Its base name is also what
	// discovery looks for in foreign command lines.
	VLLMPath             string
	BasePort             int
	MaxInstances         int
	MaxPortScan          int
	GPUMemoryUtilization float64
	// ExtraArgs are appended to every launch command.
	ExtraArgs []string
	// ChatTemplate overrides the bundled template file.
	ChatTemplate     string
	TemplateFamilies []string
	// TemplateDir is where the bundled template is written when ChatTemplate
	// is empty. Defaults to the user cache directory.
	TemplateDir  string
	EngineMarker string
	StopTimeout  time.Duration
	ProbeTimeout time.Duration
	// SkipDiscovery disables the startup process scan.
	SkipDiscovery bool

	Logger    *zerolog.Logger
	Publisher EventPublisher
	// Collaborators; nil selects the OS-backed implementations.
	Table    ProcessTable
	Launcher Launcher
	Prober   PortProber
}

func (c Config) withDefaults() Config {
	if c.VLLMPath == "" {
		c.VLLMPath = DefaultLauncherPath
	}
	if c.BasePort <= 0 {
		c.BasePort = DefaultBasePort
	}
	if c.MaxInstances <= 0 {
		c.MaxInstances = DefaultMaxInstances
	}
	if c.MaxPortScan <= 0 {
		c.MaxPortScan = DefaultMaxPortScan
	}
	if c.GPUMemoryUtilization <= 0 || c.GPUMemoryUtilization > 1 {
		c.GPUMemoryUtilization = DefaultGPUMemoryUtilization
	}
	if c.TemplateFamilies == nil {
		c.TemplateFamilies = DefaultTemplateFamilies
	}
	if c.EngineMarker == "" {
		c.EngineMarker = DefaultEngineMarker
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Table == nil {
		c.Table = NewOSProcessTable()
	}
	if c.Launcher == nil {
		c.Launcher = NewExecLauncher(nil, nil)
	}
	if c.Prober == nil {
		c.Prober = NewTCPProber("127.0.0.1", c.ProbeTimeout)
	}
	return c
}
