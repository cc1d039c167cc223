package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by the socket transports
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConfig selects and tunes the peer transport
type TransportConfig struct {
	// Name of the transport (mem, tcp, unix, http)
	Name string
	// RetryCount is the number of send attempts before a frame is given up
	RetryCount int
	// ConnectTimeoutSecond bounds how long Connect keeps dialing peers that are not up yet
	ConnectTimeoutSecond int

	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// World configuration struct
// --------------------------------------------------------------------------

// WorldConfig describes the membership of this process in the world group.
// It is produced by whatever launched the process (flags, environment) and
// is immutable once the environment is initialized.
type WorldConfig struct {
	// Rank of this process in the world group
	Rank int
	// Size of the world group
	Size int
	// Endpoints holds the listen address of every rank, indexed by rank
	Endpoints []string
	// JobID identifies the run in logs
	JobID string

	Transport TransportConfig

	// TimeoutSecond bounds a single frame write, zero disables the deadline
	TimeoutSecond int

	// Serialization of envelopes
	Serializer          string
	Compression         string
	CompressionMinBytes int

	// MetricsEndpoint serves Prometheus metrics if set (e.g. localhost:9100)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Validate checks the configuration for consistency
func (c *WorldConfig) Validate() error {
	if c.Size < 1 {
		return NewError(RetCInvalidConfig, "world size must be at least 1, got %d", c.Size)
	}
	if c.Rank < 0 || c.Rank >= c.Size {
		return NewError(RetCInvalidConfig, "rank %d outside of world [0, %d)", c.Rank, c.Size)
	}
	if c.Transport.Name != "mem" && len(c.Endpoints) != c.Size {
		return NewError(RetCInvalidConfig, "expected %d endpoints, got %d", c.Size, len(c.Endpoints))
	}
	if c.LogLevel != "" {
		if _, err := parseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *WorldConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// World membership
	addSection("World")
	addField("Job", c.JobID)
	addField("Rank", strconv.Itoa(c.Rank))
	addField("Size", strconv.Itoa(c.Size))

	// Transport
	addSection("Transport")
	addField("Name", c.Transport.Name)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Connect Timeout", fmt.Sprintf("%d sec", c.Transport.ConnectTimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	if c.Transport.Name == "tcp" {
		addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
		addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	}

	// Serialization
	addSection("Serialization")
	addField("Serializer", c.Serializer)
	if c.Compression != "" && c.Compression != "none" {
		addField("Compression", fmt.Sprintf("%s (>= %d bytes)", c.Compression, c.CompressionMinBytes))
	}

	// Logging & metrics
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Endpoints
	if len(c.Endpoints) > 0 {
		addSection("Endpoints")
		for i, endpoint := range c.Endpoints {
			addField(strconv.Itoa(i), endpoint)
		}
	}

	return sb.String()
}
