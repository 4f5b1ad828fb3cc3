package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultPort is the TCP port the server listens on and clients
	// connect to unless configured otherwise.
	DefaultPort = 6379

	// DefaultHost is the address clients connect to by default.
	DefaultHost = "127.0.0.1"

	// DefaultMaxConnections caps the number of simultaneously served
	// client connections.
	DefaultMaxConnections = 250

	// DefaultChannelCapacity is the number of messages buffered per
	// pub/sub subscriber before the oldest ones are dropped.
	DefaultChannelCapacity = 1024
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the server.
type ServerConfig struct {
	// Listener settings
	Port           uint16
	MaxConnections int

	// Keyspace settings
	ChannelCapacity int

	// TCP socket tuning
	TCPNoDelay      bool
	TCPKeepAliveSec int

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns the configuration the server runs with
// when no flags or environment overrides are given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            DefaultPort,
		MaxConnections:  DefaultMaxConnections,
		ChannelCapacity: DefaultChannelCapacity,
		TCPNoDelay:      true,
		LogLevel:        "info",
	}
}

// Endpoint returns the listen address in host:port form.
func (c *ServerConfig) Endpoint() string {
	return fmt.Sprintf(":%d", c.Port)
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Port", strconv.Itoa(int(c.Port)))
	addField("Max Connections", strconv.Itoa(c.MaxConnections))

	addSection("Keyspace")
	addField("Channel Capacity", strconv.Itoa(c.ChannelCapacity))

	addSection("TCP")
	addField("No Delay", fmt.Sprintf("%t", c.TCPNoDelay))
	addField("Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the connection parameters of the client library
// and the CLI client.
type ClientConfig struct {
	Host string
	Port uint16
}

// Endpoint returns the server address in host:port form.
func (c *ClientConfig) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Host", c.Host)
	addField("Port", strconv.Itoa(int(c.Port)))

	return sb.String()
}
