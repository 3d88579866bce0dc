package config

// ConnectionProvider hands out the connection settings for one evaluation.
// Implementations return a value copy, so a reload never changes settings
// under an evaluation that is already running.
type ConnectionProvider interface {
	Connection() ConnectionConfig
}

// StaticProvider serves a fixed ConnectionConfig.
type StaticProvider struct {
	Conn ConnectionConfig
}

func (p StaticProvider) Connection() ConnectionConfig { return p.Conn }
