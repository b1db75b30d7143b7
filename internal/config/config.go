// Package config reads the two environment-variable knobs once at
// process start and hands back a plain struct, turning ad hoc env/flag
// reads into a populated struct rather than scattering os.Getenv calls
// through the call graph.
package config

import (
	"os"
	"strconv"
)

const (
	envServerHost = "server15440"
	envServerPort = "serverport15440"

	defaultServerHost = "127.0.0.1"
	defaultServerPort = 15440
)

// ClientConfig is what the client needs to dial the server at process
// start. There is no reconnect, so this is read exactly once.
type ClientConfig struct {
	Host string
	Port int
}

// ClientFromEnv reads server15440 / serverport15440, applying the
// documented defaults when unset or unparsable.
func ClientFromEnv() ClientConfig {
	return ClientConfig{
		Host: getEnvOr(envServerHost, defaultServerHost),
		Port: getEnvIntOr(envServerPort, defaultServerPort),
	}
}

// ServerConfig is what the server needs to bind its listening socket.
type ServerConfig struct {
	Port int
}

// ServerFromEnv reads serverport15440, applying the documented default
// when unset or unparsable.
func ServerFromEnv() ServerConfig {
	return ServerConfig{Port: getEnvIntOr(envServerPort, defaultServerPort)}
}

func getEnvOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvIntOr(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
