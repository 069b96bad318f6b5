package config

import (
	"fmt"
	"time"

	iconfig "github.com/firespoon/sandchat/shared/config"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Sandbox  SandboxConfig
	Otel     OtelConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type AuthConfig struct {
	// JWTSecret signs access and container tokens.
	JWTSecret string
	// EncryptionKey is the 64-char hex key for provider API keys at rest.
	EncryptionKey     string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	ContainerTokenTTL time.Duration
}

type SandboxConfig struct {
	// Image is the agent container image started per conversation.
	Image string
	// DataDir holds per-conversation workspace directories.
	DataDir string
	// BackendWSURL is the URL containers dial back to, reachable from
	// inside a container (host-gateway).
	BackendWSURL    string
	DockerHost      string
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

type OtelConfig struct {
	Endpoint    string
	Environment string
}

func Load() *Config {
	port := iconfig.GetEnvInt(8080, "SANDCHAT_SERVER_PORT", "PORT")
	return &Config{
		Server: ServerConfig{
			Host:           iconfig.GetEnv("0.0.0.0", "SANDCHAT_SERVER_HOST", "HOST"),
			Port:           port,
			AllowedOrigins: iconfig.GetEnvSlice([]string{"*"}, "SANDCHAT_ALLOWED_ORIGINS", "ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      iconfig.GetEnv("postgres://localhost:5432/sandchat?sslmode=disable", "SANDCHAT_POSTGRES_URL", "DATABASE_URL"),
			MaxConns: iconfig.GetEnvInt(5, "SANDCHAT_DB_MAX_CONNS"),
		},
		Auth: AuthConfig{
			JWTSecret:         iconfig.MustEnv("SANDCHAT_JWT_SECRET", "JWT_SECRET"),
			EncryptionKey:     iconfig.MustEnv("SANDCHAT_ENCRYPTION_KEY", "ENCRYPTION_KEY"),
			AccessTokenTTL:    iconfig.GetEnvDuration(2*time.Hour, "SANDCHAT_ACCESS_TOKEN_TTL"),
			RefreshTokenTTL:   iconfig.GetEnvDuration(30*24*time.Hour, "SANDCHAT_REFRESH_TOKEN_TTL"),
			ContainerTokenTTL: iconfig.GetEnvDuration(24*time.Hour, "SANDCHAT_CONTAINER_TOKEN_TTL"),
		},
		Sandbox: SandboxConfig{
			Image:           iconfig.GetEnv("sandchat-agent:latest", "SANDCHAT_CONTAINER_IMAGE", "CONTAINER_IMAGE"),
			DataDir:         iconfig.GetEnv("data", "SANDCHAT_DATA_DIR"),
			BackendWSURL:    iconfig.GetEnv(fmt.Sprintf("ws://host.docker.internal:%d/internal/ws", port), "SANDCHAT_BACKEND_WS_URL"),
			DockerHost:      iconfig.GetEnv("/var/run/docker.sock", "SANDCHAT_DOCKER_HOST", "DOCKER_HOST"),
			IdleTimeout:     iconfig.GetEnvDuration(10*time.Minute, "SANDCHAT_CONTAINER_IDLE_TIMEOUT", "CONTAINER_IDLE_TIMEOUT"),
			CleanupInterval: iconfig.GetEnvDuration(time.Minute, "SANDCHAT_CONTAINER_CLEANUP_INTERVAL"),
		},
		Otel: OtelConfig{
			Endpoint:    iconfig.GetEnv("", "SANDCHAT_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"),
			Environment: iconfig.GetEnv("development", "SANDCHAT_ENVIRONMENT", "ENVIRONMENT"),
		},
	}
}
