package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Error reports an environment variable that could not be parsed or is
// missing. Startup must fail on it; the gateway never runs with an
// ambiguous configuration.
type Error struct {
	Var    string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: %s: %s", e.Var, e.Reason)
	}
	return fmt.Sprintf("config: %s=%q: %s", e.Var, e.Value, e.Reason)
}

// FailurePolicy controls behavior when the shared store is unreachable.
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "failopen"
	FailClosed FailurePolicy = "failclosed"
)

// StoreBackend selects the shared-state implementation.
type StoreBackend string

const (
	StoreRedis  StoreBackend = "redis"
	StoreMemory StoreBackend = "memory"
)

// Config holds all configuration for the gateway. Built once at startup
// and treated as read-only afterwards.
type Config struct {
	ListenAddr          string
	UserServiceURL      string
	InventoryServiceURL string
	LogLevel            string

	JWTSecret    string
	JWTAlgorithm string

	StoreBackend StoreBackend
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	Session      SessionConfig

	UpstreamTimeout time.Duration
}

// RedisConfig holds connection settings for the shared store.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	SSL      bool
}

// Addr returns the host:port dial address.
func (rc RedisConfig) Addr() string {
	return net.JoinHostPort(rc.Host, strconv.Itoa(rc.Port))
}

// RateLimitConfig holds fixed-window limits for per-client rate limiting.
type RateLimitConfig struct {
	Requests      int64
	Window        time.Duration
	FailurePolicy FailurePolicy
}

// SessionConfig holds session-cache settings. A TTL of zero disables
// the cache entirely.
type SessionConfig struct {
	TTL           time.Duration
	FailurePolicy FailurePolicy
}

// Load reads configuration from environment variables, falling back to
// documented defaults. It returns a *Error for any value that cannot be
// parsed into its required type, and never applies a default in that
// case. Load has no side effects and is deterministic for a fixed
// environment.
func Load() (Config, error) {
	host := envOr("GATEWAY_HOST", "0.0.0.0")
	port, err := envInt("GATEWAY_PORT", 8080)
	if err != nil {
		return Config{}, err
	}

	secret, ok := os.LookupEnv("JWT_SECRET_KEY")
	if !ok || secret == "" {
		return Config{}, &Error{Var: "JWT_SECRET_KEY", Reason: "required, no default"}
	}

	alg := envOr("JWT_ALGORITHM", "HS256")
	switch alg {
	case "HS256", "HS384", "HS512":
	default:
		return Config{}, &Error{Var: "JWT_ALGORITHM", Value: alg, Reason: "must be HS256, HS384 or HS512"}
	}

	userURL, err := envURL("USER_SERVICE_URL", "http://localhost:8081")
	if err != nil {
		return Config{}, err
	}
	inventoryURL, err := envURL("INVENTORY_SERVICE_URL", "http://localhost:8082")
	if err != nil {
		return Config{}, err
	}

	backend := StoreBackend(envOr("STORE_BACKEND", string(StoreRedis)))
	switch backend {
	case StoreRedis, StoreMemory:
	default:
		return Config{}, &Error{Var: "STORE_BACKEND", Value: string(backend), Reason: "must be redis or memory"}
	}

	redisPort, err := envInt("REDIS_PORT", 6379)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	redisSSL, err := envBool("REDIS_SSL", false)
	if err != nil {
		return Config{}, err
	}

	rlRequests, err := envInt("RATE_LIMIT_REQUESTS", 100)
	if err != nil {
		return Config{}, err
	}
	rlWindow, err := envSeconds("RATE_LIMIT_WINDOW_SECONDS", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	rlPolicy, err := envPolicy("RATE_LIMIT_FAILURE_POLICY", FailOpen)
	if err != nil {
		return Config{}, err
	}

	sessionTTL, err := envSeconds("SESSION_CACHE_TTL_SECONDS", 300*time.Second)
	if err != nil {
		return Config{}, err
	}
	sessionPolicy, err := envPolicy("SESSION_FAILURE_POLICY", FailClosed)
	if err != nil {
		return Config{}, err
	}

	upstreamTimeout, err := envSeconds("UPSTREAM_TIMEOUT_SECONDS", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ListenAddr:          net.JoinHostPort(host, strconv.Itoa(port)),
		UserServiceURL:      userURL,
		InventoryServiceURL: inventoryURL,
		LogLevel:            envOr("LOG_LEVEL", "info"),
		JWTSecret:           secret,
		JWTAlgorithm:        alg,
		StoreBackend:        backend,
		Redis: RedisConfig{
			Host:     envOr("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			SSL:      redisSSL,
		},
		RateLimit: RateLimitConfig{
			Requests:      int64(rlRequests),
			Window:        rlWindow,
			FailurePolicy: rlPolicy,
		},
		Session: SessionConfig{
			TTL:           sessionTTL,
			FailurePolicy: sessionPolicy,
		},
		UpstreamTimeout: upstreamTimeout,
	}, nil
}

// envOr falls back only when the variable is unset. An explicitly empty
// value stays empty: set-and-empty and unset are different things.
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &Error{Var: key, Value: v, Reason: "not an integer"}
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &Error{Var: key, Value: v, Reason: "not a boolean"}
	}
	return b, nil
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &Error{Var: key, Value: v, Reason: "not a non-negative integer"}
	}
	return time.Duration(n) * time.Second, nil
}

func envPolicy(key string, fallback FailurePolicy) (FailurePolicy, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	switch FailurePolicy(v) {
	case FailOpen, FailClosed:
		return FailurePolicy(v), nil
	default:
		return "", &Error{Var: key, Value: v, Reason: "must be failopen or failclosed"}
	}
}

func envURL(key, fallback string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		v = fallback
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &Error{Var: key, Value: v, Reason: "not an absolute URL"}
	}
	return v, nil
}
