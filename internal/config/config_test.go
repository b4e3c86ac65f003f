package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile — утилита записи временного файла конфигурации.
func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

// chdir — смена текущего рабочего каталога с автоматическим откатом.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// unsetenv убирает переменную на время теста и возвращает её значение после.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	prev, ok := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	if ok {
		t.Cleanup(func() { _ = os.Setenv(key, prev) })
	}
}

// Полный корректный YAML (не зависит от дефолтов).
const sampleYAML = `
env: "prod"
http:
  host: "127.0.0.1"
  port: "8080"
  base_path: "/v1"
grpc:
  host: "127.0.0.1"
  port: "6001"
db:
  url: "mongodb://localhost:27017/content?replicaSet=rs0"
redis:
  url: "redis://localhost:6379/0"
  prefix: "c:"
  ttl: "1m"
limits:
  default: 15
  max: 200
monitor:
  slow_threshold: "250ms"
timeouts:
  service: 3s
auth:
  jwt_secret: "s3cret"
  issuer: "issuer-x"
  token_ttl: "30m"
sentinel:
  username: "ghost"
  email: "ghost@system.com"
hash:
  cost: 4
telemetry:
  jaeger_url: "http://jaeger:14268/api/traces"
  service_name: "content"
`

// Минимально валидный YAML (только обязательные поля).
const minimalYAML = `
db:
  url: "mongodb://localhost:27017/content"
`

const brokenYAML = `
db:
  url: "mongodb://broken"
limits: [default: 10
`

func TestConfig_Addr(t *testing.T) {
	t.Parallel()

	require.Equal(t, "127.0.0.1:50055", GRPCConfig{Host: "127.0.0.1", Port: "50055"}.Addr())
	require.Equal(t, "0.0.0.0:3000", HTTPConfig{Host: "0.0.0.0", Port: "3000"}.Addr())
}

// TestLoad_WithExplicitPath_OK — явный путь имеет высший приоритет.
func TestLoad_WithExplicitPath_OK(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr())
	require.Equal(t, "/v1", cfg.HTTP.BasePath)
	require.Equal(t, "127.0.0.1:6001", cfg.GRPC.Addr())
	require.Equal(t, "mongodb://localhost:27017/content?replicaSet=rs0", cfg.DB.URL)
	require.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	require.Equal(t, "c:", cfg.Redis.Prefix)
	require.Equal(t, time.Minute, cfg.Redis.TTL)
	require.EqualValues(t, 15, cfg.Limits.Default)
	require.EqualValues(t, 200, cfg.Limits.Max)
	require.Equal(t, 250*time.Millisecond, cfg.Monitor.SlowThreshold)
	require.Equal(t, 3*time.Second, cfg.Timeouts.Service)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, "issuer-x", cfg.Auth.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, "ghost", cfg.Sentinel.Username)
	require.Equal(t, 4, cfg.Hash.Cost)
	require.Equal(t, "content", cfg.Telemetry.ServiceName)
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeFile(t, t.TempDir(), "min.yaml", minimalYAML))
	require.NoError(t, err)

	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "/api", cfg.HTTP.BasePath)
	require.Equal(t, "3000", cfg.HTTP.Port)
	require.Empty(t, cfg.Redis.URL)
	require.EqualValues(t, 10, cfg.Limits.Default)
	require.EqualValues(t, 100, cfg.Limits.Max)
	require.Equal(t, 100*time.Millisecond, cfg.Monitor.SlowThreshold)
	require.Equal(t, 5*time.Second, cfg.Timeouts.Service)
	require.Empty(t, cfg.Auth.JWTSecret)
	require.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, "deleted", cfg.Sentinel.Username)
	require.Equal(t, "deleted@system.com", cfg.Sentinel.Email)
	require.Equal(t, 10, cfg.Hash.Cost)
}

func TestLoad_WithExplicitPath_BrokenYAML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFile(t, t.TempDir(), "broken.yaml", brokenYAML))
	require.Error(t, err)
}

func TestLoad_WithCONFIG_PATH_OK(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeFile(t, t.TempDir(), "from_env_path.yaml", minimalYAML))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "mongodb://localhost:27017/content", cfg.DB.URL)
}

func TestLoad_WithLocalYAML_OK(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, ".", "local.yaml", sampleYAML)
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
}

func TestLoad_EnvOnly_OK(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_URL", "mongodb://env/content")
	t.Setenv("ENV", "dev")
	t.Setenv("HTTP_PORT", "7081")
	t.Setenv("DEFAULT_LIMIT", "21")
	t.Setenv("MAX_LIMIT", "333")
	t.Setenv("SLOW_THRESHOLD", "50ms")
	t.Setenv("SERVICE", "7s")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "7081", cfg.HTTP.Port)
	require.Equal(t, "mongodb://env/content", cfg.DB.URL)
	require.EqualValues(t, 21, cfg.Limits.Default)
	require.EqualValues(t, 333, cfg.Limits.Max)
	require.Equal(t, 50*time.Millisecond, cfg.Monitor.SlowThreshold)
	require.Equal(t, 7*time.Second, cfg.Timeouts.Service)
}

// TestLoad_Priority_ExplicitWinsOverEnvAndLocal — явный путь важнее CONFIG_PATH и local.yaml.
func TestLoad_Priority_ExplicitWinsOverEnvAndLocal(t *testing.T) {
	dir := t.TempDir()

	explicit := writeFile(t, dir, "explicit.yaml", `
db: { url: "mongodb://explicit/content" }
limits: { default: 10, max: 100 }
`)
	t.Setenv("CONFIG_PATH", writeFile(t, dir, "env_bad.yaml", brokenYAML))
	writeFile(t, dir, "local.yaml", `
db: { url: "mongodb://local/content" }
`)
	chdir(t, dir)

	cfg, err := Load(explicit)
	require.NoError(t, err)
	require.Equal(t, "mongodb://explicit/content", cfg.DB.URL)
}

// TestLoad_Priority_ENVWinsOverLocal — CONFIG_PATH важнее local.yaml.
func TestLoad_Priority_ENVWinsOverLocal(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, dir, "local.yaml", `
db: { url: "mongodb://local/content" }
`)
	t.Setenv("CONFIG_PATH", writeFile(t, dir, "from_env.yaml", `
env: "dev"
db: { url: "mongodb://env/content" }
`))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "mongodb://env/content", cfg.DB.URL)
}

func TestLoad_EnvOnly_NoConfigInEnv_ReturnsDescriptiveError(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	unsetenv(t, "DATABASE_URL")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "config not found: provide --config, CONFIG_PATH, local.yaml or env vars")
}

func TestLoad_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "limits",
			yaml: "db: { url: \"mongodb://x/content\" }\nlimits: { default: 100, max: 10 }\n",
			want: "limits.default must be <= limits.max",
		},
		{
			name: "hash cost",
			yaml: "db: { url: \"mongodb://x/content\" }\nhash: { cost: 2 }\n",
			want: "hash.cost must be within [4, 31]",
		},
		{
			name: "base path",
			yaml: "db: { url: \"mongodb://x/content\" }\nhttp: { base_path: \"api\" }\n",
			want: "http.base_path must start with /",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeFile(t, t.TempDir(), "bad.yaml", tt.yaml))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		_ = MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
