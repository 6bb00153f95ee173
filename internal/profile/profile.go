package profile

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalid is wrapped by every Validate failure. An invalid profile must
// abort startup.
var ErrInvalid = errors.New("invalid profile")

// Profile is configuration to start the routing engine.
type Profile struct {
	// LLM configuration. OpenAI-compatible providers share one client;
	// anthropic and gemini use their own SDKs.
	LLMProvider     string
	LLMAPIKey       string
	LLMBaseURL      string
	LLMModel        string
	ClassifierModel string // Model for classification calls; defaults to LLMModel

	// Routing configuration
	SpecialistsFile     string
	ClassifyTimeout     time.Duration
	GenerateTimeout     time.Duration
	GenerateConcurrency int
	SessionIdleTimeout  time.Duration
	MaxContextTurns     int
	WeightKeyword       float64
	WeightDomain        float64
	WeightContext       float64
	ContextBonus        float64
	HintFloor           float64
	HintWeight          float64
	ScoreCache          bool // Memoize fallback selections

	// Integrations
	NATSURL        string
	NATSSubject    string
	MetricsEnabled bool

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string // sqlite, postgres or memory
	DSN     string
	Version string
}

// Provider default configurations for LLM.
// Used when MYASSISTANT_LLM_BASE_URL or MYASSISTANT_LLM_MODEL is not set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
	"anthropic": {
		Model: "claude-sonnet-4-20250514",
	},
	"gemini": {
		Model: "gemini-2.0-flash",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured. Ollama needs none.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("ignoring malformed integer env", "key", key, "value", value)
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("ignoring malformed float env", "key", key, "value", value)
	}
	return defaultValue
}

// getEnvOrDefaultDuration accepts Go durations ("1500ms", "2s") or plain
// integers, read as seconds.
func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("ignoring malformed duration env", "key", key, "value", value)
	return defaultValue
}

// FromEnv loads configuration from environment variables. Values already set
// on p (for example from command-line flags) are overwritten only when the
// corresponding variable is present.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("MYASSISTANT_LLM_PROVIDER", orString(p.LLMProvider, "openai"))
	p.LLMAPIKey = getEnvOrDefault("MYASSISTANT_LLM_API_KEY", p.LLMAPIKey)
	p.LLMBaseURL = getEnvOrDefault("MYASSISTANT_LLM_BASE_URL", p.LLMBaseURL)
	p.LLMModel = getEnvOrDefault("MYASSISTANT_LLM_MODEL", p.LLMModel)
	p.ClassifierModel = getEnvOrDefault("MYASSISTANT_CLASSIFIER_MODEL", p.ClassifierModel)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	defaults := llmProviderDefaults[p.LLMProvider]
	if p.LLMBaseURL == "" {
		p.LLMBaseURL = defaults.BaseURL
	}
	if p.LLMModel == "" {
		p.LLMModel = defaults.Model
	}
	if p.ClassifierModel == "" {
		p.ClassifierModel = p.LLMModel
	}

	p.SpecialistsFile = getEnvOrDefault("MYASSISTANT_SPECIALISTS", p.SpecialistsFile)
	p.ClassifyTimeout = getEnvOrDefaultDuration("MYASSISTANT_CLASSIFY_TIMEOUT", orDuration(p.ClassifyTimeout, 2*time.Second))
	p.GenerateTimeout = getEnvOrDefaultDuration("MYASSISTANT_GENERATE_TIMEOUT", orDuration(p.GenerateTimeout, 20*time.Second))
	p.GenerateConcurrency = getEnvOrDefaultInt("MYASSISTANT_GENERATE_CONCURRENCY", orInt(p.GenerateConcurrency, 8))
	p.SessionIdleTimeout = getEnvOrDefaultDuration("MYASSISTANT_SESSION_IDLE_TIMEOUT", orDuration(p.SessionIdleTimeout, 30*time.Minute))
	p.MaxContextTurns = getEnvOrDefaultInt("MYASSISTANT_MAX_CONTEXT_TURNS", orInt(p.MaxContextTurns, 5))
	p.WeightKeyword = getEnvOrDefaultFloat("MYASSISTANT_WEIGHT_KEYWORD", orFloat(p.WeightKeyword, 0.5))
	p.WeightDomain = getEnvOrDefaultFloat("MYASSISTANT_WEIGHT_DOMAIN", orFloat(p.WeightDomain, 0.3))
	p.WeightContext = getEnvOrDefaultFloat("MYASSISTANT_WEIGHT_CONTEXT", orFloat(p.WeightContext, 0.2))
	p.ContextBonus = getEnvOrDefaultFloat("MYASSISTANT_CONTEXT_BONUS", orFloat(p.ContextBonus, 0.5))
	p.HintFloor = getEnvOrDefaultFloat("MYASSISTANT_HINT_FLOOR", orFloat(p.HintFloor, 0.3))
	p.HintWeight = getEnvOrDefaultFloat("MYASSISTANT_HINT_WEIGHT", orFloat(p.HintWeight, 0.2))

	p.NATSURL = getEnvOrDefault("MYASSISTANT_NATS_URL", p.NATSURL)
	p.NATSSubject = getEnvOrDefault("MYASSISTANT_NATS_SUBJECT", orString(p.NATSSubject, "myassistant.routing"))
	if v := os.Getenv("MYASSISTANT_METRICS"); v != "" {
		p.MetricsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MYASSISTANT_SCORE_CACHE"); v != "" {
		p.ScoreCache = v == "true" || v == "1"
	}
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and rejects values the engine cannot run
// with. Errors wrap ErrInvalid.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	var problems []string
	if p.ClassifyTimeout <= 0 {
		problems = append(problems, "classify timeout must be positive")
	}
	if p.GenerateTimeout <= 0 {
		problems = append(problems, "generate timeout must be positive")
	}
	if p.SessionIdleTimeout <= 0 {
		problems = append(problems, "session idle timeout must be positive")
	}
	if p.MaxContextTurns < 0 {
		problems = append(problems, "max context turns must not be negative")
	}
	for name, w := range map[string]float64{
		"keyword weight": p.WeightKeyword,
		"domain weight":  p.WeightDomain,
		"context weight": p.WeightContext,
		"context bonus":  p.ContextBonus,
		"hint floor":     p.HintFloor,
		"hint weight":    p.HintWeight,
	} {
		if w < 0 || w > 1 || math.IsNaN(w) {
			problems = append(problems, fmt.Sprintf("%s %v outside [0,1]", name, w))
		}
	}
	if sum := p.WeightKeyword + p.WeightDomain + p.WeightContext; math.Abs(sum-1) > 1e-6 {
		problems = append(problems, fmt.Sprintf("scoring weights sum to %v, want 1.0", sum))
	}

	switch p.Driver {
	case "memory":
	case "postgres":
		if p.DSN == "" {
			problems = append(problems, "postgres driver requires a dsn")
		}
	case "sqlite":
		if p.Mode == "prod" && p.Data == "" {
			if runtime.GOOS == "windows" {
				p.Data = filepath.Join(os.Getenv("ProgramData"), "myassistant")
			} else {
				p.Data = "/var/opt/myassistant"
			}
		}
		if p.Data == "" {
			p.Data = "."
		}
		if p.DSN == "" {
			if err := os.MkdirAll(p.Data, 0o770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return errors.Wrap(err, "create data directory")
			}
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				return err
			}
			p.Data = dataDir
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("myassistant_%s.db", p.Mode))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown driver %q", p.Driver))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.Wrapf(ErrInvalid, "%s", strings.Join(problems, "; "))
	}
	return nil
}
