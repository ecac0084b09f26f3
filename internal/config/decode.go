package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL    string
	In        string
	Out       string
	Errors    string
	LogLevel  string
	PgDSN     string
	CacheSize int

	// Fields maps event field names to converter type names.
	Fields map[string]string
	// EventABI optionally points to a JSON file holding the event description,
	// which skips the contract class lookup.
	EventABI  string
	EventName string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v := viper.New()
	v.SetDefault("in", "./data/events.jsonl")
	v.SetDefault("out", "./data/decoded_events.jsonl")
	v.SetDefault("errors", "./data/decode_errors.jsonl")
	v.SetDefault("cache-size", 128)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		RPCURL:    v.GetString("rpc"),
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		Errors:    v.GetString("errors"),
		LogLevel:  v.GetString("log-level"),
		PgDSN:     v.GetString("pg-dsn"),
		CacheSize: v.GetInt("cache-size"),
		Fields:    getStringMap(v, "fields"),
		EventABI:  v.GetString("event-abi"),
		EventName: v.GetString("event-name"),
	}
	if len(cfg.Fields) == 0 {
		return DecodeConfig{}, fmt.Errorf("at least one field is required")
	}
	if cfg.RPCURL == "" {
		return DecodeConfig{}, fmt.Errorf("rpc url is required")
	}
	if cfg.CacheSize <= 0 {
		return DecodeConfig{}, fmt.Errorf("cache size must be positive, got %d", cfg.CacheSize)
	}
	return cfg, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
