package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// source layers the dotenv file, the process environment and explicit overrides in rising
// precedence. Values that fail to parse are collected so Load can report them together.
type source struct {
	v       *viper.Viper
	invalid []string
}

func newSource(o loaderOptions) (*source, error) {
	v := viper.New()
	if o.envFile != "" {
		v.SetConfigFile(o.envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", o.envFile, err)
		}
	}
	if o.useSystemEnv {
		v.AutomaticEnv()
	}
	for key, value := range o.envMap {
		v.Set(key, value)
	}
	return &source{v: v}, nil
}

// values flattens every known key to its effective value, keyed in upper case.
func (s *source) values(withSystemEnv bool) map[string]string {
	keys := make(map[string]struct{})
	if withSystemEnv {
		for _, entry := range os.Environ() {
			if key, _, ok := strings.Cut(entry, "="); ok && key != "" {
				keys[strings.ToUpper(key)] = struct{}{}
			}
		}
	}
	for _, key := range s.v.AllKeys() {
		keys[strings.ToUpper(key)] = struct{}{}
	}
	out := make(map[string]string, len(keys))
	for key := range keys {
		out[key] = s.v.GetString(key)
	}
	return out
}

func (s *source) str(key, fallback string) string {
	if value := strings.TrimSpace(s.v.GetString(key)); value != "" {
		return value
	}
	return fallback
}

func (s *source) lower(key, fallback string) string {
	return strings.ToLower(s.str(key, fallback))
}

func (s *source) duration(key string, fallback time.Duration) time.Duration {
	raw := s.str(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		s.invalid = append(s.invalid, key)
		return fallback
	}
	return d
}

func (s *source) integer(key string, fallback int) int {
	raw := s.str(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.invalid = append(s.invalid, key)
		return fallback
	}
	return n
}

func (s *source) flag(key string, fallback bool) bool {
	raw := s.str(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		s.invalid = append(s.invalid, key)
		return fallback
	}
	return b
}

// list splits a comma separated value, dropping blanks.
func (s *source) list(key string) []string {
	var out []string
	for _, part := range strings.Split(s.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// pairs reads "name=value,name=value" with names lower-cased.
func (s *source) pairs(key string) map[string]string {
	out := make(map[string]string)
	for _, entry := range s.list(key) {
		name, value, ok := strings.Cut(entry, "=")
		name, value = strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}
