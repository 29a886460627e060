// Package configuration loads the INI-style settings file shared by the
// server, the terminal UI and the logger.
package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LocalOverride is read after the main file when present.
const LocalOverride = "settings.local.cfg"

// Config holds section -> key -> value.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// sectionOrder fixes the layout of generated files.
var sectionOrder = []string{"Server", "Calculator", "Database", "JWT", "Admin", "Session", "Network", "TLS", "Debug"}

// Initialize loads path (creating it with defaults if missing) as the global
// configuration and applies settings.local.cfg on top.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = Load(configPath)
		if err != nil {
			return
		}
		if _, statErr := os.Stat(LocalOverride); statErr == nil {
			// ignore a broken override; the base file stays in effect
			_ = globalConfig.merge(LocalOverride)
		}
	})
	return err
}

// Load reads a configuration file. A missing file is created with defaults.
func Load(filePath string) (*Config, error) {
	c := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.setDefaults()
		if err := c.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return c, nil
	}
	if err := c.merge(filePath); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse reads settings from r without touching the file system.
func Parse(r io.Reader) (*Config, error) {
	c := &Config{settings: make(map[string]map[string]string)}
	if err := c.read(r); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) merge(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()
	return c.read(file)
}

func (c *Config) read(r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scanner := bufio.NewScanner(r)
	section := ""
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if c.settings[section] == nil {
				c.settings[section] = make(map[string]string)
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("line %d: expected key=value, got %q", lineNo, line)
		}
		if section == "" {
			return fmt.Errorf("line %d: key %q outside of a section", lineNo, strings.TrimSpace(key))
		}
		c.settings[section][strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return scanner.Err()
}

func (c *Config) setDefaults() {
	c.settings["Server"] = map[string]string{
		"port":           "8080",
		"tick_interval":  "50ms",
		"steps_per_tick": "1",
	}
	c.settings["Calculator"] = map[string]string{
		"keymap_file":     "",
		"default_program": "KEYDEMO",
	}
	c.settings["Database"] = map[string]string{
		"path":         "programs.db",
		"catalog_file": "",
	}
	c.settings["JWT"] = map[string]string{
		"secret_key":             "",
		"token_expiration_hours": "24",
	}
	c.settings["Admin"] = map[string]string{
		"password_hash": "",
	}
	c.settings["Session"] = map[string]string{
		"max_sessions":      "100",
		"max_inactive_time": "30m",
		"cleanup_interval":  "5m",
	}
	c.settings["Network"] = map[string]string{
		"write_wait_timeout":              "10s",
		"pong_timeout":                    "90s",
		"max_message_size_kb":             "64",
		"send_buffer":                     "64",
		"allowed_origins":                 "",
		"max_session_requests_per_minute": "10",
		"max_loads_per_minute":            "30",
	}
	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "certs",
		"cert_file":            "certs/server.crt",
		"key_file":             "certs/server.key",
		"https_port":           "8443",
		"force_https_redirect": "false",
	}
	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "logs/retrocalc.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		"log_interpreter":      "false",
		"log_calculator":       "false",
		"log_websocket":        "true",
		"log_session":          "true",
		"log_auth":             "true",
		"log_database":         "true",
		"log_programs":         "true",
		"log_config":           "true",
		"log_tui":              "false",
		"log_general":          "true",
	}
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.filePath == "" {
		return fmt.Errorf("configuration has no backing file")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, "; retrocalc configuration")
	fmt.Fprintln(w, "; generated defaults, edit as needed")
	fmt.Fprintln(w)

	written := make(map[string]bool)
	for _, name := range sectionOrder {
		if section, ok := c.settings[name]; ok {
			writeSection(w, name, section)
			written[name] = true
		}
	}
	for name, section := range c.settings {
		if !written[name] {
			writeSection(w, name, section)
		}
	}
	return w.Flush()
}

func writeSection(w io.Writer, name string, section map[string]string) {
	fmt.Fprintf(w, "[%s]\n", name)
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", k, section[k])
	}
	fmt.Fprintln(w)
}

func (c *Config) lookup(section, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.settings[section]; ok {
		v, ok := s[key]
		return v, ok
	}
	return "", false
}

// String returns the value or defaultValue if unset.
func (c *Config) String(section, key, defaultValue string) string {
	if v, ok := c.lookup(section, key); ok {
		return v
	}
	return defaultValue
}

// Int returns the value parsed as int or defaultValue.
func (c *Config) Int(section, key string, defaultValue int) int {
	if v, ok := c.lookup(section, key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// Float returns the value parsed as float64 or defaultValue.
func (c *Config) Float(section, key string, defaultValue float64) float64 {
	if v, ok := c.lookup(section, key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// Bool returns the value parsed as bool or defaultValue.
func (c *Config) Bool(section, key string, defaultValue bool) bool {
	if v, ok := c.lookup(section, key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// Duration accepts Go durations ("50ms") or plain seconds ("90").
func (c *Config) Duration(section, key string, defaultValue time.Duration) time.Duration {
	v, ok := c.lookup(section, key)
	if !ok {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// Section returns a copy of one section.
func (c *Config) Section(name string) map[string]string {
	result := make(map[string]string)
	if c == nil {
		return result
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.settings[name] {
		result[k] = v
	}
	return result
}

// Set stores a value in memory.
func (c *Config) Set(section, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings[section] == nil {
		c.settings[section] = make(map[string]string)
	}
	c.settings[section][key] = value
}

// Package-level accessors read the global configuration. Before Initialize
// they return the defaults.

func GetString(section, key, defaultValue string) string {
	return globalConfig.String(section, key, defaultValue)
}

func GetInt(section, key string, defaultValue int) int {
	return globalConfig.Int(section, key, defaultValue)
}

func GetFloat(section, key string, defaultValue float64) float64 {
	return globalConfig.Float(section, key, defaultValue)
}

func GetBool(section, key string, defaultValue bool) bool {
	return globalConfig.Bool(section, key, defaultValue)
}

func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	return globalConfig.Duration(section, key, defaultValue)
}

func GetSection(name string) map[string]string {
	return globalConfig.Section(name)
}

// SetString changes a global setting in memory.
func SetString(section, key, value string) {
	if globalConfig != nil {
		globalConfig.Set(section, key, value)
	}
}

// Save persists the global configuration.
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}
	return globalConfig.Save()
}
