/*
SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	if configTemplate, err = template.New("configFileTemplate").Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the root, config, and data directories if they don't exist.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{rootDir, filepath.Join(rootDir, defaultConfigDir), filepath.Join(rootDir, defaultDataDir)} {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return fmt.Errorf("could not create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteConfigFile renders config using the template and writes it to path.
func WriteConfigFile(path string, config *Config) error {
	var buffer bytes.Buffer
	if err := configTemplate.Execute(&buffer, config); err != nil {
		return err
	}
	return os.WriteFile(path, buffer.Bytes(), 0600)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.auctiond" by default, but could be changed via $AUCTIOND_HOME env variable
# or --home cmd flag.

# Output level for logging: "debug", "info" or "error"
log_level = "{{ .LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .LogFormat }}"

# TCP address the HTTP API listens on
listen_addr = "{{ .ListenAddr }}"

# Database backend: memdb | goleveldb
db_backend = "{{ .DBBackend }}"

# Database directory
db_dir = "{{ js .DBPath }}"

# Account that may cancel any auction and receives the token supply
organizer = "{{ .Organizer }}"

# Account holding listed assets and spending buyer allowances
escrow_account = "{{ .EscrowAccount }}"

# Path to the YAML file with the initial balances and assets
genesis_file = "{{ js .Genesis }}"

# Origins allowed to make cross-domain requests, "*" allows any origin
cors_allowed_origins = [{{ range .CORSAllowedOrigins }}{{ printf "%q, " . }}{{end}}]

# Prometheus namespace of the exported metrics
metrics_namespace = "{{ .MetricsNamespace }}"

# Time a websocket subscriber has to accept a receipt
ws_write_timeout = "{{ .WSWriteTimeout }}"
`
