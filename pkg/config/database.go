// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"net/url"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig configures the SQL database used by the sql checkpoint
// backend.
//
// Example:
//
//	database:
//	  driver: postgres
//	  host: localhost
//	  database: steadfast
//	  username: ${DB_USER}
//	  password: ${DB_PASSWORD}
type DatabaseConfig struct {
	// Driver is postgres, mysql or sqlite.
	Driver string `yaml:"driver" json:"driver" jsonschema:"title=Database Type,enum=postgres,enum=mysql,enum=sqlite,enum=sqlite3,default=sqlite"`

	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Not required for SQLite"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Not required for SQLite"`

	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database" json:"database" jsonschema:"title=Database"`

	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// SSLMode for PostgreSQL connections.
	// Default: disable
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"minimum=1,default=10"`
	MaxIdle  int `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"minimum=1,default=2"`
}

// SetDefaults applies default values to the database config.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 2
	}
	if c.Port == 0 {
		switch c.Dialect() {
		case DriverPostgres:
			c.Port = 5432
		case DriverMySQL:
			c.Port = 3306
		}
	}
	if c.Dialect() == DriverPostgres && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Dialect() {
	case DriverPostgres, DriverMySQL:
		if c.Host == "" {
			return fmt.Errorf("host is required for %s", c.Driver)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.MaxConns < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("max_conns and max_idle must be non-negative")
	}
	return nil
}

// DSN returns the connection string for sql.Open.
func (c *DatabaseConfig) DSN() string {
	switch c.Dialect() {
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.Database,
		}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		if c.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
		}
		return u.String()
	case DriverMySQL:
		creds := ""
		if c.Username != "" {
			creds = c.Username + ":" + c.Password + "@"
		}
		return fmt.Sprintf("%stcp(%s:%d)/%s?parseTime=true", creds, c.Host, c.Port, c.Database)
	case DriverSQLite:
		return c.Database
	default:
		return ""
	}
}

// DriverName returns the database/sql driver name.
func (c *DatabaseConfig) DriverName() string {
	if c.Dialect() == DriverSQLite {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect returns the SQL dialect, folding "sqlite3" into "sqlite".
func (c *DatabaseConfig) Dialect() string {
	if c.Driver == "sqlite3" {
		return DriverSQLite
	}
	return c.Driver
}
