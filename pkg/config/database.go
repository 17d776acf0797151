package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DBConfig takes a full DSN, or host/user/name parts from which one is built
// for the selected driver. For sqlite the name is the database file.
type DBConfig struct {
	DSN    string `envconfig:"KARTUPINTAR_DB_DSN"`
	Driver string `envconfig:"KARTUPINTAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KARTUPINTAR_DB_HOST"`
	LegacyPort     int    `envconfig:"KARTUPINTAR_DB_PORT"`
	LegacyUser     string `envconfig:"KARTUPINTAR_DB_USER"`
	LegacyPassword string `envconfig:"KARTUPINTAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"KARTUPINTAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"KARTUPINTAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KARTUPINTAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KARTUPINTAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KARTUPINTAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KARTUPINTAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// NormalizedDriver is the lower-cased driver name, postgres when blank.
func (db DBConfig) NormalizedDriver() string {
	if d := strings.ToLower(strings.TrimSpace(db.Driver)); d != "" {
		return d
	}
	return DBDriverPostgres
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	driver := db.NormalizedDriver()
	if driver == DBDriverSQLite {
		if db.LegacyName == "" {
			return fmt.Errorf("either %s or %s are required", EnvDBDSN, EnvDBName)
		}
		db.DSN = db.LegacyName
		return nil
	}

	if missing := db.missingParts(); len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}
	switch driver {
	case DBDriverPostgres:
		db.DSN = db.postgresDSN()
	case DBDriverMySQL:
		db.DSN = db.mysqlDSN()
	default:
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
	}
	return nil
}

func (db DBConfig) missingParts() []string {
	var missing []string
	for i, v := range []string{db.LegacyHost, db.LegacyUser, db.LegacyName} {
		if v == "" {
			missing = append(missing, legacyDBEnvVars[i])
		}
	}
	return missing
}

func (db DBConfig) hostPort(fallback int) string {
	port := db.LegacyPort
	if port == 0 {
		port = fallback
	}
	return net.JoinHostPort(db.LegacyHost, strconv.Itoa(port))
}

func (db DBConfig) postgresDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   db.hostPort(5432),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	return u.String()
}

// mysqlDSN parses DATETIME into UTC time.Time, matching the gorm clock.
func (db DBConfig) mysqlDSN() string {
	c := mysql.NewConfig()
	c.User = db.LegacyUser
	c.Passwd = db.LegacyPassword
	c.Net = "tcp"
	c.Addr = db.hostPort(3306)
	c.DBName = db.LegacyName
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN()
}
