package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	name        string
	placeholder func(n int) string
	noLimit     string
	maxParams   int
}

var (
	// Postgres is used with the pgx database/sql driver.
	Postgres = Dialect{
		name:        "postgres",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		noLimit:     "ALL",
		maxParams:   65535,
	}
	// SQLite is used with the modernc.org/sqlite driver.
	SQLite = Dialect{
		name:        "sqlite",
		placeholder: func(int) string { return "?" },
		noLimit:     "-1",
		maxParams:   32766,
	}
)

func (d Dialect) String() string { return d.name }

// MaxParams is the number of bind parameters one statement may carry.
func (d Dialect) MaxParams() int { return d.maxParams }

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
