package filters

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/sambeau/sage/pkg/sage/object"
)

// Database names the store the /db-* operations query.
type Database struct {
	Driver  string // sqlite, mysql or postgres
	DSN     string
	MaxOpen int
}

var dbHandles = newHandleCache[*sql.DB](
	32,
	30*time.Minute,
	func(db *sql.DB) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	},
	func(db *sql.DB) error { return db.Close() },
)

// CloseDatabases closes every cached database handle.
func CloseDatabases() error {
	return dbHandles.close()
}

func driverName(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "mysql", "mariadb":
		return "mysql", nil
	case "postgres", "postgresql", "pq":
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Open returns a pooled handle for d, reusing a cached one when it is
// still healthy.
func (d *Database) Open(ctx context.Context) (*sql.DB, error) {
	driver, err := driverName(d.Driver)
	if err != nil {
		return nil, err
	}
	key := driver + ":" + d.DSN
	if db, ok := dbHandles.get(key); ok {
		return db, nil
	}

	db, err := sql.Open(driver, d.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if d.MaxOpen > 0 {
		db.SetMaxOpenConns(d.MaxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}
	dbHandles.put(key, db)
	return db, nil
}

func registerDatabase(r *Registry, d *Database) {
	r.Register("db-select", func(ctx context.Context, args []any) (any, error) {
		query, params, err := queryArgs("db-select", args)
		if err != nil {
			return nil, err
		}
		db, err := d.Open(ctx)
		if err != nil {
			return nil, err
		}
		rows, err := db.QueryContext(ctx, query, params...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanRows(rows)
	})

	r.Register("db-scalar", func(ctx context.Context, args []any) (any, error) {
		query, params, err := queryArgs("db-scalar", args)
		if err != nil {
			return nil, err
		}
		db, err := d.Open(ctx)
		if err != nil {
			return nil, err
		}
		var v any
		err = db.QueryRowContext(ctx, query, params...).Scan(&v)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return columnValue(v), nil
	})

	r.Register("db-exec", func(ctx context.Context, args []any) (any, error) {
		query, params, err := queryArgs("db-exec", args)
		if err != nil {
			return nil, err
		}
		db, err := d.Open(ctx)
		if err != nil {
			return nil, err
		}
		res, err := db.ExecContext(ctx, query, params...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		return n, nil
	})
}

// queryArgs takes (sql arg...) or (sql (arg...)).
func queryArgs(name string, args []any) (string, []any, error) {
	if err := wantArgs(name, args, 1, -1); err != nil {
		return "", nil, err
	}
	query, err := stringArg(name, args, 0)
	if err != nil {
		return "", nil, err
	}
	params := args[1:]
	if len(params) == 1 {
		if list, ok := params[0].([]any); ok {
			params = list
		}
	}
	return query, params, nil
}

// scanRows turns rows into a list of mappings whose keys follow the
// column order of the result set.
func scanRows(rows *sql.Rows) (object.Object, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	keys := make([]object.Object, len(cols))
	for i, c := range cols {
		keys[i] = object.InternKeyword(c)
	}

	var out []object.Object
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := object.NewMapping()
		for i, v := range values {
			m.Set(keys[i], fromColumn(v))
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return object.NewList(out...), nil
}

func columnValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func fromColumn(v any) object.Object {
	switch x := columnValue(v).(type) {
	case nil:
		return object.NIL
	case int64:
		return object.NewInteger(x)
	case float64:
		return object.NewFloat(x)
	case string:
		return object.NewString(x)
	case bool:
		return object.Bool(x)
	case time.Time:
		return &object.HostRef{Value: x}
	default:
		return object.NewString(fmt.Sprint(x))
	}
}
