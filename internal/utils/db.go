package utils

import (
	"database/sql"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

// PGEnabled：PG_ENABLE=true 时才连接数据库，统计功能可选
func PGEnabled() bool { return os.Getenv("PG_ENABLE") == "true" }

func BuildPostgresDSNFromEnv() string {
	host := EnvString("PG_HOST", "localhost")
	port := EnvString("PG_PORT", "5432")
	user := EnvString("PG_USER", "postgres")
	pass := os.Getenv("PG_PASSWORD")
	db := EnvString("PG_DB", "oqt")
	ssl := EnvString("PG_SSLMODE", "disable")
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	maxOpen := 20
	maxIdle := 10
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			maxOpen = n
		}
	}
	if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			maxIdle = n
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}
