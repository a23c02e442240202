package server

import (
	"net/url"
	"os"
)

func dbDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getenvDefault("DB_HOST", "127.0.0.1")
	port := getenvDefault("DB_PORT", "5432")
	user := getenvDefault("DB_USER", "claimwatch")
	pass := getenvDefault("DB_PASSWORD", "claimwatch")
	name := getenvDefault("DB_NAME", "claimwatch")
	sslmode := getenvDefault("DB_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// databaseConfigured reports whether any database setting is present in the
// environment. Without one the server runs with inline analysis only.
func databaseConfigured() bool {
	for _, k := range []string{"DATABASE_URL", "DB_HOST", "DB_NAME"} {
		if os.Getenv(k) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
