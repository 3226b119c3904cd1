package db

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraman82351/Task-management/config"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "tasks",
		Password: "p@ss word",
		DBName:   "taskmanager",
		UseSSL:   true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "tasks", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "/taskmanager", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestDSNWithoutSSL(t *testing.T) {
	t.Parallel()

	u, err := url.Parse(DSN(config.DatabaseConfig{Host: "localhost", Port: 5432}))
	require.NoError(t, err)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}
