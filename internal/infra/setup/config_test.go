package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN("poll", "secret", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "poll:secret@tcp(127.0.0.1:3306)/live_poll?charset=utf8mb4&parseTime=True&loc=UTC", dsn)

	_, err = buildDSN("", "secret", "db", "3306", "x")
	assert.Error(t, err)
	_, err = buildDSN("poll", "", "db", "3306", "x")
	assert.Error(t, err)
}
