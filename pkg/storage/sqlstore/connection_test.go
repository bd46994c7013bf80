package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseReplicaURLs tests the ParseReplicaURLs function
func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{
			name:     "single URL",
			input:    "postgres://localhost:5432/db",
			expected: []string{"postgres://localhost:5432/db"},
		},
		{
			name:     "URLs with whitespace and empty entries",
			input:    " postgres://host1:5432/db ,, postgres://host2:5432/db ,",
			expected: []string{"postgres://host1:5432/db", "postgres://host2:5432/db"},
		},
		{name: "only commas and whitespace", input: " , , ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestNewConnectionManager_SQLite(t *testing.T) {
	dsn := SQLiteDSN(filepath.Join(t.TempDir(), "cm.db"))
	cm, err := NewConnectionManager(ConnectionConfig{Driver: "sqlite3", PrimaryURL: dsn}, logrus.New())
	require.NoError(t, err)
	defer cm.Close()

	assert.Equal(t, 1, cm.Primary().Stats().MaxOpenConnections)
	assert.Same(t, cm.Primary(), cm.Replica(), "falls back to primary without replicas")
	require.NoError(t, cm.HealthCheck(context.Background()))
}

func TestNewConnectionManager_InvalidPrimary(t *testing.T) {
	cm, err := NewConnectionManager(ConnectionConfig{Driver: "no-such-driver", PrimaryURL: "x"}, nil)
	assert.Error(t, err)
	assert.Nil(t, cm)
}

// TestConnectionManager_Replica tests replica selection
func TestConnectionManager_Replica(t *testing.T) {
	replica1 := &sql.DB{}
	replica2 := &sql.DB{}
	replica3 := &sql.DB{}
	cm := &ConnectionManager{
		primary:  &sql.DB{},
		replicas: []*sql.DB{replica1, replica2, replica3},
	}

	selections := make(map[*sql.DB]int)
	for i := 0; i < 30; i++ {
		selections[cm.Replica()]++
	}
	assert.Equal(t, 10, selections[replica1])
	assert.Equal(t, 10, selections[replica2])
	assert.Equal(t, 10, selections[replica3])
}

// TestConnectionManager_HealthCheck tests health check functionality
func TestConnectionManager_HealthCheck(t *testing.T) {
	t.Run("healthy primary and replica", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()
		replicaDB, replicaMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer replicaDB.Close()

		primaryMock.ExpectPing()
		replicaMock.ExpectPing()

		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
		assert.NoError(t, cm.HealthCheck(context.Background()))
		assert.NoError(t, primaryMock.ExpectationsWereMet())
		assert.NoError(t, replicaMock.ExpectationsWereMet())
	})

	t.Run("unhealthy primary", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()

		primaryMock.ExpectPing().WillReturnError(errors.New("connection refused"))

		cm := &ConnectionManager{primary: primaryDB}
		err = cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary unhealthy")
	})

	t.Run("all replicas down", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()
		replicaDB, replicaMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer replicaDB.Close()

		primaryMock.ExpectPing()
		replicaMock.ExpectPing().WillReturnError(errors.New("timeout"))

		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
		err = cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all replicas unhealthy")
	})
}

func TestConnectionManager_RemoveUnhealthyReplicas(t *testing.T) {
	goodDB, goodMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer goodDB.Close()
	badDB, badMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	goodMock.ExpectPing()
	badMock.ExpectPing().WillReturnError(errors.New("gone"))
	badMock.ExpectClose()

	cm := &ConnectionManager{primary: &sql.DB{}, replicas: []*sql.DB{goodDB, badDB}}
	assert.Equal(t, 1, cm.RemoveUnhealthyReplicas(context.Background()))
	assert.Equal(t, []*sql.DB{goodDB}, cm.replicas)
}

func TestConnectionManager_Close(t *testing.T) {
	primaryDB, primaryMock, err := sqlmock.New()
	require.NoError(t, err)
	replicaDB, replicaMock, err := sqlmock.New()
	require.NoError(t, err)

	primaryMock.ExpectClose()
	replicaMock.ExpectClose()

	cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
	require.NoError(t, cm.Close())
	assert.Nil(t, cm.replicas)
	assert.NoError(t, primaryMock.ExpectationsWereMet())
	assert.NoError(t, replicaMock.ExpectationsWereMet())
}
