//go:build integration

package objectstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupMinIO starts a MinIO container and returns the storage config pointing at it
func setupMinIO(t *testing.T) storage.Config {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start MinIO container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate MinIO container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.S3Enabled = true
	cfg.S3Endpoint = "http://" + host + ":" + port.Port()
	cfg.S3AccessKey = "minioadmin"
	cfg.S3SecretKey = "minioadmin"
	cfg.S3Bucket = "matsecom-test"
	cfg.S3Region = "us-east-1"
	cfg.S3UsePathStyle = true
	return cfg
}

func TestArchive_MinIO(t *testing.T) {
	cfg := setupMinIO(t)
	ctx := context.Background()

	archive, err := NewArchive(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, archive.HealthCheck(ctx))

	// A second archive on the same bucket finds it already there.
	_, err = NewArchive(ctx, cfg)
	require.NoError(t, err)

	inv := &model.Invoice{
		ID:           12,
		SubscriberID: 3,
		Timestamp:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DataVolume:   1500,
		CallMinutes:  7,
		Charges:      2495,
		SessionCount: 4,
	}
	require.NoError(t, archive.PutInvoice(ctx, inv))

	got, err := archive.GetInvoice(ctx, 3, 12)
	require.NoError(t, err)
	assert.Equal(t, inv.Charges, got.Charges)
	assert.Equal(t, inv.CallMinutes, got.CallMinutes)
	assert.True(t, inv.Timestamp.Equal(got.Timestamp))

	_, err = archive.GetInvoice(ctx, 3, 13)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
