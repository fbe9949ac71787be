package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appdedupe/appdedupe/internal/config"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 30, 0, 0, time.UTC)
	require.Equal(t, "uploads/2024/03/07/run1-apps.csv", ObjectKey("run1", "apps.csv", at))
	require.Equal(t, "uploads/2024/03/07/run1-my_apps_.csv", ObjectKey("run1", "../dir/my apps!.csv", at))
	require.Equal(t, "uploads/2024/03/07/run1-upload.csv", ObjectKey("run1", "", at))
}

func TestNewMinIOStorage_RequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), config.MinIOConfig{})
	require.Error(t, err)
}
