package storagefactory

import (
	"context"
	"testing"

	"fable/internal/config"
)

func TestNewStorage(t *testing.T) {
	tmpDir := t.TempDir()
	baseURL := "http://localhost:8080/static"

	tests := []struct {
		name     string
		cfg      *config.StorageConfig
		wantErr  bool
		wantType string
	}{
		{
			name: "valid local storage config",
			cfg: &config.StorageConfig{
				Type: "local",
				Local: &config.LocalConfig{
					BasePath: tmpDir,
					BaseURL:  baseURL,
				},
			},
			wantErr:  false,
			wantType: "local",
		},
		{
			name: "empty type falls back to local",
			cfg: &config.StorageConfig{
				Type: "",
				Local: &config.LocalConfig{
					BasePath: tmpDir,
					BaseURL:  baseURL,
				},
			},
			wantErr:  false,
			wantType: "local",
		},
		{
			name: "oss without config",
			cfg: &config.StorageConfig{
				Type: "oss",
				OSS:  nil,
			},
			wantErr: true,
		},
		{
			name: "unsupported storage type",
			cfg: &config.StorageConfig{
				Type: "s3",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := NewStorage(ctx, tt.cfg)

			if tt.wantErr {
				if err == nil {
					t.Errorf("NewStorage() expected error, got nil")
				}
				if store != nil {
					t.Errorf("NewStorage() expected nil storage, got %v", store)
				}
				return
			}

			if err != nil {
				t.Errorf("NewStorage() unexpected error: %v", err)
				return
			}

			if store.GetStorageType() != tt.wantType {
				t.Errorf("GetStorageType() = %v, want %v", store.GetStorageType(), tt.wantType)
			}
		})
	}
}
