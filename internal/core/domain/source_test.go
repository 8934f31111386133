package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceKind_IsValid(t *testing.T) {
	assert.True(t, SourceKindDrive.IsValid())
	assert.True(t, SourceKindWeb.IsValid())
	assert.False(t, SourceKind("ftp").IsValid())
	assert.False(t, SourceKind("").IsValid())
}

func TestCrawlConfig_WithDefaults(t *testing.T) {
	cfg := CrawlConfig{}.WithDefaults()

	assert.Equal(t, DefaultMaxPages, cfg.MaxPages)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, DefaultRateLimitDelay, cfg.RateLimitDelay)
	assert.Equal(t, DefaultFetchTimeout, cfg.Timeout)

	custom := CrawlConfig{MaxPages: 5, MaxFileSize: 10, RateLimitDelay: time.Millisecond, Timeout: time.Second}
	assert.Equal(t, custom, custom.WithDefaults())
}

func TestQuota_Exceeded(t *testing.T) {
	tests := []struct {
		name  string
		quota Quota
		hour  int
		day   int
		want  bool
	}{
		{"unlimited", Quota{}, 10000, 10000, false},
		{"below both", Quota{MaxPagesPerHour: 10, MaxPagesPerDay: 100}, 9, 99, false},
		{"hourly reached", Quota{MaxPagesPerHour: 10, MaxPagesPerDay: 100}, 10, 50, true},
		{"daily reached", Quota{MaxPagesPerHour: 10, MaxPagesPerDay: 100}, 1, 100, true},
		{"only daily configured", Quota{MaxPagesPerDay: 5}, 500, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.quota.Exceeded(tt.hour, tt.day))
		})
	}
}

func TestSource_FolderID(t *testing.T) {
	s := Source{Kind: SourceKindDrive, BaseLocation: "base-folder"}
	assert.Equal(t, "base-folder", s.FolderID())

	s.Settings = DriveSettings{FolderID: "settings-folder"}
	assert.Equal(t, "settings-folder", s.FolderID())

	s.Settings = &DriveSettings{FolderID: "pointer-folder"}
	assert.Equal(t, "pointer-folder", s.FolderID())
}

func TestSource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		wantErr error
	}{
		{
			name:   "valid drive source",
			source: Source{ID: "s1", Kind: SourceKindDrive, Settings: DriveSettings{FolderID: "f"}},
		},
		{
			name:   "valid web source",
			source: Source{ID: "s2", Kind: SourceKindWeb, BaseLocation: "https://example.tn"},
		},
		{
			name:    "missing id",
			source:  Source{Kind: SourceKindDrive, BaseLocation: "f"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown kind",
			source:  Source{ID: "s3", Kind: "ftp"},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "mismatched settings",
			source:  Source{ID: "s4", Kind: SourceKindWeb, Settings: DriveSettings{FolderID: "f"}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "drive without folder",
			source:  Source{ID: "s5", Kind: SourceKindDrive},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSourceSettings_RoundTrip(t *testing.T) {
	original := DriveSettings{FolderID: "root", Recursive: true, FileTypes: []string{"application/pdf", ".docx"}}

	data, err := EncodeSourceSettings(original)
	require.NoError(t, err)

	decoded, err := DecodeSourceSettings(SourceKindDrive, data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	web, err := DecodeSourceSettings(SourceKindWeb, nil)
	require.NoError(t, err)
	assert.Equal(t, WebSettings{}, web)

	_, err = DecodeSourceSettings("ftp", data)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
