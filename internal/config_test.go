package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestImagesConfig_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ImagesConfig
		wantErr bool
	}{
		{"empty driver defaults to fs", ImagesConfig{BaseURL: "/uploads", FS: ImagesFSConfig{Root: "./u"}}, false},
		{"fs without root", ImagesConfig{Driver: "fs", BaseURL: "/uploads"}, true},
		{"s3 with bucket", ImagesConfig{Driver: "s3", BaseURL: "/uploads", S3: ImagesS3Config{Bucket: "b"}}, false},
		{"s3 without bucket", ImagesConfig{Driver: "s3", BaseURL: "/uploads"}, true},
		{"memory", ImagesConfig{Driver: "memory", BaseURL: "/uploads"}, false},
		{"unknown driver", ImagesConfig{Driver: "ftp", BaseURL: "/uploads"}, true},
		{"missing base url", ImagesConfig{Driver: "memory"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestImagesConfig_Blob(t *testing.T) {
	cfg := ImagesConfig{Driver: "s3", S3: ImagesS3Config{Bucket: "b", Endpoint: "http://minio:9000", PathStyle: true}}
	bc := cfg.Blob()
	if bc.Driver != "s3" || bc.S3.Bucket != "b" || !bc.S3.PathStyle || bc.S3.Endpoint != "http://minio:9000" {
		t.Errorf("blob config = %+v", bc)
	}
}

func TestArchiveConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig().Archive
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default archive config: %v", err)
	}

	cfg.Deny = []string{"[unclosed"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid deny pattern")
	}

	cfg = NewDefaultConfig().Archive
	cfg.MaxBytes = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for tiny max_bytes")
	}
}

func TestMetricsConfig_PathRequiredWhenEnabled(t *testing.T) {
	if err := (&MetricsConfig{Enabled: false}).Validate(); err != nil {
		t.Errorf("disabled metrics: %v", err)
	}
	if err := (&MetricsConfig{Enabled: true}).Validate(); err == nil {
		t.Error("expected error for enabled metrics without path")
	}
}

func TestFullConfig_DataPathRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Data.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty data path")
	}
}
