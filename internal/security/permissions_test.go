package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateSecureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "var", "lib", "buildgate")

	if err := CreateSecureDir(dir, PermDirectory); err != nil {
		t.Fatalf("CreateSecureDir() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Failed to stat directory: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("Expected a directory")
	}
	if info.Mode().Perm() != PermDirectory {
		t.Errorf("Directory permissions = %04o, want %04o", info.Mode().Perm(), PermDirectory)
	}

	// Calling again on an existing directory succeeds
	if err := CreateSecureDir(dir, PermDirectory); err != nil {
		t.Errorf("CreateSecureDir() on existing dir error = %v", err)
	}
}

func TestOpenSecureAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildgate.log")

	for _, line := range []string{"first\n", "second\n"} {
		file, err := OpenSecureAppend(path, PermLogFile)
		if err != nil {
			t.Fatalf("OpenSecureAppend() error = %v", err)
		}
		if _, err := file.WriteString(line); err != nil {
			t.Fatalf("Failed to write: %v", err)
		}
		file.Close()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "first\nsecond\n" {
		t.Errorf("Expected appended content, got %q", content)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if info.Mode().Perm() != PermLogFile {
		t.Errorf("File permissions = %04o, want %04o", info.Mode().Perm(), PermLogFile)
	}
}

func TestOpenSecureAppend_TightensExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildgate.log")
	if err := os.WriteFile(path, nil, 0666); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatalf("Failed to chmod file: %v", err)
	}

	file, err := OpenSecureAppend(path, PermLogFile)
	if err != nil {
		t.Fatalf("OpenSecureAppend() error = %v", err)
	}
	file.Close()

	if err := ValidateSecurePermissions(path); err != nil {
		t.Errorf("Expected tightened permissions, got %v", err)
	}
}

func TestValidateSecurePermissions(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		perm    os.FileMode
		wantErr bool
	}{
		{"owner only", 0600, false},
		{"group readable", 0640, false},
		{"world readable", 0644, true},
		{"world writable", 0662, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name)
			if err := os.WriteFile(path, []byte("secret: x"), tt.perm); err != nil {
				t.Fatalf("Failed to create file: %v", err)
			}
			if err := os.Chmod(path, tt.perm); err != nil {
				t.Fatalf("Failed to chmod file: %v", err)
			}

			err := ValidateSecurePermissions(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSecurePermissions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSecurePermissions_Missing(t *testing.T) {
	if err := ValidateSecurePermissions(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing file")
	}
}
