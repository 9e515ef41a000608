package app

import (
	"bytes"
	"path/filepath"
	"testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REMOTE_BASE_URL", "http://localhost:9999")
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "orbit_test.db"))
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"migrate"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

// TestRun_MigrateCommand はmigrateコマンドが新規DBにスキーマを適用することを検証する。
func TestRun_MigrateCommand(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("Run(migrate) returned error: %v", err)
	}

	// 2回目の適用もエラーなし（冪等）
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("second Run(migrate) returned error: %v", err)
	}
}

// TestRun_SyncCommand_EmptyStore はdirty行のない新規ストアで
// syncコマンドが成功することを検証する。ネットワーク呼び出しは発生しない。
func TestRun_SyncCommand_EmptyStore(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"sync"}); err != nil {
		t.Fatalf("Run(sync) returned error: %v", err)
	}
}

// TestRun_HealthcheckCommand_NoServer はサーバーが立っていない環境で
// healthcheckコマンドがエラーを返すことを検証する。
func TestRun_HealthcheckCommand_NoServer(t *testing.T) {
	t.Setenv("SERVER_PORT", "1") // 接続できないポート

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err == nil {
		t.Fatal("healthcheck without a running server should return error")
	}
}
