package main_test

import (
	"os"
	"strings"
	"testing"
)

func readDeployFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("%s should exist: %v", name, err)
	}
	return string(data)
}

func TestDockerfileMultiStageBuild(t *testing.T) {
	content := readDeployFile(t, "Dockerfile")

	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}

	// 最終ステージは軽量イメージであること
	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "distroless") && !strings.Contains(lastFrom, "alpine") && !strings.Contains(lastFrom, "scratch") {
		t.Errorf("final stage should use a minimal base image, got: %s", lastFrom)
	}
}

func TestDockerfileBuildsStaticBinary(t *testing.T) {
	content := readDeployFile(t, "Dockerfile")

	if !strings.Contains(content, "CGO_ENABLED=0") {
		t.Error("Dockerfile should build a static binary (CGO_ENABLED=0) for the distroless stage")
	}
	if !strings.Contains(content, "-o blogengine") {
		t.Error("Dockerfile should build a binary named 'blogengine'")
	}
}

func TestDockerfileEntrypointAndHealthcheck(t *testing.T) {
	content := readDeployFile(t, "Dockerfile")

	if !strings.Contains(content, "ENTRYPOINT") {
		t.Error("Dockerfile should set an ENTRYPOINT")
	}
	// distrolessにはシェルがないため、healthcheckサブコマンドをexec形式で使う
	if !strings.Contains(content, `"healthcheck"`) {
		t.Error("Dockerfile HEALTHCHECK should use the 'healthcheck' subcommand")
	}
	if !strings.Contains(content, "nonroot") {
		t.Error("Dockerfile should run as a nonroot user")
	}
}

func TestDockerComposeServices(t *testing.T) {
	content := readDeployFile(t, "docker-compose.yml")

	// 3コンテナ構成: api, worker, db
	for _, svc := range []string{"api:", "worker:", "db:"} {
		if !strings.Contains(content, svc) {
			t.Errorf("docker-compose.yml should contain service %q", svc)
		}
	}
	if !strings.Contains(content, "postgres:") {
		t.Error("docker-compose.yml should use a PostgreSQL image")
	}
}

func TestDockerComposeSubcommands(t *testing.T) {
	content := readDeployFile(t, "docker-compose.yml")

	// apiはserve、workerはworkerサブコマンドで起動すること
	if !strings.Contains(content, `command: ["serve"]`) {
		t.Error("api service should start with the 'serve' subcommand")
	}
	if !strings.Contains(content, `command: ["worker"]`) {
		t.Error("worker service should start with the 'worker' subcommand")
	}
}

func TestDockerComposeDBIsInternal(t *testing.T) {
	content := readDeployFile(t, "docker-compose.yml")

	// DBは内部ネットワークのみに接続し、直接の外部公開を持たないこと
	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network for the database")
	}
	if !strings.Contains(content, "pg_isready") {
		t.Error("db service should define a pg_isready healthcheck")
	}
}

func TestDockerComposeSharedContentVolume(t *testing.T) {
	content := readDeployFile(t, "docker-compose.yml")

	// apiとworkerが生成物ディレクトリを共有すること
	if strings.Count(content, "content:/data") < 2 {
		t.Error("api and worker should both mount the shared content volume at /data")
	}
	if !strings.Contains(content, "CALENDAR_PATH: /data/content_calendar.yaml") {
		t.Error("services should read the content calendar from the shared volume")
	}
}
