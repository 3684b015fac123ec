package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/todoauth/config"
	"github.com/jonwraymond/todoauth/health"
	"github.com/jonwraymond/todoauth/password"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todoauth.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "todoauth "+Version) {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Go version:") {
		t.Errorf("output missing Go version: %q", out)
	}
}

func TestHashPasswordCmd(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "argument", args: []string{"hash-password", "s3cretpass"}, want: "s3cretpass"},
		{name: "stdin", stdin: "fromstdin1\n", args: []string{"hash-password"}, want: "fromstdin1"},
		{name: "stdin without newline", stdin: "noeol1234", args: []string{"hash-password"}, want: "noeol1234"},
		{name: "empty stdin", args: []string{"hash-password"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			hash := strings.TrimSpace(out)
			if !strings.HasPrefix(hash, "$argon2id$") {
				t.Fatalf("hash = %q, want argon2id encoding", hash)
			}
			ok, err := password.NewHasher(nil).Matches(tt.want, hash)
			if err != nil || !ok {
				t.Errorf("Matches(%q) = %v, %v", tt.want, ok, err)
			}
		})
	}
}

func TestServeCmd_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "static mode without secret",
			body: "auth:\n  jwt:\n    use_static_secret: true\n",
			want: "secret",
		},
		{
			name: "unknown algorithm",
			body: "auth:\n  jwt:\n    signature_algorithm: none\n",
			want: "signature_algorithm",
		},
		{
			name: "redis without address",
			body: "events:\n  driver: redis\n  redis_addr: \"\"\n",
			want: "redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", "serve", "--config", writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("serve should fail")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	path := writeConfig(t, `
database:
  path: ":memory:"
bootstrap:
  admin_username: administrator
  admin_password: adminpass1
  admin_email: admin@example.com
observe:
  logging:
    level: error
`)
	cfg, err := config.Load(context.Background(), config.WithFile(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.OpsAddr = "127.0.0.1:0"
	return cfg
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, loadTestConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(ctx)

	exists, err := a.db.Users().ExistsByUsername(ctx, "administrator")
	if err != nil || !exists {
		t.Fatalf("bootstrap admin exists = %v, %v", exists, err)
	}

	report, err := a.health.Run(ctx, "database", "events", "runtime")
	if err != nil {
		t.Fatalf("health.Run() error = %v", err)
	}
	if report.Status != health.StatusHealthy {
		t.Errorf("health status = %v, want healthy: %+v", report.Status, report.Checks)
	}
}

func TestNewApp_BootstrapIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := loadTestConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "todoauth.db")

	for i := 0; i < 2; i++ {
		a, err := newApp(ctx, cfg)
		if err != nil {
			t.Fatalf("newApp() run %d error = %v", i, err)
		}
		a.close(ctx)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, err := newApp(ctx, loadTestConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}
