package app

import (
	"strings"
	"testing"

	"github.com/hitoshi/storefront/internal/config"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"no args serves", nil, CommandServe},
		{"leading flag serves", []string{"--port", "9090"}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker with extra args", []string{"worker", "--once"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"case insensitive", []string{"Migrate"}, CommandMigrate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) returned error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownIsRejected(t *testing.T) {
	_, err := ParseCommand([]string{"serv"})
	if err == nil {
		t.Fatal("ParseCommand should reject a misspelled command")
	}
	for _, name := range []string{"serve", "worker", "migrate", "healthcheck"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should list %q", err, name)
		}
	}
}

func TestCommand_Check(t *testing.T) {
	pg := &config.Config{StoreDriver: config.StorePostgres, DatabaseURL: "postgres://db/storefront"}
	redis := &config.Config{StoreDriver: config.StoreRedis, RedisURL: "redis://cache:6379/0"}
	memory := &config.Config{StoreDriver: config.StoreMemory}

	tests := []struct {
		name    string
		cmd     Command
		cfg     *config.Config
		wantErr string
	}{
		{"serve on memory", CommandServe, memory, ""},
		{"serve on redis", CommandServe, redis, ""},
		{"worker on postgres", CommandWorker, pg, ""},
		{"worker refuses memory", CommandWorker, memory, "STORE_DRIVER=postgres"},
		{"worker refuses redis", CommandWorker, redis, `got "redis"`},
		{"migrate with database", CommandMigrate, pg, ""},
		{"migrate without database", CommandMigrate, redis, "DATABASE_URL"},
		{"unknown", Command("serv"), pg, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Check(tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Check returned error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Check error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCommand_Standalone(t *testing.T) {
	for _, c := range []Command{CommandServe, CommandWorker, CommandMigrate} {
		if c.Standalone() {
			t.Errorf("%s should load config", c)
		}
	}
	if !CommandHealthcheck.Standalone() {
		t.Error("healthcheck should run without loading config")
	}
}
