// cliparse/cliparse_test.go
package cliparse

import (
	"log/slog"
	"testing"
)

func TestParseFlags_EnvVars(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("STORE_URL", "postgres://test")
	t.Setenv("MODERATOR_KEY_SALT", "test-salt")
	t.Setenv("SECOND_SLOT", "false")
	t.Setenv("WINNER_BONUS", "3")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.StoreType != "postgres" || cfg.StoreURL != "postgres://test" {
		t.Errorf("unexpected store config %+v", cfg.StoreConfig)
	}
	r := cfg.Round()
	if r.SecondSlot || r.WinnerBonus != 3 {
		t.Errorf("unexpected round config %+v", r)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv("MODERATOR_KEY_SALT", "s")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3318 || cfg.StoreType != "sqlite" || cfg.Namespace != "quizBuzzer" || !cfg.SecondSlot {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if l, _ := cfg.Level(); l != slog.LevelInfo {
		t.Errorf("expected info level, got %v", l)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("NAMESPACE", "fromEnv")

	cfg, err := ParseFlags([]string{"-p", "8080", "-t", "memory", "-ns", "finals", "-moderator-salt", "s1", "-second-slot=false"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.Namespace != "finals" {
		t.Errorf("CLI should override env: expected finals, got %s", cfg.Namespace)
	}
	if cfg.SecondSlot {
		t.Error("expected second slot disabled")
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing salt", nil, nil},
		{"bad port env", map[string]string{"PORT": "abc", "MODERATOR_KEY_SALT": "s"}, nil},
		{"port out of range", map[string]string{"MODERATOR_KEY_SALT": "s"}, []string{"-p", "70000"}},
		{"unknown store", map[string]string{"MODERATOR_KEY_SALT": "s"}, []string{"-t", "etcd"}},
		{"bad namespace", map[string]string{"MODERATOR_KEY_SALT": "s"}, []string{"-ns", "a/b"}},
		{"bad log level", map[string]string{"MODERATOR_KEY_SALT": "s", "LOG_LEVEL": "loud"}, nil},
		{"unknown flag", map[string]string{"MODERATOR_KEY_SALT": "s"}, []string{"-x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MODERATOR_KEY_SALT", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := ParseFlags(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadStoreConfig(t *testing.T) {
	t.Setenv("STORE_TYPE", "redis")
	t.Setenv("STORE_URL", "redis://localhost:6379/0")

	cfg, err := LoadStoreConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreType != "redis" || cfg.Namespace != "quizBuzzer" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
