package config

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse(env.EnvSet{})
	req.NoError(err)

	req.Equal(8080, cfg.Port)
	req.Equal(":8080", cfg.Addr())
	req.Equal("development", cfg.Env)
	req.Equal("graphtalk-data", cfg.BadgerPath)
	req.False(cfg.GraphCheckEnabled())
	req.Equal(DefaultRoom(), cfg.Room())
}

func TestParse_Overrides(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse(env.EnvSet{
		"HOST":                  "127.0.0.1",
		"PORT":                  "9090",
		"ENV":                   "production",
		"MAX_PAGE_SIZE":         "500",
		"ROOM_IDLE_TIMEOUT":     "30s",
		"ECHO_TO_SENDER":        "false",
		"NEO4J_URI":             "bolt://localhost:7687",
		"MAX_SESSIONS_PER_ROOM": "2",
	})
	req.NoError(err)

	req.Equal("127.0.0.1:9090", cfg.Addr())
	req.True(cfg.IsProduction())
	req.True(cfg.GraphCheckEnabled())

	room := cfg.Room()
	req.Equal(500, room.MaxPageSize)
	req.Equal(30*time.Second, room.IdleTimeout)
	req.False(room.EchoToSender)
	req.Equal(2, room.MaxSessions)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]env.EnvSet{
		"page bound below default": {"DEFAULT_PAGE_SIZE": "50", "MAX_PAGE_SIZE": "10"},
		"unknown env":              {"ENV": "staging"},
		"port out of range":        {"PORT": "70000"},
		"label injection":          {"GRAPH_LABEL": "Graph) DETACH DELETE (n"},
		"negative idle timeout":    {"ROOM_IDLE_TIMEOUT": "-1m"},
	}
	for name, es := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(es)
			require.Error(t, err)
		})
	}
}
