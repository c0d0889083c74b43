package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(&config.WebhooksConfig{
		Listen: "127.0.0.1:8081",
		Endpoints: []config.WebhookEndpoint{
			{Path: "/hooks/deploy", Command: "row/update", Target: "r1", Secret: "s", SignatureHeader: "X-Sig", MaxBodySize: "64KB"},
			{Path: "/hooks/focus", Command: "cell/focus", Secret: "s", SignatureHeader: "X-Sig"},
		},
	})
	require.NoError(t, err)
	require.Len(t, cfg.Endpoints, 2)

	assert.Equal(t, command.KindRow, cfg.Endpoints[0].Kind)
	assert.Equal(t, command.Update, cfg.Endpoints[0].Name)
	assert.Equal(t, int64(64<<10), cfg.Endpoints[0].MaxBodySize)
	assert.Equal(t, command.KindCell, cfg.Endpoints[1].Kind)
	assert.Equal(t, int64(DefaultMaxBodySize), cfg.Endpoints[1].MaxBodySize)
}

func TestFromConfigErrors(t *testing.T) {
	_, err := FromConfig(nil)
	assert.Error(t, err)

	_, err = FromConfig(&config.WebhooksConfig{Endpoints: []config.WebhookEndpoint{
		{Path: "/h", Command: "space/paint", Secret: "s"},
	}})
	assert.ErrorContains(t, err, "unknown space command")

	_, err = FromConfig(&config.WebhooksConfig{Endpoints: []config.WebhookEndpoint{
		{Path: "/h", Command: "row/update"},
	}})
	assert.ErrorContains(t, err, "no secret")

	_, err = FromConfig(&config.WebhooksConfig{Endpoints: []config.WebhookEndpoint{
		{Path: "/h", Command: "row/update", Secret: "s", MaxBodySize: "lots"},
	}})
	assert.ErrorContains(t, err, "max_body_size")
}

func TestParseMaxBodySize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: DefaultMaxBodySize},
		{in: "2048", want: 2048},
		{in: "4kb", want: 4096},
		{in: "1MB", want: 1 << 20},
		{in: "0", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1GB", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseMaxBodySize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
