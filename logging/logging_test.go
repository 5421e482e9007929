package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		appEnv    string
		debug     bool
		wantDebug bool
	}{
		{name: "dev", appEnv: "dev"},
		{name: "dev debug", appEnv: "dev", debug: true, wantDebug: true},
		{name: "prod", appEnv: "prod"},
		{name: "prod debug", appEnv: "prod", debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.appEnv, tt.debug)
			require.NoError(t, err)

			assert.Equal(t, tt.wantDebug, logger.Core().Enabled(zapcore.DebugLevel))
			assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		})
	}
}
