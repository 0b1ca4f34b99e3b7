package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-a", "localhost"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "flag joined with equals",
			args:         []string{"--config=conf.json", "-d", "dsn"},
			allowedFlags: []string{"--config"},
			want:         []string{"--config=conf.json"},
		},
		{
			name:         "nothing allowed",
			args:         []string{"-x", "1", "-y=2"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag followed by another flag keeps no value",
			args:         []string{"-c", "-d", "dsn"},
			allowedFlags: []string{"-c", "-d"},
			want:         []string{"-c", "-d", "dsn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			assert.Equal(t, tt.want, got)
		})
	}
}
