package main

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchFlag(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		def     bool
		want    bool
		wantErr bool
	}{
		{name: "unset keeps default true", args: nil, def: true, want: true},
		{name: "unset keeps default false", args: nil, def: false, want: false},
		{name: "bare flag", args: []string{"-fallback"}, def: false, want: true},
		{name: "on", args: []string{"-fallback=on"}, def: false, want: true},
		{name: "yes", args: []string{"-fallback=Yes"}, def: false, want: true},
		{name: "1", args: []string{"-fallback=1"}, def: false, want: true},
		{name: "off overrides default", args: []string{"-fallback=off"}, def: true, want: false},
		{name: "no", args: []string{"-fallback=no"}, def: true, want: false},
		{name: "false", args: []string{"-fallback=false"}, def: true, want: false},
		{name: "unrecognised", args: []string{"-fallback=maybe"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			f := switchVar(fs, "fallback", "")

			err := fs.Parse(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Or(tt.def))
		})
	}
}
