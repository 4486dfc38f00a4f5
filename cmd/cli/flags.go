package main

import (
	"flag"
	"fmt"

	"github.com/dvloznov/cost-dashboard/internal/ingest"
)

// switchFlag is a boolean flag that accepts yes/no, on/off, 1/0 and
// true/false. Left unset it defers to a configured default.
type switchFlag struct {
	value ingest.Bool
}

var _ flag.Value = (*switchFlag)(nil)

// switchVar registers a switchFlag on fs.
func switchVar(fs *flag.FlagSet, name, usage string) *switchFlag {
	f := &switchFlag{}
	fs.Var(f, name, usage)
	return f
}

func (f *switchFlag) String() string {
	if f == nil || !f.value.IsSet() {
		return ""
	}
	return fmt.Sprint(f.value.True())
}

func (f *switchFlag) Set(s string) error {
	v := ingest.ParseBool(s)
	if !v.IsSet() {
		return fmt.Errorf("invalid boolean %q", s)
	}
	f.value = v
	return nil
}

// IsBoolFlag lets the flag be given without a value.
func (f *switchFlag) IsBoolFlag() bool { return true }

// Or returns the flag's value, or def when it was not given.
func (f *switchFlag) Or(def bool) bool {
	if f.value.IsSet() {
		return f.value.True()
	}
	return def
}
