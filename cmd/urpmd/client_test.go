package main

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestQueryBaseURL_defaults(t *testing.T) {
	cmd := &cobra.Command{}
	addTargetFlags(cmd)

	got := queryBaseURL(cmd)
	want := "http://127.0.0.1:8091"
	if got != want {
		t.Errorf("queryBaseURL() = %q, want %q", got, want)
	}
}

func TestQueryBaseURL_overridden(t *testing.T) {
	cmd := &cobra.Command{}
	addTargetFlags(cmd)
	cmd.Flags().Set("host", "10.0.0.5")
	cmd.Flags().Set("port", "9000")

	got := queryBaseURL(cmd)
	want := "http://10.0.0.5:9000"
	if got != want {
		t.Errorf("queryBaseURL() = %q, want %q", got, want)
	}
}

func TestParentDir(t *testing.T) {
	cases := map[string]string{
		"/var/run/urpmd.pid": "/var/run",
		"urpmd.pid":          ".",
		"":                   ".",
	}
	for in, want := range cases {
		if got := parentDir(in); got != want {
			t.Errorf("parentDir(%q) = %q, want %q", in, got, want)
		}
	}
}
