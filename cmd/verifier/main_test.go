package main

import (
	"reflect"
	"testing"

	"ocr-verifier/internal/cli"
)

func TestRewriteDirectRegionLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"verifier"},
			want: []string{"verifier"},
		},
		{
			name: "direct region id first token",
			in:   []string{"verifier", "page01_3"},
			want: []string{"verifier", "regions", "show", "page01_3"},
		},
		{
			name: "image name with underscores",
			in:   []string{"verifier", "my_scan_2023_3"},
			want: []string{"verifier", "regions", "show", "my_scan_2023_3"},
		},
		{
			name: "direct region id after value flag",
			in:   []string{"verifier", "--url", "http://127.0.0.1:5000", "page01_3"},
			want: []string{"verifier", "--url", "http://127.0.0.1:5000", "regions", "show", "page01_3"},
		},
		{
			name: "direct region id after equals flag",
			in:   []string{"verifier", "--dir=./tmp-state", "page01_3"},
			want: []string{"verifier", "--dir=./tmp-state", "regions", "show", "page01_3"},
		},
		{
			name: "direct region id after bool flag",
			in:   []string{"verifier", "--pretty", "page01_3"},
			want: []string{"verifier", "--pretty", "regions", "show", "page01_3"},
		},
		{
			name: "direct region id after double dash",
			in:   []string{"verifier", "--dir", "./tmp-state", "--", "page01_3"},
			want: []string{"verifier", "--dir", "./tmp-state", "regions", "show", "--", "page01_3"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"verifier", "regions", "save", "page01_3"},
			want: []string{"verifier", "regions", "save", "page01_3"},
		},
		{
			name: "subcommand with dash not rewritten",
			in:   []string{"verifier", "batch", "save-all"},
			want: []string{"verifier", "batch", "save-all"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"verifier", "wat"},
			want: []string{"verifier", "wat"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectRegionLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectRegionLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}

func TestRewriteDirectRegionLookupArgs_DoubleDashResolvesShow(t *testing.T) {
	t.Parallel()

	argv := rewriteDirectRegionLookupArgs([]string{"verifier", "--", "page01_3"})
	cmd, rest, err := cli.NewRootCmd().Find(argv[1:])
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if cmd.CommandPath() != "verifier regions show" {
		t.Fatalf("resolved %q (rest %v), want verifier regions show", cmd.CommandPath(), rest)
	}
}
