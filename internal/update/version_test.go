package update

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple version", input: "1.0.2", want: "1.0.2"},
		{name: "version with v prefix", input: "v1.0.2", want: "1.0.2"},
		{name: "two segments", input: "1.2", want: "1.2.0"},
		{name: "version with prerelease", input: "2.0.0-rc.1", want: "2.0.0-rc.1"},
		{name: "surrounding whitespace", input: " 1.0.0\r", want: "1.0.0"},
		{name: "invalid format", input: "invalid", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseVersion() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got.String() != tt.want {
				t.Errorf("ParseVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name    string
		v1      string
		v2      string
		want    int
		wantErr bool
	}{
		{name: "patch greater", v1: "1.0.2", v2: "1.0.1", want: 1},
		{name: "patch less", v1: "1.0.1", v2: "1.0.2", want: -1},
		{name: "equal", v1: "1.0.1", v2: "1.0.1", want: 0},
		{name: "equal with prefix", v1: "v1.0.1", v2: "1.0.1", want: 0},
		{name: "numeric not lexical", v1: "1.10.0", v2: "1.9.0", want: 1},
		{name: "two segment equals three", v1: "1.2", v2: "1.2.0", want: 0},
		{name: "stable beats prerelease", v1: "2.0.0", v2: "2.0.0-beta.1", want: 1},
		{name: "prerelease ordering", v1: "2.0.0-beta.2", v2: "2.0.0-beta.10", want: -1},
		{name: "invalid v1", v1: "x", v2: "1.0.0", wantErr: true},
		{name: "invalid v2", v1: "1.0.0", v2: "y", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareVersions(tt.v1, tt.v2)
			if (err != nil) != tt.wantErr {
				t.Errorf("CompareVersions() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("CompareVersions(%s, %s) = %v, want %v", tt.v1, tt.v2, got, tt.want)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		remote, current string
		want            bool
	}{
		{"1.0.2", "1.0.1", true},
		{"1.0.1", "1.0.1", false},
		{"1.0.0", "1.0.1", false},
		{"2.0.0", "1.99.99", true},
	}

	for _, tt := range tests {
		got, err := IsNewer(tt.remote, tt.current)
		if err != nil {
			t.Fatalf("IsNewer() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("IsNewer(%s, %s) = %v, want %v", tt.remote, tt.current, got, tt.want)
		}
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"v1.0.0", "1.0.0"},
		{"1.0.0", "1.0.0"},
		{" v2.1 ", "2.1"},
	}

	for _, tt := range tests {
		if got := NormalizeVersion(tt.input); got != tt.want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
