package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootgc/rootgc/pkg/expr"
)

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{
			name:       "valid expression",
			expression: `path.startsWith("/nix/store")`,
		},
		{
			name:       "path helpers",
			expression: `pathBase(path) == "result" && pathExt(gcRoot) == ""`,
		},
		{
			name:       "invalid expression",
			expression: `path.invalidFunction()`,
			wantErr:    true,
		},
		{
			name:       "empty expression",
			expression: "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := expr.Compile(tt.expression)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, p)
			} else {
				require.NoError(t, err)
				require.NotNil(t, p)
				assert.Equal(t, tt.expression, p.Expression)
			}
		})
	}
}

func TestProgram_Match(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		expression string
		path       string
		gcRoot     string
		want       bool
	}{
		"matches target path": {
			expression: `path.contains("/tmp/")`,
			path:       "/tmp/build/result",
			gcRoot:     "/nix/var/nix/gcroots/auto/abc",
			want:       true,
		},
		"matches link path": {
			expression: `pathDir(gcRoot).endsWith("auto")`,
			path:       "/tmp/build/result",
			gcRoot:     "/nix/var/nix/gcroots/auto/abc",
			want:       true,
		},
		"non-match": {
			expression: `pathBase(path) == "result"`,
			path:       "/home/u/out",
			gcRoot:     "/nix/var/nix/gcroots/auto/abc",
			want:       false,
		},
		"non-boolean result is a non-match": {
			expression: `pathBase(path)`,
			path:       "/home/u/result",
			gcRoot:     "/nix/var/nix/gcroots/auto/abc",
			want:       false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := expr.Compile(tc.expression)
			require.NoError(t, err)

			assert.Equal(t, tc.want, p.Match(tc.path, tc.gcRoot))
		})
	}
}
