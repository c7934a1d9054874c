package testutil

import (
	"context"
	"testing"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertBuildError requires err to be a *sdkerrors.BuildError whose message
// mentions every entry of expected.
func AssertBuildError(t testing.TB, err error, expected []string) {
	t.Helper()
	var buildErr *sdkerrors.BuildError
	require.ErrorAs(t, err, &buildErr)
	for _, want := range expected {
		assert.ErrorContains(t, buildErr, want)
	}
}

// TableTest is one builder case run by RunTableTests.
type TableTest struct {
	Name        string
	BuildFunc   func(ctx context.Context) (any, error)
	WantErr     bool
	ErrContains string
	Validate    func(t *testing.T, v any)
}

// RunTableTests runs every case as a subtest with its own NewTestContext.
func RunTableTests(t *testing.T, tests []TableTest) {
	t.Helper()
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := tc.BuildFunc(NewTestContext(t))
			if tc.WantErr {
				require.Error(t, err)
				if tc.ErrContains != "" {
					assert.ErrorContains(t, err, tc.ErrContains)
				}
				return
			}
			require.NoError(t, err)
			if tc.Validate != nil {
				tc.Validate(t, got)
			}
		})
	}
}
