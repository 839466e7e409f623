package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionIsSemantic(t *testing.T) {
	require.Equal(t, "0.3.0-beta", Version())
	require.Equal(t, "rtc-go/0.3.0-beta", UserAgent())
}

func TestRichVersionIncludesCommit(t *testing.T) {
	old := CommitHash
	t.Cleanup(func() { CommitHash = old })

	CommitHash = " abc123 "
	require.Equal(t, "0.3.0-beta commit=abc123", RichVersion())
}

func TestNormalizeDropsInvalidRunes(t *testing.T) {
	require.Equal(t, "rc.1", normalize("rc_.1!"))
	require.False(t, strings.Contains(normalize("a b"), " "))
}
