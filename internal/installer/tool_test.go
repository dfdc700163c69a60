package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubExecutor records invocations and optionally creates the flatten output.
type stubExecutor struct {
	err       error
	writeFile string
	contents  []byte
	calls     [][]string
}

func (s *stubExecutor) Run(_ context.Context, binary string, args ...string) (string, error) {
	s.calls = append(s.calls, append([]string{binary}, args...))

	if s.err != nil {
		return "", s.err
	}

	if s.writeFile != "" {
		if err := os.WriteFile(s.writeFile, s.contents, 0o644); err != nil {
			return "", err
		}
	}

	return "", nil
}

// TestExpand verifies argument wiring and the destination pre-check.
func TestExpand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "expanded")
	stub := new(stubExecutor)

	tool := New("", WithExecutor(stub))

	require.NoError(t, tool.Expand(context.Background(), "bundle.pkg", dest))
	require.Equal(t,
		[]string{DefaultBinary, "--expand", "bundle.pkg", dest},
		stub.calls[0])

	// Existing destination is rejected before the tool runs.
	require.NoError(t, os.MkdirAll(dest, 0o755))

	err := tool.Expand(context.Background(), "bundle.pkg", dest)
	require.ErrorIs(t, err, ErrDestinationExists)
	require.Len(t, stub.calls, 1)
}

// TestFlatten verifies the post-condition check on the produced artifact.
func TestFlatten(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	output := filepath.Join(dir, "out.pkg")

	// Tool succeeds and produces a non-empty artifact.
	stub := &stubExecutor{
		writeFile: output,
		contents:  []byte("pkg"),
	}
	tool := New("pkgutil", WithExecutor(stub))

	require.NoError(t, tool.Flatten(context.Background(), "expanded", output))

	// Tool "succeeds" but produces nothing: still an error.
	missing := filepath.Join(dir, "never-written.pkg")
	tool = New("pkgutil", WithExecutor(new(stubExecutor)))

	err := tool.Flatten(context.Background(), "expanded", missing)
	require.ErrorIs(t, err, ErrMissingOutput)

	// Empty artifact counts as missing.
	empty := filepath.Join(dir, "empty.pkg")
	tool = New("pkgutil", WithExecutor(&stubExecutor{writeFile: empty}))

	err = tool.Flatten(context.Background(), "expanded", empty)
	require.ErrorIs(t, err, ErrMissingOutput)
}
