package diskimage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubExecutor records invocations and replays canned output.
type stubExecutor struct {
	output string
	err    error
	calls  [][]string
}

func (s *stubExecutor) Run(_ context.Context, binary string, args ...string) (string, error) {
	s.calls = append(s.calls, append([]string{binary}, args...))
	return s.output, s.err
}

// TestParseAttachOutput covers the mount-point discovery cases.
func TestParseAttachOutput(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		output string
		want   string
	}{
		"plain": {
			output: "/dev/disk4\tGUID_partition_scheme\t\n/dev/disk4s2\tApple_HFS\t/Volumes/Installer\n",
			want:   "/Volumes/Installer",
		},
		"volume name with spaces": {
			output: "/dev/disk5s1\tApple_APFS\t/Volumes/Vendor Installer 12\n",
			want:   "/Volumes/Vendor Installer 12",
		},
		"last volume wins": {
			output: "/dev/disk4s1\tApple_HFS\t/Volumes/First\n/dev/disk4s2\tApple_HFS\t/Volumes/Second\n",
			want:   "/Volumes/Second",
		},
		"no volume line": {
			output: "/dev/disk4\tGUID_partition_scheme\t\n",
			want:   "",
		},
		"empty output": {
			output: "",
			want:   "",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, ParseAttachOutput(tc.output))
		})
	}
}

// TestAttach verifies argument wiring and mount-point extraction.
func TestAttach(t *testing.T) {
	t.Parallel()

	stub := &stubExecutor{
		output: "/dev/disk9s1\tApple_HFS\t/Volumes/Installer\n",
	}

	m := New("", WithExecutor(stub))

	mountPoint, err := m.Attach(context.Background(), "installer.dmg")
	require.NoError(t, err)
	require.Equal(t, "/Volumes/Installer", mountPoint)
	require.Equal(t,
		[]string{DefaultBinary, "attach", "-nobrowse", "-readonly", "installer.dmg"},
		stub.calls[0])
}

// TestAttachNoMountPoint ensures a successful attach without a volume path is an error.
func TestAttachNoMountPoint(t *testing.T) {
	t.Parallel()

	stub := &stubExecutor{
		output: "/dev/disk9\tGUID_partition_scheme\t\n",
	}

	m := New("hdiutil", WithExecutor(stub))

	_, err := m.Attach(context.Background(), "installer.dmg")
	require.ErrorIs(t, err, ErrNoMountPoint)
}

// TestDetach verifies errors from the tool are wrapped and surfaced.
func TestDetach(t *testing.T) {
	t.Parallel()

	stub := &stubExecutor{
		err: errors.New("resource busy"),
	}

	m := New("hdiutil", WithExecutor(stub))

	err := m.Detach(context.Background(), "/Volumes/Installer")
	require.Error(t, err)
	require.Contains(t, err.Error(), "/Volumes/Installer")
}
