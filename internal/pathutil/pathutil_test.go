package pathutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gingapard/rensen/internal/pathutil"
)

func TestRebase(t *testing.T) {
	testCases := []struct {
		name      string
		path      string
		oldPrefix string
		newPrefix string
		want      string
	}{
		{
			name:      "simple nested file",
			path:      "/backups/edge/2024-06-01/data/b/c.txt",
			oldPrefix: "/backups/edge/2024-06-01/data",
			newPrefix: "/srv/data",
			want:      "/srv/data/b/c.txt",
		},
		{
			name:      "file directly under prefix",
			path:      "/backups/edge/2024-06-01/data/a.txt",
			oldPrefix: "/backups/edge/2024-06-01/data",
			newPrefix: "/srv/data",
			want:      "/srv/data/a.txt",
		},
		{
			name:      "prefix equals path",
			path:      "/backups/edge/2024-06-01/data",
			oldPrefix: "/backups/edge/2024-06-01/data",
			newPrefix: "/srv/data",
			want:      "/srv/data",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := pathutil.Rebase(tc.path, tc.oldPrefix, tc.newPrefix)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFileStem(t *testing.T) {
	require.Equal(t, "data", pathutil.FileStem("/srv/data"))
	require.Equal(t, "record", pathutil.FileStem("/records/record.json"))
	require.Equal(t, "2024-06-01-00-00-00Z", pathutil.FileStem("2024-06-01-00-00-00Z.json"))
}

func TestStripDoubleExtension(t *testing.T) {
	require.Equal(t, "/backups/edge/2024-06-01", pathutil.StripDoubleExtension("/backups/edge/2024-06-01.tar.gz"))
	require.Equal(t, "/backups/edge/2024-06-01", pathutil.StripDoubleExtension("/backups/edge/2024-06-01"))
}
