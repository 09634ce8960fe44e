package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShell_TrimsStdout(t *testing.T) {
	sh := NewShell(ShellOptions{})
	out, err := sh.Exec(context.Background(), "printf '  available=1 \\n\\n'")
	require.NoError(t, err)
	require.Equal(t, "available=1", out)
}

func TestShell_NonZeroExit(t *testing.T) {
	sh := NewShell(ShellOptions{})
	_, err := sh.Exec(context.Background(), "echo boom >&2; exit 3")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoResult))
	require.Contains(t, err.Error(), "exit 3")
	require.Contains(t, err.Error(), "boom")
}

func TestShell_Timeout(t *testing.T) {
	sh := NewShell(ShellOptions{Timeout: 50 * time.Millisecond})
	_, err := sh.Exec(context.Background(), "sleep 2")
	require.ErrorIs(t, err, ErrNoResult)
	require.Contains(t, err.Error(), "timed out")
}

func TestShell_Prefix(t *testing.T) {
	sh := NewShell(ShellOptions{Prefix: "sh -c"})
	out, err := sh.Exec(context.Background(), "echo wrapped")
	require.NoError(t, err)
	require.Equal(t, "wrapped", out)

	out, err = sh.Exec(context.Background(), `echo "it's" "quoted"`)
	require.NoError(t, err)
	require.Equal(t, "it's quoted", out)
}

func TestCommand(t *testing.T) {
	require.Equal(t, "sh /data/adb/zram.sh get_current", Command("/data/adb/zram.sh", "get_current"))
	require.Equal(t,
		`sh /m/memory.sh save "dirty_ratio=20" "dirty_bytes=0"`,
		Command("/m/memory.sh", "save", "dirty_ratio=20", "dirty_bytes=0"))
	require.Equal(t, `"a b"`, Quote("a b"))
}

func TestFake(t *testing.T) {
	f := NewFake().On("a", "1").Fail("b")

	out, err := f.Exec(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "1", out)

	_, err = f.Exec(context.Background(), "b")
	require.ErrorIs(t, err, ErrNoResult)

	_, err = f.Exec(context.Background(), "c")
	require.ErrorIs(t, err, ErrNoResult)

	f.Handler = func(ctx context.Context, command string) (string, error) { return "h:" + command, nil }
	out, err = f.Exec(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, "h:c", out)

	require.Equal(t, []string{"a", "b", "c", "c"}, f.Calls())
	require.True(t, f.Called("b"))
	require.False(t, f.Called("z"))
}

func TestShell_ConcurrentIdenticalCommandsShareRun(t *testing.T) {
	dir := t.TempDir()
	sh := NewShell(ShellOptions{})
	cmd := "echo x >> " + dir + "/count; sleep 0.2; wc -l < " + dir + "/count"

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := sh.Exec(context.Background(), cmd)
			if err == nil && out != "" {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(4), ok.Load())

	out, err := sh.Exec(context.Background(), "wc -l < "+dir+"/count")
	require.NoError(t, err)
	require.NotEqual(t, "4", out)
}
