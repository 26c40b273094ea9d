package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
		if l.TooLong {
			out[i] = "<too long>"
		}
	}
	return out
}

func TestLineBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		chunks  []string
		want    []string
		pending int
	}{
		{"crlf", []string{"auth bob secret\r\n"}, []string{"auth bob secret"}, 0},
		{"bare lf", []string{"categories\n"}, []string{"categories"}, 0},
		{"split across writes", []string{"auth bob", " secret\r\n"}, []string{"auth bob secret"}, 0},
		{"split inside crlf", []string{"mystats\r", "\n"}, []string{"mystats"}, 0},
		{"several in one write", []string{"a\r\nb\nc\r\n"}, []string{"a", "b", "c"}, 0},
		{"partial tail kept", []string{"a\nbc"}, []string{"a"}, 2},
		{"empty line", []string{"\r\n"}, []string{""}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewLineBuffer(0)
			var got []Line
			for _, c := range tt.chunks {
				got = append(got, b.Feed([]byte(c))...)
			}
			require.Equal(t, tt.want, texts(got))
			require.Equal(t, tt.pending, b.Pending())
		})
	}
}

func TestLineBufferTooLong(t *testing.T) {
	t.Parallel()

	t.Run("complete long line", func(t *testing.T) {
		b := NewLineBuffer(8)
		got := b.Feed([]byte("0123456789\nok\n"))
		require.Equal(t, []string{"<too long>", "ok"}, texts(got))
	})

	t.Run("long partial is discarded until newline", func(t *testing.T) {
		b := NewLineBuffer(8)
		require.Empty(t, b.Feed([]byte(strings.Repeat("x", 20))))
		require.Zero(t, b.Pending())
		require.Empty(t, b.Feed([]byte(strings.Repeat("y", 20))))

		got := b.Feed([]byte("zz\r\nnext\r\n"))
		require.Equal(t, []string{"<too long>", "next"}, texts(got))
	})

	t.Run("reset clears state", func(t *testing.T) {
		b := NewLineBuffer(8)
		b.Feed([]byte(strings.Repeat("x", 20)))
		b.Reset()
		require.Equal(t, []string{"fine"}, texts(b.Feed([]byte("fine\n"))))
	})
}

func TestSlots(t *testing.T) {
	t.Parallel()

	s := NewSlots(2)
	require.True(t, s.TryAcquire())
	require.True(t, s.TryAcquire())
	require.False(t, s.TryAcquire())
	require.Equal(t, 2, s.InUse())

	s.Release()
	require.True(t, s.TryAcquire())

	s.Release()
	s.Release()
	s.Release()
	require.Zero(t, s.InUse())
}
