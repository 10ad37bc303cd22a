package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  key
	}{
		{"ascii", "a", key{code: keyRune, r: 'a'}},
		{"utf8", "é", key{code: keyRune, r: 'é'}},
		{"enter", "\r", key{code: keyEnter}},
		{"tab", "\t", key{code: keyTab}},
		{"ctrl space", "\x00", key{code: keyInvoke}},
		{"backspace", "\x7f", key{code: keyBackspace}},
		{"left", "\x1b[D", key{code: keyLeft}},
		{"right", "\x1b[C", key{code: keyRight}},
		{"app mode right", "\x1bOC", key{code: keyRight}},
		{"delete", "\x1b[3~", key{code: keyDelete}},
		{"home", "\x1b[1~", key{code: keyHome}},
		{"alt f", "\x1bf", key{code: keyAcceptWord}},
		{"lone escape", "\x1b", key{code: keyEsc}},
		{"ctrl u", "\x15", key{code: keyClear}},
		{"other control", "\x07", key{code: keyIgnore}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := readKey(bufio.NewReader(strings.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestReadKeySequence(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("x\x1b[Dy"))
	var got []key
	for range 3 {
		k, err := readKey(in)
		require.NoError(t, err)
		got = append(got, k)
	}
	assert.Equal(t, []key{{code: keyRune, r: 'x'}, {code: keyLeft}, {code: keyRune, r: 'y'}}, got)
}
