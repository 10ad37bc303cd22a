package main

import (
	"bufio"
	"unicode/utf8"
)

type keyCode int

const (
	keyRune keyCode = iota
	keyEnter
	keyBackspace
	keyDelete
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyTab
	keyEsc
	keyAcceptWord // Alt-f
	keyInvoke     // Ctrl-Space
	keyClear      // Ctrl-U
	keyInterrupt  // Ctrl-C
	keyEOF        // Ctrl-D
	keyIgnore
)

type key struct {
	code keyCode
	r    rune
}

// readKey decodes one key press from raw terminal input.
func readKey(in *bufio.Reader) (key, error) {
	b, err := in.ReadByte()
	if err != nil {
		return key{}, err
	}

	switch b {
	case 0:
		return key{code: keyInvoke}, nil
	case 1: // Ctrl-A
		return key{code: keyHome}, nil
	case 3:
		return key{code: keyInterrupt}, nil
	case 4:
		return key{code: keyEOF}, nil
	case 5: // Ctrl-E
		return key{code: keyEnd}, nil
	case 9:
		return key{code: keyTab}, nil
	case 13, 10:
		return key{code: keyEnter}, nil
	case 21:
		return key{code: keyClear}, nil
	case 127, 8:
		return key{code: keyBackspace}, nil
	case 27:
		return readEscape(in)
	}

	if b < 32 {
		return key{code: keyIgnore}, nil
	}
	if b < utf8.RuneSelf {
		return key{code: keyRune, r: rune(b)}, nil
	}
	if err := in.UnreadByte(); err != nil {
		return key{}, err
	}
	r, _, err := in.ReadRune()
	if err != nil {
		return key{}, err
	}
	return key{code: keyRune, r: r}, nil
}

// readEscape decodes what follows ESC. A lone ESC is whatever arrives with
// nothing buffered behind it.
func readEscape(in *bufio.Reader) (key, error) {
	if in.Buffered() == 0 {
		return key{code: keyEsc}, nil
	}
	b, err := in.ReadByte()
	if err != nil {
		return key{}, err
	}
	switch b {
	case 'f':
		return key{code: keyAcceptWord}, nil
	case '[', 'O':
	default:
		return key{code: keyIgnore}, nil
	}

	b, err = in.ReadByte()
	if err != nil {
		return key{}, err
	}
	switch b {
	case 'D':
		return key{code: keyLeft}, nil
	case 'C':
		return key{code: keyRight}, nil
	case 'H':
		return key{code: keyHome}, nil
	case 'F':
		return key{code: keyEnd}, nil
	case '1', '3', '4':
		// \x1b[1~ Home, \x1b[3~ Delete, \x1b[4~ End
		if _, err := in.ReadByte(); err != nil {
			return key{}, err
		}
		return key{code: map[byte]keyCode{'1': keyHome, '3': keyDelete, '4': keyEnd}[b]}, nil
	}
	return key{code: keyIgnore}, nil
}
