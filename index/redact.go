package index

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// safeVars are environment variables that are non-sensitive and useful as context.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"XDG_RUNTIME_DIR": true, "GOPATH": true, "GOROOT": true,
}

// specialParams are shell special parameters that are never redacted.
var specialParams = map[string]bool{
	"?": true, "!": true, "#": true, "@": true, "*": true,
	"-": true, "$": true, "_": true,
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
}

var shellExts = map[string]bool{
	".sh": true, ".bash": true, ".zsh": true, ".ksh": true, ".envrc": true,
}

// IsShellFile reports whether file is edited as shell script.
func IsShellFile(file string) bool {
	base := filepath.Base(file)
	return shellExts[filepath.Ext(base)] || shellExts["."+base] || base == ".bashrc" || base == ".zshrc" || base == ".profile"
}

// Redact scrubs secrets from text before it is stored or sent to an API.
// Shell scripts get variable references and assignment values replaced;
// everything else gets secret-looking assignments and tokens masked.
func Redact(file, text string) string {
	if IsShellFile(file) {
		return RedactShell(text)
	}
	return redactSecrets(text)
}

// RedactShell replaces sensitive environment variable references and
// assignment values in shell source. Safe variables (PATH, HOME, etc.)
// and special shell parameters ($?, $!, etc.) are preserved.
func RedactShell(src string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	prog, err := parser.Parse(strings.NewReader(src), "")
	if err != nil {
		return regexRedact(src)
	}

	syntax.Walk(prog, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !safeVars[n.Param.Value] && !specialParams[n.Param.Value] {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && !safeVars[n.Name.Value] && n.Value != nil {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: "***"}}
			}
		}
		return true
	})

	var buf bytes.Buffer
	printer := syntax.NewPrinter(syntax.Indent(0))
	if err := printer.Print(&buf, prog); err != nil {
		return regexRedact(src)
	}
	return strings.TrimRight(buf.String(), "\n")
}

var (
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)

	// reSecretAssign matches `name = "value"` and `name: value` where name
	// looks like a credential.
	reSecretAssign = regexp.MustCompile(`(?i)\b([A-Za-z0-9_.-]*(?:secret|token|passw(?:or)?d|api[_-]?key|credential)[A-Za-z0-9_.-]*)(\s*[:=]+\s*)("[^"]*"|'[^']*'|` + "`[^`]*`" + `|[^\s,;)]+)`)
	// reToken matches well-known key formats.
	reToken = regexp.MustCompile(`\b(?:sk-[A-Za-z0-9_-]{16,}|gh[pousr]_[A-Za-z0-9]{20,}|AKIA[0-9A-Z]{16}|xox[baprs]-[A-Za-z0-9-]{10,})\b`)
)

// regexRedact is a fallback for shell source that fails AST parsing.
func regexRedact(src string) string {
	// ${VAR} → ${REDACTED}
	src = reBraceVar.ReplaceAllStringFunc(src, func(m string) string {
		name := reBraceVar.FindStringSubmatch(m)[1]
		if safeVars[name] || specialParams[name] {
			return m
		}
		return "${REDACTED}"
	})

	// $VAR → $REDACTED
	src = reSimpleVar.ReplaceAllStringFunc(src, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || safeVars[name] || specialParams[name] {
			return m
		}
		return "$REDACTED"
	})

	// VAR=value → VAR=***
	return reAssign.ReplaceAllStringFunc(src, func(m string) string {
		name := reAssign.FindStringSubmatch(m)[1]
		if safeVars[name] {
			return m
		}
		return name + "=***"
	})
}

func redactSecrets(text string) string {
	text = reSecretAssign.ReplaceAllStringFunc(text, func(m string) string {
		parts := reSecretAssign.FindStringSubmatch(m)
		value := parts[3]
		masked := "***"
		if len(value) >= 2 && strings.ContainsRune("\"'`", rune(value[0])) {
			masked = value[:1] + masked + value[len(value)-1:]
		}
		return parts[1] + parts[2] + masked
	})
	return reToken.ReplaceAllString(text, "***")
}
