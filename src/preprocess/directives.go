// Copyright (c) 2024 The FCx Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package preprocess

import (
	"os"
	"path/filepath"
	"strings"
)

// handleInclude resolves both quoted and angle-bracket include forms (spec
// §4.2: quoted forms resolve relative to the current file first, angle-
// bracket forms search the configured include paths) and recurses into
// processFile for the resolved path.
func (p *Preprocessor) handleInclude(file string, line int, arg string, out *strings.Builder) {
	arg = strings.TrimSpace(arg)
	if len(arg) < 2 {
		p.errorf(file, line, "malformed #include directive: %q", arg)
		return
	}
	quoted := arg[0] == '"' && arg[len(arg)-1] == '"'
	angled := arg[0] == '<' && arg[len(arg)-1] == '>'
	if !quoted && !angled {
		p.errorf(file, line, "malformed #include directive: %q", arg)
		return
	}
	name := arg[1 : len(arg)-1]

	if quoted {
		candidate := filepath.Join(filepath.Dir(file), name)
		if fileExists(candidate) {
			p.processFile(candidate, out)
			return
		}
	}
	for _, dir := range p.IncludePaths {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			p.processFile(candidate, out)
			return
		}
	}
	if quoted && fileExists(name) {
		p.processFile(name, out)
		return
	}
	p.errorf(file, line, "include file not found: %s", name)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// handleDefine parses both object-like (`#define NAME body`) and
// function-like (`#define NAME(a, b, ...) body`) macros (spec §4.2).
func (p *Preprocessor) handleDefine(file string, line int, arg string) {
	arg = strings.TrimLeft(arg, " \t")
	i := 0
	for i < len(arg) && isIdentByte(arg[i]) {
		i++
	}
	if i == 0 {
		p.errorf(file, line, "malformed #define: missing macro name")
		return
	}
	name := arg[:i]
	rest := arg[i:]

	m := &Macro{Name: name}
	if strings.HasPrefix(rest, "(") {
		close := strings.Index(rest, ")")
		if close < 0 {
			p.errorf(file, line, "unterminated macro parameter list for %s", name)
			return
		}
		paramList := rest[1:close]
		rest = rest[close+1:]
		m.Params = []string{}
		for _, param := range strings.Split(paramList, ",") {
			param = strings.TrimSpace(param)
			if param == "" {
				continue
			}
			if param == "..." {
				m.Variadic = true
				continue
			}
			m.Params = append(m.Params, param)
		}
	}
	m.Body = strings.TrimSpace(rest)
	p.macros[name] = m
}

// expandMacros performs spec §4.2's repeated text substitution with a
// visited-set to block self-reference, skipping string/character literal
// regions so their contents never get macro-substituted.
func (p *Preprocessor) expandMacros(file string, line int, text string, visited map[string]bool) string {
	if visited == nil {
		visited = make(map[string]bool)
	}
	var out strings.Builder
	i := 0
	for i < len(text) {
		c := text[i]
		if c == '"' || c == '\'' {
			end := scanLiteral(text, i)
			out.WriteString(text[i:end])
			i = end
			continue
		}
		if isIdentStart(c) {
			j := i
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			name := text[i:j]
			if m, ok := p.macros[name]; ok && !visited[name] {
				consumed, expansion := p.expandOne(file, line, m, text, j, visited)
				out.WriteString(expansion)
				i = consumed
				continue
			}
			out.WriteString(name)
			i = j
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

// expandOne expands a single macro invocation starting at the name found in
// text[start_of_call:nameEnd]; it returns the index in text just past the
// consumed invocation plus the (recursively re-scanned) expansion text.
func (p *Preprocessor) expandOne(file string, line int, m *Macro, text string, nameEnd int, visited map[string]bool) (int, string) {
	nextVisited := make(map[string]bool, len(visited)+1)
	for k := range visited {
		nextVisited[k] = true
	}
	nextVisited[m.Name] = true

	if m.Params == nil {
		return nameEnd, p.expandMacros(file, line, m.Body, nextVisited)
	}

	// Function-like: gather comma-separated arguments respecting
	// parenthesis nesting (spec §4.2).
	j := nameEnd
	for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
		j++
	}
	if j >= len(text) || text[j] != '(' {
		// Bare reference to a function-like macro name with no call: left
		// untouched, matching the teacher's conservative text-substitution
		// stance on ambiguous forms.
		return nameEnd, m.Name
	}
	depth := 0
	argStart := j + 1
	var args []string
	k := j
	for ; k < len(text); k++ {
		switch text[k] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, text[argStart:k])
				k++
				goto done
			}
		case ',':
			if depth == 1 {
				args = append(args, text[argStart:k])
				argStart = k + 1
			}
		}
	}
done:
	body := m.Body
	for idx, param := range m.Params {
		var val string
		if idx < len(args) {
			val = strings.TrimSpace(args[idx])
		}
		body = substituteParam(body, param, val)
	}
	if m.Variadic && len(args) > len(m.Params) {
		var rest []string
		for _, a := range args[len(m.Params):] {
			rest = append(rest, strings.TrimSpace(a))
		}
		body = substituteParam(body, "__VA_ARGS__", strings.Join(rest, ", "))
	}
	return k, p.expandMacros(file, line, body, nextVisited)
}

// substituteParam replaces whole-word occurrences of param in body with
// value; no stringification or token-pasting, per spec §4.2.
func substituteParam(body, param, value string) string {
	var out strings.Builder
	i := 0
	for i < len(body) {
		if isIdentStart(body[i]) && (i == 0 || !isIdentByte(body[i-1])) && strings.HasPrefix(body[i:], param) {
			end := i + len(param)
			boundaryOK := end == len(body) || !isIdentByte(body[end])
			if boundaryOK {
				out.WriteString(value)
				i = end
				continue
			}
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String()
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// scanLiteral skips over a quoted string/char literal starting at i,
// honoring backslash escapes, and returns the index just past its closing
// quote (or len(text) if unterminated).
func scanLiteral(text string, i int) int {
	quote := text[i]
	j := i + 1
	for j < len(text) {
		if text[j] == '\\' && j+1 < len(text) {
			j += 2
			continue
		}
		if text[j] == quote {
			return j + 1
		}
		j++
	}
	return j
}
