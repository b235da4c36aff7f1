package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestObjectLikeMacroExpansion(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "main.fx", "#define WIDTH 64\nlet x:i64 := WIDTH;\n")

	out, diags := Run(path, nil)
	assert.Empty(t, diags)
	assert.Contains(t, out, "let x:i64 := 64;")
}

func TestFunctionLikeMacroExpansion(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "main.fx", "#define ADD(a, b) a + b\nlet x:i64 := ADD(1, 2);\n")

	out, diags := Run(path, nil)
	assert.Empty(t, diags)
	assert.Contains(t, out, "1 + 2")
}

func TestIfdefBranchSkipsInactiveRegion(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "main.fx", "#define FEATURE\n#ifdef FEATURE\nlet a:i64 := 1;\n#else\nlet a:i64 := 2;\n#endif\n")

	out, diags := Run(path, nil)
	assert.Empty(t, diags)
	assert.Contains(t, out, "let a:i64 := 1;")
	assert.NotContains(t, out, "let a:i64 := 2;")
}

func TestIfConstantExpressionPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "main.fx", "#if 1 + 2 * 3 == 7\nlet ok:i64 := 1;\n#endif\n")

	out, diags := Run(path, nil)
	assert.Empty(t, diags)
	assert.Contains(t, out, "let ok:i64 := 1;")
}

func TestIncludeResolvesRelativeToCurrentFile(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "consts.fx", "#define ANSWER 42\n")
	path := writeTemp(t, dir, "main.fx", "#include \"consts.fx\"\nlet x:i64 := ANSWER;\n")

	out, diags := Run(path, nil)
	assert.Empty(t, diags)
	assert.Contains(t, out, "let x:i64 := 42;")
}

func TestPragmaOnceSuppressesReinclusion(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "once.fx", "#pragma once\n#define SEEN 1\n")
	path := writeTemp(t, dir, "main.fx", "#include \"once.fx\"\n#include \"once.fx\"\nlet x:i64 := SEEN;\n")

	out, diags := Run(path, nil)
	assert.Empty(t, diags)
	assert.Contains(t, out, "let x:i64 := 1;")
}

func TestUnterminatedConditionalIsReported(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "main.fx", "#ifdef NEVER_DEFINED\nlet a:i64 := 1;\n")

	_, diags := Run(path, nil)
	assert.NotEmpty(t, diags)
}

func TestErrorDirectiveIsFatalDiagnostic(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "main.fx", "#error something went wrong\n")

	_, diags := Run(path, nil)
	assert.Len(t, diags, 1)
	assert.Contains(t, diags[0].Error(), "something went wrong")
}
