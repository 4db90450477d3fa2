package main

import (
	"os"
	"strings"

	"quillborn-cli/internal/cli"

	"github.com/joho/godotenv"
)

func isProjectPath(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), `/\`)
	return strings.HasSuffix(s, ".qb") && len(s) > len(".qb")
}

// rewriteProjectPathArgs makes `quillborn <dir>.qb` open the editor on that project, the way
// double-clicking a project would.
//
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before parsing.
// Persistent flags may come first (`quillborn --pretty ./Book.qb`), so the rewrite looks at the
// first positional token rather than argv[1].
func rewriteProjectPathArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	// Flags we don't recognize are skipped without their value so the path is never consumed.
	valueFlags := map[string]bool{
		"--project": true,
		"--format":  true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--verbose": true,
		"-v":        true,
	}

	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "--project", argv[i], "edit")
		out = append(out, argv[i+1:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isProjectPath(argv[i+1]) {
				out := make([]string, 0, len(argv)+2)
				out = append(out, argv[:i]...)
				out = append(out, "--project", argv[i+1], "edit")
				out = append(out, argv[i+2:]...)
				return out
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		if isProjectPath(a) {
			return rewrite(i)
		}
		return argv
	}
	return argv
}

func main() {
	// A .env next to the binary's working directory may set QUILLBORN_* defaults.
	_ = godotenv.Load()

	os.Args = rewriteProjectPathArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
