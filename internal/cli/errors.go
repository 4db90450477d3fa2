package cli

import "errors"

var (
	errNoProject         = errors.New("no project; run `quillborn init --title ...`, pass --project, or cd into a .qb directory")
	errDoctorIssuesFound = errors.New("doctor found errors")
)

// ExitCode maps a command error to the process exit status: 0 on success, 2 when `doctor --fail`
// found errors, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errDoctorIssuesFound):
		return 2
	default:
		return 1
	}
}
