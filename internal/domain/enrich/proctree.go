package enrich

import (
	"os"
	"strconv"
	"strings"
)

// ProcfsLookup implements ProcessTree.Lookup by reading /proc/<pid>/stat and
// /proc/<pid>/exe on Linux. It returns ok=false on any platform without a
// /proc filesystem or once a pid has already exited, both of which are
// normal and handled by the enricher leaving ancestry partial.
func ProcfsLookup(pid int) (ppid int, comm, exe string, ok bool) {
	raw, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0, "", "", false
	}
	// Format: "pid (comm) state ppid ...". comm is parenthesized and may
	// itself contain spaces/parens, so split on the last ')'.
	text := string(raw)
	open := strings.IndexByte(text, '(')
	shut := strings.LastIndexByte(text, ')')
	if open < 0 || shut < 0 || shut < open {
		return 0, "", "", false
	}
	comm = text[open+1 : shut]
	rest := strings.Fields(text[shut+1:])
	if len(rest) < 2 {
		return 0, "", "", false
	}
	ppidVal, err := strconv.Atoi(rest[1])
	if err != nil {
		return 0, "", "", false
	}
	exe, _ = os.Readlink("/proc/" + strconv.Itoa(pid) + "/exe")
	return ppidVal, comm, exe, true
}
