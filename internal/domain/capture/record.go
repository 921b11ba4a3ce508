// Package capture defines the probe interface's wire contract: the framed
// records the probe layer delivers to the Reassembler. The probe mechanism
// itself is an external collaborator and is not implemented here.
package capture

// Kind names the raw record's origin; the Reassembler only interprets
// ssl_write/ssl_read, everything else passes straight to enrichment.
type Kind string

const (
	KindSSLWrite       Kind = "ssl_write"
	KindSSLRead        Kind = "ssl_read"
	KindProcessExec    Kind = "process_exec"
	KindProcessExit    Kind = "process_exit"
	KindFileOpen       Kind = "file_open"
	KindFileWrite      Kind = "file_write"
	KindNetworkConnect Kind = "network_connect"
)

// Metadata carries the probe-attached context around a raw record. Fields
// are populated as available; the probe is responsible for tagging
// direction and ownership, never the core.
type Metadata struct {
	Comm           string
	Exe            string
	UID            int
	PPID           int
	FD             *int
	Path           string
	RemoteHost     string
	RemotePort     int
}

// Record is one raw capture record as produced by the probe layer and
// consumed by the Reassembler. It owns no persistence beyond the current
// event: the Reassembler copies out whatever it needs into its own state.
type Record struct {
	TimestampMonoNS uint64
	Kind            Kind
	PID             int
	TID             *int
	Payload         []byte
	Meta            Metadata
}
