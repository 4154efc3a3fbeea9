package nrepl

import (
	"fmt"

	"github.com/zeebo/bencode"
)

// Response is one message from the server. An operation produces a stream of
// these; which fields are populated depends on the op and the message's role
// in the stream. Unknown keys are ignored.
type Response struct {
	ID         string                        `bencode:"id"`
	Session    string                        `bencode:"session"`
	NS         string                        `bencode:"ns"`
	Value      string                        `bencode:"value"`
	Out        string                        `bencode:"out"`
	Err        string                        `bencode:"err"`
	Ex         string                        `bencode:"ex"`
	RootEx     string                        `bencode:"root-ex"`
	Status     []string                      `bencode:"status"`
	NewSession string                        `bencode:"new-session"`
	Sessions   []string                      `bencode:"sessions"`
	Ops        map[string]bencode.RawMessage `bencode:"ops"`
	Versions   map[string]VersionInfo        `bencode:"versions"`
}

// VersionInfo is one entry in a describe response's versions dict.
type VersionInfo struct {
	Major         int64  `bencode:"major"`
	Minor         int64  `bencode:"minor"`
	Incremental   int64  `bencode:"incremental"`
	VersionString string `bencode:"version-string"`
}

// String renders the version the way the server would print it.
func (v VersionInfo) String() string {
	if v.VersionString != "" {
		return v.VersionString
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Incremental)
}

// HasStatus reports whether s appears in the message's status list.
func (r *Response) HasStatus(s string) bool {
	for _, st := range r.Status {
		if st == s {
			return true
		}
	}
	return false
}

// Done reports whether this message terminates its operation's stream.
func (r *Response) Done() bool {
	return r.HasStatus("done")
}
