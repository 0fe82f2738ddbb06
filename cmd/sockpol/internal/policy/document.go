package policy

// PolicyFileRequest is the handshake a Flash or Unity web player sends before
// it may open a socket to the host.
const PolicyFileRequest = "<policy-file-request/>"

var expectedRequest = []byte(PolicyFileRequest)

// Document is the policy payload served to every validated client.
// It is built once and never mutated, so sessions share it without locking.
type Document struct {
	data []byte
}

// NewDocument stores xml verbatim. No well-formedness check is done.
func NewDocument(xml string) *Document {
	return &Document{data: []byte(xml)}
}

// Bytes returns the payload. Callers must not modify the returned slice.
func (d *Document) Bytes() []byte {
	return d.data
}

func (d *Document) Len() int {
	return len(d.data)
}
