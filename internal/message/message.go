package message

import "fmt"

// Version tags the HTTP protocol version a message was received or will be
// sent over.
type Version string

const (
	HTTP10       Version = "HTTP/1.0"
	HTTP11       Version = "HTTP/1.1"
	HTTP11Client Version = "HTTP/1.1-Client"
	HTTP20       Version = "HTTP/2.0"
)

// Kind distinguishes a Request from a Response within the Request/Response
// back-reference, avoiding reciprocal owning pointers (§9 "back-references
// without cycles").
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
)

// Base is the abstract message shared by Request and Response: version,
// chunked-transfer flag, headers, pairing and caller-attached metadata.
type Base struct {
	Version  Version
	Chunked  bool
	Headers  *Headers
	locked   bool
	other    *Base
	kind     Kind
	attach   map[string]any
	streamID uint32
}

// NewBase constructs an empty Base of the given kind.
func NewBase(kind Kind, version Version) *Base {
	return &Base{Version: version, Headers: NewHeaders(), kind: kind}
}

// Kind reports whether this Base backs a Request or a Response.
func (b *Base) Kind() Kind { return b.kind }

// Lock freezes the message and its headers. One-way and idempotent.
func (b *Base) Lock() {
	if b.locked {
		return
	}
	b.locked = true
	b.Headers.Lock()
}

// Locked reports whether Lock has been called.
func (b *Base) Locked() bool { return b.locked }

func (b *Base) checkLocked() error {
	if b.locked {
		return ErrLocked
	}
	return nil
}

// Pair links this message to its counterpart (request<->response). The
// back-reference is non-owning: neither side is reference-counted into a
// cycle, it is simply overwritten on re-pairing.
func (b *Base) Pair(other *Base) { b.other = other }

// Other returns the paired message, or nil if unset.
func (b *Base) Other() *Base { return b.other }

// StreamID returns the owning HTTP/2 stream id, or 0 for HTTP/1 messages.
func (b *Base) StreamID() uint32 { return b.streamID }

// SetStreamID records the owning HTTP/2 stream id.
func (b *Base) SetStreamID(id uint32) { b.streamID = id }

// Attachment returns caller metadata stored under key. Attachments bypass
// the lock flag (§4.B-C invariant: "mutators check the lock flag;
// attachments do not").
func (b *Base) Attachment(key string) (any, bool) {
	v, ok := b.attach[key]
	return v, ok
}

// SetAttachment stores caller metadata under key, exempt from locking.
func (b *Base) SetAttachment(key string, value any) {
	if b.attach == nil {
		b.attach = make(map[string]any)
	}
	b.attach[key] = value
}

// Request is an HTTP request message.
type Request struct {
	*Base
	Method    string
	Scheme    string
	Authority string // may be empty during parse; resolved from Host or :authority
	Path      string
}

// NewRequest constructs a Request with the given method/scheme/authority/path.
func NewRequest(version Version, method, scheme, authority, path string) *Request {
	return &Request{
		Base:      NewBase(KindRequest, version),
		Method:    method,
		Scheme:    scheme,
		Authority: authority,
		Path:      path,
	}
}

// Validate checks method (2-10 uppercase letters) and path (starts with '/'
// and visible-ASCII, or exactly "*"), per §6.
func (r *Request) Validate() error {
	if err := ValidateMethod(r.Method); err != nil {
		return err
	}
	if err := ValidatePath(r.Path); err != nil {
		return err
	}
	if r.Authority != "" {
		if err := ValidateAuthority(r.Authority); err != nil {
			return err
		}
	}
	return nil
}

// Response is an HTTP response message.
type Response struct {
	*Base
	Status int
}

// NewResponse constructs a Response with the given status.
func NewResponse(version Version, status int) *Response {
	return &Response{Base: NewBase(KindResponse, version), Status: status}
}

// HasBody reports whether this response's status/pairing implies a body is
// present on the wire, per §3 Response body-presence policy. pairedMethod is
// the method of the paired request ("" if unpaired or unknown).
func (r *Response) HasBody(pairedMethod string) bool {
	if (r.Status >= 100 && r.Status <= 199) || r.Status == 204 || r.Status == 304 {
		return false
	}
	if pairedMethod == "HEAD" {
		return false
	}
	if pairedMethod == "CONNECT" && r.Status >= 200 && r.Status < 300 {
		return false
	}
	return true
}

// Intermediate reports whether this is a 1xx informational response that
// does not terminate the request/response exchange.
func (r *Response) Intermediate() bool { return r.Status >= 100 && r.Status <= 199 }

// Data carries a body chunk belonging to a Base message.
type Data struct {
	Owner      *Base
	Buffer     []byte
	LastPacket bool
}

// NewData constructs a Data envelope. If owner is non-chunked, later
// replacing Buffer is only valid with an identical length (enforced by
// SetBuffer).
func NewData(owner *Base, buf []byte, last bool) *Data {
	return &Data{Owner: owner, Buffer: buf, LastPacket: last}
}

// SetBuffer replaces the body buffer, enforcing the fixed-length invariant
// for non-chunked owners (§3 MessageData).
func (d *Data) SetBuffer(buf []byte) error {
	if d.Owner != nil && !d.Owner.Chunked && len(buf) != len(d.Buffer) {
		return fmt.Errorf("message: cannot resize body of non-chunked message")
	}
	d.Buffer = buf
	return nil
}

// Trailers is a header container tagged with its owning message, appearing
// at end-of-stream.
type Trailers struct {
	Owner   *Base
	Headers *Headers
}

// NewTrailers constructs an empty Trailers container for owner.
func NewTrailers(owner *Base) *Trailers {
	return &Trailers{Owner: owner, Headers: NewHeaders()}
}
