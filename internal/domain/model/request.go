package model

// Metadata keys read by the authorization gate.
const (
	MetadataKey    = "key"
	MetadataSecret = "secret"
)

// Request is one unit of publishing work: an opaque payload, the routing tags
// and metadata that is never forwarded to recipients.
type Request struct {
	// Message is a string or whatever the configured message parser produced.
	Message  any
	Tags     TagSet
	Metadata map[string]any
}

// NewRequest builds a request with empty tags and metadata.
func NewRequest(message any) *Request {
	return &Request{
		Message:  message,
		Tags:     TagSet{},
		Metadata: map[string]any{},
	}
}

// WithTags replaces the routing tags.
func (r *Request) WithTags(tags TagSet) *Request {
	r.Tags = tags
	return r
}

// WithMetadata replaces the metadata.
func (r *Request) WithMetadata(md map[string]any) *Request {
	r.Metadata = md
	return r
}

// Credentials returns the key/secret pair carried in metadata. Both must be
// present and be strings for ok to be true.
func (r *Request) Credentials() (key, secret string, ok bool) {
	if r == nil || r.Metadata == nil {
		return "", "", false
	}
	key, kok := r.Metadata[MetadataKey].(string)
	secret, sok := r.Metadata[MetadataSecret].(string)
	return key, secret, kok && sok
}
