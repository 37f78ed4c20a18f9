package proffer

// UploadError is the status code attached to an uploaded file by the HTTP layer.
// Values match the classic multipart upload status codes.
type UploadError int

const (
	UploadErrOK        UploadError = 0
	UploadErrIniSize   UploadError = 1
	UploadErrFormSize  UploadError = 2
	UploadErrPartial   UploadError = 3
	UploadErrNoFile    UploadError = 4
	UploadErrNoTmpDir  UploadError = 6
	UploadErrCantWrite UploadError = 7
	UploadErrExtension UploadError = 8
)

func (e UploadError) String() string {
	switch e {
	case UploadErrOK:
		return "ok"
	case UploadErrIniSize:
		return "ini_size"
	case UploadErrFormSize:
		return "form_size"
	case UploadErrPartial:
		return "partial"
	case UploadErrNoFile:
		return "no_file"
	case UploadErrNoTmpDir:
		return "no_tmp_dir"
	case UploadErrCantWrite:
		return "cant_write"
	case UploadErrExtension:
		return "extension"
	}

	return "unknown"
}

// Payload describes a submitted file before it's moved into permanent storage
type Payload struct {
	Name    string      `json:"name"`     // Original file name as sent by the client
	TmpName string      `json:"tmp_name"` // Transient path the transfer was written to
	Error   UploadError `json:"error"`
}

// payloadOf extracts a payload from a record value. Both pointer and value
// forms are accepted, anything else isn't a payload.
func payloadOf(v any) (*Payload, bool) {
	switch p := v.(type) {
	case *Payload:
		return p, p != nil
	case Payload:
		return &p, true
	}

	return nil, false
}
