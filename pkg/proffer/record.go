package proffer

// Record is the entity being saved. Upload fields hold a *Payload before the save
// and the plain file name after it.
type Record interface {
	Get(field string) any
	Set(field string, value any)
	Unset(field string)
}

// Fields is a map backed Record
type Fields map[string]any

func (f Fields) Get(field string) any {
	return f[field]
}

func (f Fields) Set(field string, value any) {
	f[field] = value
}

func (f Fields) Unset(field string) {
	delete(f, field)
}

// EmptyRules is implemented by whatever validates the record. It reports if a
// field is allowed to be left empty.
type EmptyRules interface {
	IsEmptyAllowed(field string) bool
}

// stringOf returns v as a string if it is one
func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s != nil {
			return *s
		}
	}

	return ""
}
