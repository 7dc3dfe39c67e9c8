package model

type StatusCode int

const (
	StatusCodeUnset StatusCode = 0
	StatusCodeOk    StatusCode = 1
	StatusCodeError StatusCode = 2
)

// Tag is one key/value entry on a span. Tags live in a slice rather than a map
// so repeated exports of the same span produce identical output.
type Tag struct {
	Key   string
	Value interface{}
}

type SpanLog struct {
	TimestampNano int64
	Fields        []Tag
}

type SpanStatus struct {
	Code    StatusCode
	Message string
}

// Span is the mutable record tracked for the lifetime of one invocation.
// ParentSpanID is empty for the root span unless the invocation continues a
// trace propagated from an upstream caller. EndTimeNano of zero means the span
// is still open.
type Span struct {
	TraceID       string
	SpanID        string
	ParentSpanID  string
	OperationName string
	StartTimeNano int64
	EndTimeNano   int64
	Tags          []Tag
	Logs          []SpanLog
	Status        *SpanStatus
}

// SetTag overwrites the value of an existing key in place, or appends a new
// entry, keeping first-insertion order stable.
func (s *Span) SetTag(key string, value interface{}) {
	for i := range s.Tags {
		if s.Tags[i].Key == key {
			s.Tags[i].Value = value
			return
		}
	}
	s.Tags = append(s.Tags, Tag{Key: key, Value: value})
}

// GetTag returns the value for key and whether it is present.
func (s *Span) GetTag(key string) (interface{}, bool) {
	for i := range s.Tags {
		if s.Tags[i].Key == key {
			return s.Tags[i].Value, true
		}
	}
	return nil, false
}

func (s *Span) AppendLog(timestampNano int64, fields []Tag) {
	s.Logs = append(s.Logs, SpanLog{TimestampNano: timestampNano, Fields: fields})
}

func (s *Span) Closed() bool {
	return s.EndTimeNano != 0
}
