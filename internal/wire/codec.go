package wire

import (
	"encoding/json"
	"fmt"
)

// DecodeErrorKind closes the decode-error taxonomy named in §4.1.
type DecodeErrorKind string

const (
	MalformedJSON         DecodeErrorKind = "malformed_json"
	UnknownDiscriminator  DecodeErrorKind = "unknown_discriminator"
	MissingRequiredField  DecodeErrorKind = "missing_required_field"
	TypeMismatch          DecodeErrorKind = "type_mismatch"
)

type DecodeError struct {
	Kind  DecodeErrorKind
	Path  string
	Value string
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case UnknownDiscriminator:
		return fmt.Sprintf("wire: unknown discriminator at %s: %q", e.Path, e.Value)
	case MissingRequiredField:
		return fmt.Sprintf("wire: missing required field: %s", e.Path)
	case TypeMismatch:
		return fmt.Sprintf("wire: type mismatch at %s: %s", e.Path, e.Value)
	default:
		return fmt.Sprintf("wire: malformed json: %s", e.Value)
	}
}

// UnmarshalJSON validates that the discriminator names a field this package
// actually populates, turning a stray server-side addition into a typed
// UnknownDiscriminator error rather than a silently-empty Part.
func (p *Part) UnmarshalJSON(data []byte) error {
	type raw Part
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return &DecodeError{Kind: MalformedJSON, Value: err.Error()}
	}
	switch PartType(r.Type) {
	case PartText, PartInlineBlob, PartFileRef, PartFunctionCall, PartFunctionResult, "":
		*p = Part(r)
		return nil
	default:
		return &DecodeError{Kind: UnknownDiscriminator, Path: "type", Value: string(r.Type)}
	}
}

// MarshalJSON implements the untagged three-shape union of §9: text,
// sequence-of-content, or sequence-of-turns. Exactly one of the three is
// ever populated by construction (TextInput/ContentsInput/TurnsInput), so
// encoding is a straightforward first-match.
func (i InteractionInput) MarshalJSON() ([]byte, error) {
	switch {
	case i.Text != nil:
		return json.Marshal(*i.Text)
	case i.Contents != nil:
		return json.Marshal(i.Contents)
	case i.Turns != nil:
		return json.Marshal(i.Turns)
	default:
		return json.Marshal("")
	}
}

// UnmarshalJSON attempts the string shape, then the sequence-of-content
// shape. A sequence of turns has the same JSON form as a sequence of
// content, so it is never tried separately and always decodes into
// Contents; callers relying on Turns vs. Contents disambiguation
// beyond "is it an array of Content" should set the field explicitly rather
// than round-tripping through the wire form.
func (i *InteractionInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.Text = &s
		return nil
	}
	var contents []Content
	if err := json.Unmarshal(data, &contents); err == nil {
		i.Contents = contents
		return nil
	}
	return &DecodeError{Kind: MalformedJSON, Value: "input matched neither text nor content-sequence shape"}
}
