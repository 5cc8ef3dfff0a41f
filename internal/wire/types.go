// Package wire holds the typed representation of the brain's JSON surface:
// content parts, tool declarations, interaction requests/events/results, and
// the usage/finish-reason metadata that rides along with them.
package wire

import "encoding/json"

// PartType discriminates the tagged Content Part variants on the wire.
type PartType string

const (
	PartText           PartType = "text"
	PartInlineBlob     PartType = "inline_data"
	PartFileRef        PartType = "file_data"
	PartFunctionCall   PartType = "function_call"
	PartFunctionResult PartType = "function_response"
)

// Part is an externally tagged Content Part. Exactly one of the payload
// fields matching Type is populated; the others are nil so they are omitted
// on encode.
type Part struct {
	Type PartType `json:"type"`

	Text   *string     `json:"text,omitempty"`
	Blob   *InlineBlob `json:"inline_data,omitempty"`
	File   *FileRef    `json:"file_data,omitempty"`
	Call   *FunctionCall   `json:"function_call,omitempty"`
	Result *FunctionResult `json:"function_response,omitempty"`
}

func TextPart(s string) Part { return Part{Type: PartText, Text: &s} }

func InlineBlobPart(mime string, data []byte) Part {
	b := InlineBlob{MimeType: mime, Data: data}
	return Part{Type: PartInlineBlob, Blob: &b}
}

func FileRefPart(uri, mime string) Part {
	f := FileRef{URI: uri, MimeType: mime}
	return Part{Type: PartFileRef, File: &f}
}

func FunctionCallPart(callID, name string, args map[string]any) Part {
	c := FunctionCall{CallID: callID, Name: name, Args: args}
	return Part{Type: PartFunctionCall, Call: &c}
}

func FunctionResultPart(callID, name string, value any) Part {
	r := FunctionResult{CallID: callID, Name: name, Value: value}
	return Part{Type: PartFunctionResult, Result: &r}
}

// InlineBlob carries a base64-encoded binary payload inline in the request.
type InlineBlob struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"` // json.Marshal base64-encodes []byte automatically
}

// FileRef points at a previously uploaded file resource.
type FileRef struct {
	URI      string `json:"file_uri"`
	MimeType string `json:"mime_type"`
}

type FunctionCall struct {
	CallID string         `json:"call_id,omitempty"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
}

type FunctionResult struct {
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Value  any    `json:"response"`
}

// Role identifies whose turn a Content block belongs to.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

// Content is a sequence of Parts attributed to a Role.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

func (c Content) PlainText() string {
	out := ""
	for _, p := range c.Parts {
		if p.Type == PartText && p.Text != nil {
			out += *p.Text
		}
	}
	return out
}

// ToolDeclaration describes one callable tool for inclusion in a request.
type ToolDeclaration struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	ParameterSchema map[string]any `json:"parameter_schema"`
}

// ToolChoice controls the brain's function-calling posture.
type ToolChoice struct {
	Mode string `json:"mode"` // "auto"|"none"|"required"|"named"
	Name string `json:"name,omitempty"`
}

func ToolChoiceAuto() *ToolChoice     { return &ToolChoice{Mode: "auto"} }
func ToolChoiceNone() *ToolChoice     { return &ToolChoice{Mode: "none"} }
func ToolChoiceRequired() *ToolChoice { return &ToolChoice{Mode: "required"} }
func ToolChoiceNamed(name string) *ToolChoice { return &ToolChoice{Mode: "named", Name: name} }

// ThinkingLevel controls reasoning effort on the brain side.
type ThinkingLevel string

const (
	ThinkingNone ThinkingLevel = "none"
	ThinkingLow  ThinkingLevel = "low"
	ThinkingHigh ThinkingLevel = "high"
)

// GenerationConfig mirrors the brain's generationConfig object.
type GenerationConfig struct {
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxOutputTokens  *int           `json:"max_output_tokens,omitempty"`
	ThinkingLevel    ThinkingLevel  `json:"thinking_level,omitempty"`
	ResponseMimeType string         `json:"response_mime_type,omitempty"`
	ResponseSchema   map[string]any `json:"response_schema,omitempty"`
}

// InteractionRequest is the input to one brain call.
//
// Input holds exactly one of Text, Contents, or Turns; see codec.go for the
// untagged-union encode/decode behavior.
type InteractionRequest struct {
	Model string `json:"model,omitempty"`
	Agent string `json:"agent,omitempty"`

	Input InteractionInput `json:"input"`

	PreviousInteractionID string `json:"previous_interaction_id,omitempty"`

	SystemInstruction *Content `json:"system_instruction,omitempty"`

	Tools      []ToolDeclaration `json:"tools,omitempty"`
	ToolChoice *ToolChoice       `json:"tool_choice,omitempty"`

	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"`
	SafetySettings   json.RawMessage   `json:"safety_settings,omitempty"`
	CachedContent    string            `json:"cached_content,omitempty"`

	Stream     bool `json:"stream"`
	Store      bool `json:"store"`
	Background bool `json:"background,omitempty"`
}

// Validate enforces the two cross-field invariants of §3.
func (r *InteractionRequest) Validate() error {
	if r.Background && r.Stream {
		return &ValidationError{Reason: "background=true requires stream=false"}
	}
	if r.ToolChoice != nil && r.ToolChoice.Mode == "named" {
		found := false
		for _, t := range r.Tools {
			if t.Name == r.ToolChoice.Name {
				found = true
				break
			}
		}
		if !found {
			return &ValidationError{Reason: "tool_choice names a tool absent from tools: " + r.ToolChoice.Name}
		}
	}
	if r.Model == "" && r.Agent == "" {
		return &ValidationError{Reason: "exactly one of model or agent must be set"}
	}
	if r.Model != "" && r.Agent != "" {
		return &ValidationError{Reason: "exactly one of model or agent must be set"}
	}
	return nil
}

type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return "wire: invalid request: " + e.Reason }

// InteractionInput is the untagged three-shape union described in §9.
type InteractionInput struct {
	Text     *string   `json:"-"`
	Contents []Content `json:"-"`
	Turns    []Content `json:"-"`
}

func TextInput(s string) InteractionInput     { return InteractionInput{Text: &s} }
func ContentsInput(c []Content) InteractionInput { return InteractionInput{Contents: c} }
func TurnsInput(c []Content) InteractionInput    { return InteractionInput{Turns: c} }

// Usage mirrors §3's aggregated usage object.
type Usage struct {
	Prompt     int `json:"prompt"`
	Cached     int `json:"cached,omitempty"`
	Thoughts   int `json:"thoughts,omitempty"`
	Candidates int `json:"candidates"`
	Total      int `json:"total"`
}

// FinishReason closes out an InteractionResult / Complete event.
type FinishReason string

const (
	FinishStop          FinishReason = "STOP"
	FinishMaxTokens      FinishReason = "MAX_TOKENS"
	FinishSafety         FinishReason = "SAFETY"
	FinishOther          FinishReason = "OTHER"
)

// InteractionResult is the aggregated non-streaming view of one brain call.
type InteractionResult struct {
	InteractionID string         `json:"interaction_id"`
	OutputParts   []Part         `json:"output_parts"`
	ToolCalls     []FunctionCall `json:"tool_calls"`
	Usage         Usage          `json:"usage"`
	FinishReason  FinishReason   `json:"finish_reason"`
}
