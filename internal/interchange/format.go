// # internal/interchange/format.go
// Package interchange serializes a loaded tree to JSON and rebuilds an
// equivalent tree from it. Structure, raw expression text and slot
// decisions survive the round trip; derived data (linearizations, subclass
// links) is recomputed after decoding.
package interchange

// FormatVersion is bumped on incompatible changes to the document shape.
const FormatVersion = 1

// Document is the top-level interchange payload.
type Document struct {
	Version     int        `json:"version"`
	LoadID      string     `json:"load_id"`
	Modules     []*Record  `json:"modules"`
	Diagnostics []DiagRec  `json:"diagnostics,omitempty"`
}

// Record is one tree node of any kind. Kind decides which optional field
// groups apply.
type Record struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	Docstring   string `json:"docstring,omitempty"`
	Conditional bool   `json:"conditional,omitempty"`

	Members []*Record `json:"members,omitempty"`

	// Modules.
	IsPackage  bool          `json:"is_package,omitempty"`
	SourcePath string        `json:"source_path,omitempty"`
	All        *AllRec       `json:"all,omitempty"`
	Wildcards  []WildcardRec `json:"wildcards,omitempty"`
	Exports    *ExportsRec   `json:"exports,omitempty"`

	// Classes.
	Bases       []*SlotRec `json:"bases,omitempty"`
	Metaclass   *SlotRec   `json:"metaclass,omitempty"`
	Decorations []DecoRec  `json:"decorations,omitempty"`

	// Functions.
	Args           []ArgRec `json:"args,omitempty"`
	ReturnType     *SlotRec `json:"return_type,omitempty"`
	Modifiers      []string `json:"modifiers,omitempty"`
	Locals         []string `json:"locals,omitempty"`
	IsProperty     bool     `json:"is_property,omitempty"`
	IsClassMethod  bool     `json:"is_classmethod,omitempty"`
	IsStaticMethod bool     `json:"is_staticmethod,omitempty"`
	IsOverload     bool     `json:"is_overload,omitempty"`
	IsAsync        bool     `json:"is_async,omitempty"`

	// Variables.
	Value    string   `json:"value,omitempty"`
	Datatype *SlotRec `json:"datatype,omitempty"`
	Exported bool     `json:"exported,omitempty"`
	AliasOf  string   `json:"alias_of,omitempty"`

	// Indirections.
	Target string `json:"target,omitempty"`
}

// SlotRec is a serialized reference slot. State "resolved" carries the
// target's qualified name; "external" the dotted external name; an
// "unresolved" state with a reason is a terminal decision, without one the
// slot is still open.
type SlotRec struct {
	Raw      string `json:"raw"`
	State    string `json:"state"`
	Target   string `json:"target,omitempty"`
	External string `json:"external,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type AllRec struct {
	Names      []string `json:"names"`
	NonLiteral bool     `json:"non_literal,omitempty"`
	Line       int      `json:"line,omitempty"`
}

type WildcardRec struct {
	Target      string `json:"target"`
	Line        int    `json:"line,omitempty"`
	Conditional bool   `json:"conditional,omitempty"`
	Expanded    bool   `json:"expanded,omitempty"`
	Cyclic      bool   `json:"cyclic,omitempty"`
}

type ExportsRec struct {
	Policy  string   `json:"policy"`
	Names   []string `json:"names"`
	Missing []string `json:"missing,omitempty"`
}

type DecoRec struct {
	Name *SlotRec `json:"name"`
	Args string   `json:"args,omitempty"`
	Line int      `json:"line,omitempty"`
}

type ArgRec struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Datatype   *SlotRec `json:"datatype,omitempty"`
	HasDefault bool     `json:"has_default,omitempty"`
}

type DiagRec struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Object   string `json:"object"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}
