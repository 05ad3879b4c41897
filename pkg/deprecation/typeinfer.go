package deprecation

// Type inference for untyped documents. No schema is consulted; the owning
// type of a field is guessed from the shape of the selection path alone, in
// fixed priority order, and TypeUnknown is returned when nothing matches.

const (
	// RootTypeName is assumed for selections at document root.
	RootTypeName = "Query"

	// TypeUnknown marks a field whose owning type could not be inferred.
	TypeUnknown = ""
)

// Inference carries everything the matcher chain may look at for one field.
// Path holds the field names from document root down to the field itself,
// with aliases stripped. EnclosingType is the type condition of the nearest
// enclosing fragment or inline fragment, if any selection between it and the
// field did not introduce a new parent field.
type Inference struct {
	Path          []string
	EnclosingType string
}

// structural sub-paths that fix the owning type regardless of what sits
// above them
var subPathTable = []struct {
	path []string
	typ  string
}{
	{[]string{"profile", "contactInfo"}, "ContactInfo"},
	{[]string{"contactInfo", "address"}, "Address"},
	{[]string{"profile", "address"}, "Address"},
	{[]string{"vnextAccount", "billing"}, "Billing"},
}

// parent field name to the type it yields
var fieldTypeTable = map[string]string{
	"user":            "User",
	"currentUser":     "User",
	"owner":           "User",
	"venture":         "Venture",
	"ventures":        "Venture",
	"ventureNode":     "Venture",
	"profile":         "VentureProfile",
	"wsbvnext":        "WsbVnext",
	"vnextAccount":    "Account",
	"account":         "Account",
	"billing":         "Billing",
	"subscription":    "Subscription",
	"entitlementData": "Entitlement",
	"entitlements":    "Entitlement",
	"features":        "FeatureSet",
	"links":           "LinkSet",
	"contactInfo":     "ContactInfo",
	"address":         "Address",
	"settings":        "Settings",
	"project":         "Project",
	"projects":        "Project",
	"website":         "Website",
	"domain":          "Domain",
	"domains":         "Domain",
	"tasks":           "Task",
	"task":            "Task",
}

// InferOwningType guesses the type the last path element is selected on.
// Matchers run in priority order and the first hit wins.
func InferOwningType(in Inference) string {
	if len(in.Path) == 0 {
		return TypeUnknown
	}

	// (1) a known structural sub-path directly above the field
	if len(in.Path) >= 3 {
		above := in.Path[len(in.Path)-3 : len(in.Path)-1]
		for _, entry := range subPathTable {
			if above[0] == entry.path[0] && above[1] == entry.path[1] {
				return entry.typ
			}
		}
	}

	// (2) the immediately enclosing fragment type condition
	if in.EnclosingType != "" {
		return in.EnclosingType
	}

	// (3) a field selected directly on document root
	if len(in.Path) == 1 {
		return RootTypeName
	}

	// (4) the parent field names a known type
	parent := in.Path[len(in.Path)-2]
	if typ, ok := fieldTypeTable[parent]; ok {
		return typ
	}

	// (5) the grandparent field names a known type, the unknown parent
	// treated as a structural wrapper (edges, node, data and the like)
	if len(in.Path) >= 3 {
		grandparent := in.Path[len(in.Path)-3]
		if typ, ok := fieldTypeTable[grandparent]; ok {
			return typ
		}
	}

	// (6) no idea
	return TypeUnknown
}
