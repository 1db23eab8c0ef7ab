package model

// SemanticType is a UMLS semantic type as MetaMapLite reports it
type SemanticType struct {
	TUI    string // T047
	Abbrev string // dsyn
	Name   string
}

// AllSemanticTypes disables the coverage-matrix restriction when it appears
// in run.semantic_types
const AllSemanticTypes = "all"

// clinicalSemanticTypes are the types kept in the coverage matrix by default
var clinicalSemanticTypes = []SemanticType{
	{"T017", "anst", "Anatomical Structure"},
	{"T023", "bpoc", "Body Part, Organ, or Organ Component"},
	{"T029", "blor", "Body Location or Region"},
	{"T033", "fndg", "Finding"},
	{"T034", "lbtr", "Laboratory or Test Result"},
	{"T047", "dsyn", "Disease or Syndrome"},
	{"T048", "mobd", "Mental or Behavioral Dysfunction"},
	{"T059", "lbpr", "Laboratory Procedure"},
	{"T060", "diap", "Diagnostic Procedure"},
	{"T061", "topp", "Therapeutic or Preventive Procedure"},
	{"T121", "phsu", "Pharmacologic Substance"},
	{"T184", "sosy", "Sign or Symptom"},
	{"T191", "neop", "Neoplastic Process"},
	{"T200", "clnd", "Clinical Drug"},
}

// Other disorder types, accepted by TUI in run.semantic_types
var disorderSemanticTypes = []SemanticType{
	{"T019", "cgab", "Congenital Abnormality"},
	{"T020", "acab", "Acquired Abnormality"},
	{"T037", "inpo", "Injury or Poisoning"},
	{"T046", "patf", "Pathologic Function"},
	{"T049", "comd", "Cell or Molecular Dysfunction"},
	{"T050", "emod", "Experimental Model of Disease"},
	{"T190", "anab", "Anatomical Abnormality"},
}

// DefaultSemanticTypes returns the abbreviations of the clinical types
func DefaultSemanticTypes() []string {
	out := make([]string, len(clinicalSemanticTypes))
	for i, st := range clinicalSemanticTypes {
		out[i] = st.Abbrev
	}
	return out
}

// SemanticTypeAbbrev maps a TUI to its abbreviation. Unknown values are
// returned unchanged.
func SemanticTypeAbbrev(s string) string {
	for _, table := range [][]SemanticType{clinicalSemanticTypes, disorderSemanticTypes} {
		for _, st := range table {
			if st.TUI == s {
				return st.Abbrev
			}
		}
	}
	return s
}
