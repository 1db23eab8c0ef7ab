package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// concept is one candidate of a test mention
type concept struct {
	cui, name string
	vocab     []string
	semtypes  []string
}

// mention is one matched span with its candidate concepts
type mention struct {
	text     string
	start    int
	concepts []concept
}

var (
	influenza     = concept{"C0021400", "Influenza", []string{"MSH", "MTH"}, []string{"dsyn"}}
	fever         = concept{"C0015967", "Fever", []string{"MSH", "MTH", "NCI"}, []string{"sosy"}}
	feverFinding  = concept{"C0424755", "Fever symptoms", []string{"MTH"}, []string{"fndg"}}
	cough         = concept{"C0010200", "Coughing", []string{"MSH", "MTH"}, []string{"sosy"}}
	fluDataByFile = map[string][]mention{
		"Mayo_Flu.json": {
			{"influenza", 0, []concept{influenza}},
			{"fever", 20, []concept{fever, feverFinding}},
		},
		"Medline_Flu.json": {
			{"flu", 5, []concept{influenza}},
			{"fever", 30, []concept{fever}},
		},
		"Wiki_Flu.json": {
			{"cough", 3, []concept{cough}},
			{"fever", 40, []concept{feverFinding}},
		},
	}
)

// writeMML writes mentions as MetaMapLite JSON output
func writeMML(t *testing.T, dir, name string, mentions []mention) {
	t.Helper()

	var entities []map[string]interface{}
	for _, m := range mentions {
		var events []map[string]interface{}
		for _, c := range m.concepts {
			events = append(events, map[string]interface{}{
				"score":       0,
				"matchedtext": m.text,
				"start":       m.start,
				"length":      len(m.text),
				"id":          "",
				"conceptinfo": map[string]interface{}{
					"conceptstring": c.name,
					"sources":       c.vocab,
					"cui":           c.cui,
					"preferredname": c.name,
					"semantictypes": c.semtypes,
				},
			})
		}
		entities = append(entities, map[string]interface{}{
			"matchedtext": m.text,
			"evlist":      events,
			"docid":       "00000000.tx",
			"start":       m.start,
			"length":      len(m.text),
			"id":          "",
			"negated":     false,
		})
	}

	data, err := json.Marshal(entities)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeFluCorpus writes the three-source flu corpus and returns its directory
func writeFluCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, mentions := range fluDataByFile {
		writeMML(t, dir, name, mentions)
	}
	return dir
}
