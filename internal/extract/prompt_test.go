package extract

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildModelDigest(t *testing.T) {
	digest := BuildModelDigest()
	for _, want := range []string{"HEALTH_SYSTEM:", "COMPANY:", "CO_INVESTOR:", "leadSourceHealthSystemName", "STARTUP | SPIN_OUT | DENOVO", "0.80", "no deletes"} {
		if !strings.Contains(digest, want) {
			t.Errorf("digest missing %q:\n%s", want, digest)
		}
	}
	if strings.Contains(digest, "CO_INVESTOR: name (required); website; headquartersCity; headquartersState; headquartersCountry; description; companyType") {
		t.Error("company-only fields listed for co-investors")
	}
	if BuildModelNarrative() == "" {
		t.Error("empty model narrative")
	}
}

func TestSchemaIsValidJSON(t *testing.T) {
	var v map[string]any
	if err := json.Unmarshal(Schema(), &v); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if !strings.Contains(systemPrompt(), "80%") {
		t.Error("system prompt should state the auto-match threshold")
	}
}
