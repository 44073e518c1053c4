package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testSecret = "oauth-client-secret-98765"

func TestSecretString_String(t *testing.T) {
	s := SecretString(testSecret)

	if s.String() != redactedPlaceholder {
		t.Errorf("String() = %q, want %q", s.String(), redactedPlaceholder)
	}
}

func TestSecretString_Sprintf(t *testing.T) {
	s := SecretString(testSecret)

	for _, verb := range []string{"%s", "%v"} {
		result := fmt.Sprintf("secret="+verb, s)
		if strings.Contains(result, testSecret) {
			t.Errorf("fmt.Sprintf(%q) leaked the raw secret: %s", verb, result)
		}
		if result != "secret="+redactedPlaceholder {
			t.Errorf("fmt.Sprintf(%q) = %q", verb, result)
		}
	}
}

func TestSecretString_MarshalJSON(t *testing.T) {
	type creds struct {
		ClientID     string       `json:"client_id"`
		ClientSecret SecretString `json:"client_secret"`
	}

	data, err := json.Marshal(creds{ClientID: "svc-ingestor", ClientSecret: SecretString(testSecret)})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	if strings.Contains(string(data), testSecret) {
		t.Errorf("MarshalJSON leaked the raw secret: %s", data)
	}
	if !strings.Contains(string(data), redactedPlaceholder) {
		t.Errorf("MarshalJSON should emit the placeholder: %s", data)
	}
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testSecret)

	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want the raw value", s.Unmask())
	}
}
