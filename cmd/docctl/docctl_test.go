package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScoreCommand(t *testing.T) {
	out, err := execute(t, "", "score", "bmi", "weight=70", "height=175")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "bmi: 22.86") {
		t.Errorf("expected bmi 22.86, got %q", out)
	}

	out, err = execute(t, `{"confusion": true, "age": 80}`, "score", "curb-65", "-f", "-", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"score": 2`) {
		t.Errorf("expected a CURB-65 of 2, got %q", out)
	}

	if _, err := execute(t, "", "score", "apgar"); err == nil {
		t.Error("expected an error for an unknown calculator")
	}
	if _, err := execute(t, "", "score", "bmi", "weight"); err == nil {
		t.Error("expected an error for a malformed argument")
	}
}

func TestScoreList(t *testing.T) {
	out, err := execute(t, "", "score", "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"bmi", "cockcroft-gault", "meld"} {
		if !strings.Contains(out, `"`+id+`"`) {
			t.Errorf("expected %s in the catalog", id)
		}
	}
}

func TestNoteCommand(t *testing.T) {
	out, err := execute(t, `{"author": {"name": "Dra. Ana"}}`, "note")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ANTECEDENTES") || !strings.Contains(out, "Dra. Ana") {
		t.Errorf("unexpected note %q", out)
	}

	out, err = execute(t, `{}`, "note", "--mode", "trauma")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "SUBJETIVO") {
		t.Errorf("expected a trauma note, got %q", out)
	}
}

const state = `{
	"patient": {"name": "Maria"},
	"date": "2026-10-19",
	"printInstructions": true,
	"customInstructions": "Retornar em 7 dias",
	"certificate": {"type": "atestado", "leaveDays": 3},
	"medications": [
		{"id": "1", "name": "Amoxicilina", "dosage": "1 cápsula", "quantity": "21", "unit": "cápsula"},
		{"id": "2", "name": "Dipirona", "dosage": "", "quantity": "10", "unit": "comprimido"}
	]
}`

func TestLayoutCommand(t *testing.T) {
	out, err := execute(t, state, "layout", "--copies", "2", "--summary")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "copies: 2, pages per copy: 2") {
		t.Errorf("unexpected summary %q", out)
	}
	if strings.Count(out, "\n") != 5 {
		t.Errorf("expected a header and 4 sheet lines, got %q", out)
	}
}

func TestCertificateAndValidateCommands(t *testing.T) {
	out, err := execute(t, state, "certificate", "--doctor", "Dra. Ana", "--license", "CRM-SP 1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ATESTADO MÉDICO") || !strings.Contains(out, "19/10/2026") {
		t.Errorf("unexpected certificate %q", out)
	}

	out, err = execute(t, state, "validate")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "#2 ") {
		t.Errorf("expected a warning on the second medication, got %q", out)
	}
}

func TestFHIRCommand(t *testing.T) {
	out, err := execute(t, state, "fhir", "--doctor", "Dra. Ana")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"resourceType": "Bundle"`) || strings.Count(out, `"MedicationRequest"`) != 2 {
		t.Errorf("unexpected bundle %q", out)
	}
}
