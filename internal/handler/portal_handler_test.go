package handler

import (
	"testing"

	"github.com/testport/testport-backend/internal/model"
)

func TestCatalogTypeFilter(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType model.TestType
		wantNil  bool
		wantOK   bool
	}{
		{name: "empty means no filter", raw: "", wantNil: true, wantOK: true},
		{name: "assessment", raw: "ASSESSMENT", wantType: model.TestTypeAssessment, wantOK: true},
		{name: "practice", raw: "PRACTICE", wantType: model.TestTypePractice, wantOK: true},
		{name: "assignment", raw: "ASSIGNMENT", wantType: model.TestTypeAssignment, wantOK: true},
		{name: "mock test", raw: "MOCK_TEST", wantType: model.TestTypeMock, wantOK: true},
		{name: "company test", raw: "COMPANY_TEST", wantType: model.TestTypeCompany, wantOK: true},
		{name: "unknown value rejected", raw: "QUIZ", wantNil: true, wantOK: false},
		{name: "wrong case rejected", raw: "practice", wantNil: true, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := catalogTypeFilter(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("catalogTypeFilter(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("catalogTypeFilter(%q) = %v, want nil", tt.raw, *got)
				}
				return
			}
			if got == nil || *got != tt.wantType {
				t.Errorf("catalogTypeFilter(%q) = %v, want %v", tt.raw, got, tt.wantType)
			}
		})
	}
}
