package annotation

import (
	"testing"

	"github.com/kirillkom/docintel/internal/core/domain"
)

func TestExtractFieldsSample(t *testing.T) {
	fields := ExtractFields("Contact me at a@b.com or call 555-123-4567 on 01/02/2024, total $45.00")

	want := map[domain.FieldKind]string{
		domain.FieldEmails:  "a@b.com",
		domain.FieldPhones:  "555-123-4567",
		domain.FieldDates:   "01/02/2024",
		domain.FieldAmounts: "$45.00",
	}
	for kind, match := range want {
		got := fields[kind]
		if len(got) != 1 || got[0] != match {
			t.Fatalf("group %s = %v, want [%s]", kind, got, match)
		}
	}
}

func TestExtractFieldsOmitsEmptyGroups(t *testing.T) {
	fields := ExtractFields("Paid 120.50 EUR on 2024-03-15.")
	if _, ok := fields[domain.FieldEmails]; ok {
		t.Fatalf("emails group should be absent: %v", fields)
	}
	if _, ok := fields[domain.FieldPhones]; ok {
		t.Fatalf("phones group should be absent: %v", fields)
	}
	if got := fields[domain.FieldAmounts]; len(got) != 1 || got[0] != "120.50 EUR" {
		t.Fatalf("unexpected amounts %v", got)
	}
	if got := fields[domain.FieldDates]; len(got) != 1 || got[0] != "2024-03-15" {
		t.Fatalf("unexpected dates %v", got)
	}
}
